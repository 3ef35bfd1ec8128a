package nadlan

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsServerOrder(t *testing.T) {
	var record Record
	err := json.Unmarshal([]byte(`{
		"GUSH": "6638-52-3",
		"DEALAMOUNT": "1,500,000",
		"ASSETROOMNUM": 4.5,
		"FLOORNO": null,
		"NEWPROJECTTEXT": false,
		"EXTRA": {"b": 1, "a": [1, 2]}
	}`), &record)
	require.NoError(t, err)

	diff := cmp.Diff(
		[]string{"GUSH", "DEALAMOUNT", "ASSETROOMNUM", "FLOORNO", "NEWPROJECTTEXT", "EXTRA"},
		record.Keys(),
	)
	if diff != "" {
		t.Fatal(diff)
	}

	rooms, ok := record.Get("ASSETROOMNUM")
	require.True(t, ok)
	require.Equal(t, json.Number("4.5"), rooms)

	floor, ok := record.Get("FLOORNO")
	require.True(t, ok)
	require.Nil(t, floor)

	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	require.Equal(
		t,
		`{"GUSH":"6638-52-3","DEALAMOUNT":"1,500,000","ASSETROOMNUM":4.5,"FLOORNO":null,"NEWPROJECTTEXT":false,"EXTRA":{"a":[1,2],"b":1}}`,
		string(encoded),
	)
}

func TestRecordRejectsNonObject(t *testing.T) {
	var record Record
	require.Error(t, json.Unmarshal([]byte(`[1, 2]`), &record))
	require.NoError(t, json.Unmarshal([]byte(`null`), &record))
	require.Equal(t, 0, record.Len())
}

func TestRecordDuplicateKeyKeepsFirstPosition(t *testing.T) {
	var record Record
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1, "b": 2, "a": 3}`), &record))
	require.Equal(t, []string{"a", "b"}, record.Keys())
	value, _ := record.Get("a")
	require.Equal(t, json.Number("3"), value)
}

func TestRecordClone(t *testing.T) {
	original := NewRecord("a", 1, "b", 2)
	clone := original.Clone()
	clone.Set("c", 3)
	clone.Set("a", 10)

	require.Equal(t, []string{"a", "b"}, original.Keys())
	value, _ := original.Get("a")
	require.Equal(t, 1, value)
	require.Equal(t, []string{"a", "b", "c"}, clone.Keys())
}
