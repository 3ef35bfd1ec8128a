package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"Tel Aviv-Yafo", "telavivyafo"},
		{"  tel aviv yafo\n", "telavivyafo"},
		{"תל אביב -יפו", "תלאביביפו"},
		{`צה"ל`, "צהל"},
		{"צה״ל", "צהל"},
		{"ג'ון", "גון"},
		{"", ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, NormalizeName(test.name), test.name)
	}
}
