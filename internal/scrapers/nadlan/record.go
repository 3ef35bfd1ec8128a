package nadlan

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a JSON object that remembers the order its keys were first seen in.
// Numbers are kept as json.Number so that no precision is lost on the way to an export.
//
// The zero value is an empty record ready to use.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a record out of alternating key, value pairs.
func NewRecord(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("nadlan: NewRecord expects key, value pairs")
	}
	var r Record
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("nadlan: NewRecord key %v is not a string", pairs[i]))
		}
		r.Set(key, pairs[i+1])
	}
	return r
}

// Set stores value under key, new keys are appended to the end of the key order.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r Record) Get(key string) (any, bool) {
	value, ok := r.values[key]
	return value, ok
}

// Keys returns a copy of the keys in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Record) Len() int {
	return len(r.keys)
}

// Clone returns a shallow copy whose key order and values can be changed without
// affecting r.
func (r Record) Clone() Record {
	out := Record{
		keys:   r.Keys(),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

var jsonNull = []byte("null")

func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("nadlan: expected a JSON object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("nadlan: expected an object key, got %v", tok)
		}
		var value any
		err = dec.Decode(&value)
		if err != nil {
			return fmt.Errorf("nadlan: decode value of %q: %w", key, err)
		}
		r.Set(key, value)
	}

	// closing brace
	_, err = dec.Token()
	return err
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		encodedValue, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("nadlan: encode value of %q: %w", key, err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
