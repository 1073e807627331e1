package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is an insertion-ordered map of metadata keys to values.
type Metadata struct {
	keys []string
	vals map[string]Value
}

// NewMetadata creates an empty metadata map.
func NewMetadata() *Metadata {
	return &Metadata{vals: make(map[string]Value)}
}

// Set stores a value under key, appending the key on first insertion.
func (m *Metadata) Set(key string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value for key and whether it is present.
func (m *Metadata) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// MarshalJSON encodes the metadata as a JSON object in insertion order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata key: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		b, err := m.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal metadata value %q: %w", k, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if tok == nil {
		*m = Metadata{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata is not a JSON object")
	}

	out := Metadata{vals: make(map[string]Value)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode metadata key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metadata key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return err
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil { // consume }
		return fmt.Errorf("decode metadata: %w", err)
	}

	*m = out
	return nil
}
