// Package record models vector records and their metadata. Metadata values
// are a closed tagged variant over the JSON primitive kinds so that callers
// never dispatch on open dynamic types.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the primitive type tag of a metadata value.
type Kind string

// Metadata value kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindNull   Kind = "null"
)

// Member is one key/value pair of an object value, order-preserving.
type Member struct {
	Key   string
	Value Value
}

// Value is a metadata value: exactly one of the closed primitive kinds.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  []Member
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null creates a null value.
func Null() Value { return Value{kind: KindNull} }

// Array creates an array value.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object creates an object value with the given members in order.
func Object(members ...Member) Value { return Value{kind: KindObject, obj: members} }

// Kind returns the primitive type tag.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// Str returns the string payload (valid for KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (valid for KindNumber).
func (v Value) Num() float64 { return v.num }

// Bool returns the boolean payload (valid for KindBool).
func (v Value) Bool() bool { return v.b }

// Items returns the array elements (valid for KindArray).
func (v Value) Items() []Value { return v.arr }

// Members returns the object members in order (valid for KindObject).
func (v Value) Members() []Member { return v.obj }

// Equal reports structural equality, comparing arrays and objects by content.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindNull:
		return true
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for i := range v.obj {
			if v.obj[i].Key != other.obj[i].Key || !v.obj[i].Value.Equal(other.obj[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as plain JSON, object members in order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindNull:
		return []byte("null"), nil
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			b, err := m.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown value kind %q", v.kind)
}

// UnmarshalJSON decodes plain JSON into the variant, preserving object key
// order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// decodeValue reads one JSON value from the decoder token stream.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("decode metadata value: %w", err)
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		n, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return Value{}, fmt.Errorf("decode metadata number %q: %w", t, err)
		}
		return Number(n), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ]
				return Value{}, fmt.Errorf("decode metadata array: %w", err)
			}
			return Array(items...), nil
		case '{':
			var members []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("decode metadata object key: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("metadata object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume }
				return Value{}, fmt.Errorf("decode metadata object: %w", err)
			}
			return Object(members...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected metadata token %v", tok)
}
