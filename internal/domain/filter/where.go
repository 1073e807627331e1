package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Predicate is a single field/operator/value condition, the compiled form of
// one Filter.
type Predicate struct {
	field string
	op    Operator
	value any
}

// NewPredicate creates a predicate. The value shape must match the operator.
func NewPredicate(field string, op Operator, value any) (Predicate, error) {
	if field == "" {
		return Predicate{}, fmt.Errorf("%w: predicate field is required", ErrInvalidFilter)
	}
	if !op.IsValid() {
		return Predicate{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, op)
	}
	if !validValueShape(op, value) {
		return Predicate{}, fmt.Errorf("%w: value shape does not match operator %q", ErrInvalidFilter, op)
	}
	return Predicate{field: field, op: op, value: value}, nil
}

// Field returns the metadata field name.
func (p Predicate) Field() string { return p.field }

// Op returns the comparison operator.
func (p Predicate) Op() Operator { return p.op }

// Value returns the typed comparison value.
func (p Predicate) Value() any { return p.value }

// MarshalJSON encodes the predicate as {"field": {"op": value}}.
func (p Predicate) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(map[string]any{string(p.op): p.value})
	if err != nil {
		return nil, fmt.Errorf("marshal predicate value: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	key, err := json.Marshal(p.field)
	if err != nil {
		return nil, fmt.Errorf("marshal predicate field: %w", err)
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(inner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Clause is a where clause restricting records by metadata: either empty (no
// restriction), a single Predicate, or a flat conjunction of predicates in
// insertion order. A clause parsed from raw JSON that is not representable in
// those shapes keeps the raw JSON verbatim; it still serializes for querying
// but cannot be decompiled into filters.
type Clause struct {
	preds   []Predicate
	grouped bool
	raw     json.RawMessage
}

// IsZero reports whether the clause places no restriction on records.
func (c Clause) IsZero() bool {
	return len(c.preds) == 0 && c.raw == nil
}

// IsUnparseable reports whether the clause holds only raw JSON that could not
// be decomposed into supported predicates.
func (c Clause) IsUnparseable() bool { return c.raw != nil }

// Predicates returns the parsed predicates in order, or nil for an
// unparseable clause.
func (c Clause) Predicates() []Predicate {
	out := make([]Predicate, len(c.preds))
	copy(out, c.preds)
	return out
}

// Raw returns the verbatim JSON of an unparseable clause, nil otherwise.
func (c Clause) Raw() json.RawMessage { return c.raw }

// MarshalJSON encodes the clause: null when empty, the predicate object for a
// single condition, {"and": [...]} for a conjunction, and the verbatim raw
// JSON for an unparseable clause.
func (c Clause) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	switch {
	case len(c.preds) == 0:
		return []byte("null"), nil
	case len(c.preds) == 1 && !c.grouped:
		return json.Marshal(c.preds[0])
	default:
		var buf bytes.Buffer
		buf.WriteString(`{"and":[`)
		for i, p := range c.preds {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("marshal conjunction: %w", err)
			}
			buf.Write(b)
		}
		buf.WriteString(`]}`)
		return buf.Bytes(), nil
	}
}

// ParseClause parses raw where-clause JSON. Malformed JSON is an
// ErrInvalidFilter. Valid JSON that does not match the supported shapes
// (null, single predicate, flat "and" conjunction) yields a clause carrying
// the raw JSON verbatim, usable for querying but not decompilable.
func ParseClause(data []byte) (Clause, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Clause{}, nil
	}

	if !json.Valid(trimmed) {
		return Clause{}, fmt.Errorf("%w: malformed where clause", ErrInvalidFilter)
	}

	unparseable := Clause{raw: compact(trimmed)}

	// Valid JSON with a non-object top level is an unrecognized shape, not a
	// parse error.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return unparseable, nil
	}

	if len(top) != 1 {
		return unparseable, nil
	}

	if andRaw, ok := top["and"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(andRaw, &items); err != nil {
			return unparseable, nil
		}
		preds := make([]Predicate, 0, len(items))
		for _, item := range items {
			p, ok := parsePredicate(item)
			if !ok {
				return unparseable, nil
			}
			preds = append(preds, p)
		}
		return Clause{preds: preds, grouped: true}, nil
	}

	p, ok := parsePredicate(trimmed)
	if !ok {
		return unparseable, nil
	}
	return Clause{preds: []Predicate{p}}, nil
}

// parsePredicate parses a {"field": {"op": value}} object.
func parsePredicate(data []byte) (Predicate, bool) {
	var obj map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Predicate{}, false
	}
	if len(obj) != 1 {
		return Predicate{}, false
	}
	for field, ops := range obj {
		if len(ops) != 1 {
			return Predicate{}, false
		}
		for opKey, valRaw := range ops {
			op := Operator(opKey)
			if !op.IsValid() {
				return Predicate{}, false
			}
			value, ok := parsePredicateValue(op, valRaw)
			if !ok {
				return Predicate{}, false
			}
			return Predicate{field: field, op: op, value: value}, true
		}
	}
	return Predicate{}, false
}

// parsePredicateValue decodes a predicate value with the shape required by
// the operator: a string array for In, a string or number otherwise.
func parsePredicateValue(op Operator, raw json.RawMessage) (any, bool) {
	if op == In {
		var vals []string
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil, false
		}
		return vals, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	return nil, false
}

func compact(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append(json.RawMessage(nil), data...)
	}
	return append(json.RawMessage(nil), buf.Bytes()...)
}
