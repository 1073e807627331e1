// Package filter implements the bidirectional transform between user-editable
// metadata filters and the nested where-clause structure understood by the
// record stores. Only flat conjunctions are supported: no OR groups and no
// nested logical trees.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Operator is a supported filter comparison operator.
type Operator string

// Supported operators.
const (
	Eq Operator = "eq"
	Ne Operator = "ne"
	Gt Operator = "gt"
	Lt Operator = "lt"
	In Operator = "in"
)

// IsValid checks if the operator is one of the supported values.
func (o Operator) IsValid() bool {
	return o == Eq || o == Ne || o == Gt || o == Lt || o == In
}

// Filter is a single user-editable filter row.
// Value holds a string, a float64, or a []string. The []string shape is used
// if and only if Op == In.
type Filter struct {
	id    string
	field string
	op    Operator
	value any
}

// New validates and creates a Filter from a raw value string, assigning a
// fresh opaque ID.
func New(field string, op Operator, raw string) (Filter, error) {
	if field == "" {
		return Filter{}, fmt.Errorf("%w: filter field is required", ErrInvalidFilter)
	}
	if !op.IsValid() {
		return Filter{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, op)
	}
	return Filter{
		id:    uuid.NewString(),
		field: field,
		op:    op,
		value: ParseValue(raw, op),
	}, nil
}

// Reconstruct rebuilds a Filter from already-typed parts. The value shape must
// match the operator; callers are expected to pass values produced by
// ParseValue or Decompile.
func Reconstruct(id, field string, op Operator, value any) Filter {
	return Filter{id: id, field: field, op: op, value: value}
}

// ID returns the opaque unique token identifying this filter.
func (f Filter) ID() string { return f.id }

// Field returns the metadata field name.
func (f Filter) Field() string { return f.field }

// Op returns the comparison operator.
func (f Filter) Op() Operator { return f.op }

// Value returns the typed value: string, float64, or []string for In.
func (f Filter) Value() any { return f.value }

// ParseValue converts a raw value string into the typed form for an operator.
// For In the raw string is split on commas with each segment trimmed, always
// producing a slice even for a single element. For every other operator a
// base-10 numeric parse of the trimmed string is attempted; the number is
// used on success, otherwise the trimmed string is kept.
func ParseValue(raw string, op Operator) any {
	if op == In {
		parts := strings.Split(raw, ",")
		vals := make([]string, len(parts))
		for i, p := range parts {
			vals[i] = strings.TrimSpace(p)
		}
		return vals
	}

	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}

// validValueShape reports whether value matches the shape invariant for op:
// []string iff In, string or float64 otherwise.
func validValueShape(op Operator, value any) bool {
	switch value.(type) {
	case []string:
		return op == In
	case string, float64:
		return op != In
	default:
		return false
	}
}
