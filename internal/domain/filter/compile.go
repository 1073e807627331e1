package filter

import "github.com/google/uuid"

// Compile turns a filter list into a where clause: an empty list compiles to
// the empty clause, one filter to a single predicate, two or more to a flat
// conjunction preserving the filters' original order.
func Compile(filters []Filter) Clause {
	if len(filters) == 0 {
		return Clause{}
	}

	preds := make([]Predicate, len(filters))
	for i, f := range filters {
		preds[i] = Predicate{field: f.field, op: f.op, value: f.value}
	}
	return Clause{preds: preds, grouped: len(preds) > 1}
}

// Decompile recovers the filter list from a clause. Each recovered filter
// gets a fresh ID. An unparseable clause returns ErrUnparseable; an empty
// clause returns an empty list.
func Decompile(c Clause) ([]Filter, error) {
	if c.raw != nil {
		return nil, ErrUnparseable
	}

	filters := make([]Filter, len(c.preds))
	for i, p := range c.preds {
		filters[i] = Filter{id: uuid.NewString(), field: p.field, op: p.op, value: p.value}
	}
	return filters, nil
}
