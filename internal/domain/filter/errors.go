package filter

import "errors"

var (
	// ErrInvalidFilter signals a malformed filter value or malformed raw
	// where-clause JSON. It is recoverable: committed filter state is never
	// mutated on this error.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnparseable signals a where clause that cannot be represented as a
	// flat filter list (nested logical groups, multiple operators on one
	// field, unsupported operator keys). The raw clause stays the query
	// source of truth; no filters are derived from it.
	ErrUnparseable = errors.New("where clause is not representable as filters")
)
