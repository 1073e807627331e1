package browser

import "errors"

// Browser sentinel errors.
var (
	// ErrSearchActive is returned for operations unavailable while search
	// results are displayed, such as paging.
	ErrSearchActive = errors.New("search is active")

	// ErrInvalidPage is returned for a page number outside [1, totalPages].
	ErrInvalidPage = errors.New("invalid page number")

	// ErrInvalidPageSize is returned for a page size outside the option set.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrFilterNotFound is returned when no filter has the given ID.
	ErrFilterNotFound = errors.New("filter not found")
)
