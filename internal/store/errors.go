package store

// Op constants name backend operations for error context.
const (
	OpListCollections = "collections"
	OpFetchPage       = "fetch_page"
	OpTextSearch      = "text_search"
	OpKNNSearch       = "knn_search"
	OpSample          = "sample_metadata"
	OpPing            = "ping"
)

// Error wraps an underlying backend error with the operation name.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
