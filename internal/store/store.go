// Package store defines the record-store backend contract and the raw
// column-parallel response shapes shared by all backends.
package store

import (
	"context"
	"time"

	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
)

// CollectionInfo describes one browsable collection.
type CollectionInfo struct {
	Name  string
	Count int
}

// RawPage is one page of a collection in column-parallel form. The columns
// are indexed consistently; Documents, Metadatas, and Embeddings are optional
// and may be nil or contain nil elements.
type RawPage struct {
	IDs        []string
	Documents  []*string
	Metadatas  []*record.Metadata
	Embeddings [][]float32
	Total      int
}

// RawHits is a search response in column-parallel form. Distances is set only
// by nearest-neighbor search.
type RawHits struct {
	IDs        []string
	Documents  []*string
	Metadatas  []*record.Metadata
	Embeddings [][]float32
	Distances  []float64
}

// Store is the record-store backend facade.
type Store interface {
	Querier
	Pinger
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Querier provides the read operations a record browser needs.
type Querier interface {
	Collections(ctx context.Context) ([]CollectionInfo, error)
	FetchPage(ctx context.Context, collection string, offset, limit int, where filter.Clause) (*RawPage, error)
	TextSearch(ctx context.Context, collection, query string, where filter.Clause, limit int) (*RawHits, error)
	KNNSearch(ctx context.Context, collection string, vector []float32, where filter.Clause, limit int) (*RawHits, error)
	SampleMetadata(ctx context.Context, collection string, limit int) ([]*record.Metadata, error)
}
