// Package records exposes read access to vector records over a store backend,
// normalizing the backends' column-parallel responses into domain records.
package records

import (
	"context"
	"fmt"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/store"
)

// querier is the consumer interface for the store backend (ISP).
type querier interface {
	Collections(ctx context.Context) ([]store.CollectionInfo, error)
	FetchPage(ctx context.Context, collection string, offset, limit int, where filter.Clause) (*store.RawPage, error)
	TextSearch(ctx context.Context, collection, query string, where filter.Clause, limit int) (*store.RawHits, error)
	KNNSearch(ctx context.Context, collection string, vector []float32, where filter.Clause, limit int) (*store.RawHits, error)
	SampleMetadata(ctx context.Context, collection string, limit int) ([]*record.Metadata, error)
}

// PageResult is one page of records with the filtered collection total.
type PageResult struct {
	Records []record.Record
	Total   int
}

// SearchResult holds search hits. Distances is non-nil exactly when the hits
// carry a similarity ranking; text search leaves it nil.
type SearchResult struct {
	Records   []record.Record
	Distances []float64
}

// Repo reads records from a store backend and vectorizes queries for
// semantic search.
type Repo struct {
	store    querier
	embedder domain.Embedder
}

// New creates a records repository. The embedder may be nil, in which case
// semantic search is unavailable.
func New(s querier, e domain.Embedder) *Repo {
	return &Repo{store: s, embedder: e}
}

// Collections lists browsable collections with record counts.
func (r *Repo) Collections(ctx context.Context) ([]store.CollectionInfo, error) {
	infos, err := r.store.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return infos, nil
}

// Page returns one page of records matching the where clause.
func (r *Repo) Page(
	ctx context.Context, collection string, offset, limit int, where filter.Clause,
) (*PageResult, error) {
	raw, err := r.store.FetchPage(ctx, collection, offset, limit, where)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", collection, err)
	}
	return &PageResult{
		Records: recordsFromColumns(raw.IDs, raw.Documents, raw.Metadatas, raw.Embeddings),
		Total:   raw.Total,
	}, nil
}

// TextSearch returns records whose document contains the query text. The
// result carries no distances.
func (r *Repo) TextSearch(
	ctx context.Context, collection, query string, where filter.Clause, limit int,
) (*SearchResult, error) {
	raw, err := r.store.TextSearch(ctx, collection, query, where, limit)
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", collection, err)
	}
	return &SearchResult{
		Records: recordsFromColumns(raw.IDs, raw.Documents, raw.Metadatas, raw.Embeddings),
	}, nil
}

// SemanticSearch vectorizes the query text and returns nearest-neighbor hits
// with distances, closest first.
func (r *Repo) SemanticSearch(
	ctx context.Context, collection, query string, where filter.Clause, limit int,
) (*SearchResult, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("semantic search: %w", domain.ErrEmbeddingProviderError)
	}

	embedded, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	raw, err := r.store.KNNSearch(ctx, collection, embedded.Embedding, where, limit)
	if err != nil {
		return nil, fmt.Errorf("knn search %s: %w", collection, err)
	}

	distances := raw.Distances
	if distances == nil {
		distances = make([]float64, 0, len(raw.IDs))
	}
	return &SearchResult{
		Records:   recordsFromColumns(raw.IDs, raw.Documents, raw.Metadatas, raw.Embeddings),
		Distances: distances,
	}, nil
}

// SampleMetadata returns the metadata of up to limit records, for schema
// inference.
func (r *Repo) SampleMetadata(
	ctx context.Context, collection string, limit int,
) ([]*record.Metadata, error) {
	metas, err := r.store.SampleMetadata(ctx, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("sample metadata %s: %w", collection, err)
	}
	return metas, nil
}
