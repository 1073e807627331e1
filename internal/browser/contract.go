package browser

import (
	"context"

	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/repository/records"
)

// Source is the consumer interface for record reads (ISP).
type Source interface {
	Page(ctx context.Context, collection string, offset, limit int, where filter.Clause) (*records.PageResult, error)
	TextSearch(ctx context.Context, collection, query string, where filter.Clause, limit int) (*records.SearchResult, error)
	SemanticSearch(ctx context.Context, collection, query string, where filter.Clause, limit int) (*records.SearchResult, error)
}

// FieldCatalog infers the metadata schema of a collection.
type FieldCatalog interface {
	Refresh(ctx context.Context, collection string) ([]catalog.Field, error)
}
