package browser

import (
	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
)

// View is a consistent snapshot of session state. Distances is non-nil
// exactly when the displayed hits carry a similarity ranking.
type View struct {
	Collection string

	Page       int
	PageSize   int
	Total      int
	TotalPages int
	Records    []record.Record
	BrowseErr  error

	Filters []filter.Filter
	Where   filter.Clause

	SearchActive bool
	SearchQuery  string
	Semantic     bool
	Hits         []record.Record
	Distances    []float64
	SearchErr    error

	Fields     []catalog.Field
	CatalogErr error
}

// View returns a snapshot of the session taken under one lock acquisition.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	filters := make([]filter.Filter, len(s.filters))
	copy(filters, s.filters)

	return View{
		Collection: s.collection,

		Page:       s.page,
		PageSize:   s.pageSize,
		Total:      s.browse.total,
		TotalPages: totalPages(s.browse.total, s.pageSize),
		Records:    s.browse.records,
		BrowseErr:  s.browse.err,

		Filters: filters,
		Where:   s.clauseLocked(),

		SearchActive: s.search.active,
		SearchQuery:  s.search.query,
		Semantic:     s.search.semantic,
		Hits:         s.search.records,
		Distances:    s.search.distances,
		SearchErr:    s.search.err,

		Fields:     s.fields.fields,
		CatalogErr: s.fields.err,
	}
}
