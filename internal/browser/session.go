// Package browser implements the stateful record-browsing session: paging
// through a collection, text and semantic search, metadata filtering, and the
// inferred field catalog. The three result slices (browse, search, catalog)
// are fetched independently; a generation counter per slice discards
// responses that a newer request has superseded, so an error in one slice
// never disturbs the others.
package browser

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/metrics"
	"github.com/vecscope/vecscope/internal/repository/records"
)

// PageSizes is the selectable page size option set.
var PageSizes = []int{10, 25, 50, 100}

// Defaults for session options.
const (
	DefaultPageSize    = 25
	DefaultSearchLimit = 50
)

// Options tune a new session. Zero fields fall back to defaults.
type Options struct {
	PageSize    int
	SearchLimit int
}

// Session is one browsing session over a single collection. All methods are
// safe for concurrent use. Fetches run synchronously on the caller's
// goroutine; a racing mutation bumps the slice generation and the older
// response is dropped on arrival.
type Session struct {
	src     Source
	catalog FieldCatalog
	log     *zap.Logger

	searchLimit int

	mu         sync.Mutex
	collection string
	page       int
	pageSize   int
	filters    []filter.Filter
	rawWhere   filter.Clause
	filtersRev uint64

	browse browseState
	search searchState
	fields catalogState
}

type browseState struct {
	gen       uint64
	records   []record.Record
	total     int
	loaded    bool
	loadedRev uint64
	err       error
}

type searchState struct {
	gen       uint64
	active    bool
	query     string
	semantic  bool
	records   []record.Record
	distances []float64
	err       error
}

type catalogState struct {
	gen    uint64
	fields []catalog.Field
	err    error
}

// NewSession creates a session over a collection. Call Load to populate the
// browse and catalog slices.
func NewSession(src Source, cat FieldCatalog, log *zap.Logger, collection string, opts Options) *Session {
	pageSize := opts.PageSize
	if !validPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	searchLimit := opts.SearchLimit
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Session{
		src:         src,
		catalog:     cat,
		log:         log,
		searchLimit: searchLimit,
		collection:  collection,
		page:        1,
		pageSize:    pageSize,
	}
}

// Load fetches the first page and the field catalog.
func (s *Session) Load(ctx context.Context) {
	s.fetchBrowse(ctx)
	s.fetchCatalog(ctx)
}

// Collection returns the collection this session browses.
func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

// SetPage navigates to a 1-based page of the current browse results. Paging
// is unavailable while search results are displayed.
func (s *Session) SetPage(ctx context.Context, page int) error {
	s.mu.Lock()
	if s.search.active {
		s.mu.Unlock()
		return ErrSearchActive
	}
	if page < 1 || (s.browse.loaded && page > totalPages(s.browse.total, s.pageSize)) {
		s.mu.Unlock()
		return ErrInvalidPage
	}
	s.page = page
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return nil
}

// SetPageSize switches the page size and resets to the first page.
func (s *Session) SetPageSize(ctx context.Context, size int) error {
	if !validPageSize(size) {
		return ErrInvalidPageSize
	}

	s.mu.Lock()
	s.pageSize = size
	s.page = 1
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return nil
}

// AddFilter appends a metadata filter and refetches the browse slice. An
// active search keeps the filters it was launched with.
func (s *Session) AddFilter(ctx context.Context, field string, op filter.Operator, raw string) (filter.Filter, error) {
	f, err := filter.New(field, op, raw)
	if err != nil {
		return filter.Filter{}, err
	}

	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.rawWhere = filter.Clause{}
	s.filtersChangedLocked()
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return f, nil
}

// UpdateFilter replaces the field, operator, and value of an existing filter
// in place, keeping its ID and position.
func (s *Session) UpdateFilter(ctx context.Context, id, field string, op filter.Operator, raw string) (filter.Filter, error) {
	parsed, err := filter.New(field, op, raw)
	if err != nil {
		return filter.Filter{}, err
	}
	updated := filter.Reconstruct(id, parsed.Field(), parsed.Op(), parsed.Value())

	s.mu.Lock()
	idx := s.filterIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return filter.Filter{}, ErrFilterNotFound
	}
	s.filters[idx] = updated
	s.filtersChangedLocked()
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return updated, nil
}

// RemoveFilter deletes a filter by ID.
func (s *Session) RemoveFilter(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.filterIndexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrFilterNotFound
	}
	s.filters = append(s.filters[:idx], s.filters[idx+1:]...)
	s.filtersChangedLocked()
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return nil
}

// ClearFilters removes every filter and any raw where clause.
func (s *Session) ClearFilters(ctx context.Context) {
	s.mu.Lock()
	s.filters = nil
	s.rawWhere = filter.Clause{}
	s.filtersChangedLocked()
	s.mu.Unlock()

	s.fetchBrowse(ctx)
}

// ApplyRawWhere replaces the filters with a where clause edited as raw JSON.
// A clause decomposable into flat predicates becomes editable filter rows; a
// valid but unsupported clause is kept verbatim and passed to the store as
// is, where a backend that cannot express it rejects the query.
func (s *Session) ApplyRawWhere(ctx context.Context, data []byte) error {
	clause, err := filter.ParseClause(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if filters, err := filter.Decompile(clause); err == nil {
		s.filters = filters
		s.rawWhere = filter.Clause{}
	} else {
		s.filters = nil
		s.rawWhere = clause
	}
	s.filtersChangedLocked()
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	return nil
}

// RunSearch executes a text or semantic search over the collection with the
// current filters. A blank query clears the search instead.
func (s *Session) RunSearch(ctx context.Context, query string, semantic bool) {
	if strings.TrimSpace(query) == "" {
		s.ClearSearch(ctx)
		return
	}

	s.mu.Lock()
	s.search.active = true
	s.search.query = query
	s.search.semantic = semantic
	s.mu.Unlock()

	s.fetchSearch(ctx)
}

// ClearSearch drops search results and returns to browsing. The browse page
// is refetched only if the filters changed while the search was displayed.
func (s *Session) ClearSearch(ctx context.Context) {
	s.mu.Lock()
	s.search = searchState{gen: s.search.gen + 1}
	fresh := s.browse.loaded && s.browse.loadedRev == s.filtersRev
	s.mu.Unlock()

	if !fresh {
		s.fetchBrowse(ctx)
	}
}

// SwitchCollection moves the session to another collection. Filters and
// search are scoped to a collection and reset; the page size preference
// carries over.
func (s *Session) SwitchCollection(ctx context.Context, collection string) {
	s.mu.Lock()
	s.collection = collection
	s.page = 1
	s.filters = nil
	s.rawWhere = filter.Clause{}
	s.filtersRev++
	s.search = searchState{gen: s.search.gen + 1}
	s.browse = browseState{gen: s.browse.gen}
	s.fields = catalogState{gen: s.fields.gen}
	s.mu.Unlock()

	s.fetchBrowse(ctx)
	s.fetchCatalog(ctx)
}

// RefreshCatalog re-samples the collection and rebuilds the field catalog.
func (s *Session) RefreshCatalog(ctx context.Context) {
	s.fetchCatalog(ctx)
}

// filtersChangedLocked stamps a filter mutation: the revision is bumped and
// browsing returns to the first page. The search slice is left alone so an
// active search keeps showing the results it was launched with.
func (s *Session) filtersChangedLocked() {
	s.filtersRev++
	s.page = 1
}

func (s *Session) filterIndexLocked(id string) int {
	for i, f := range s.filters {
		if f.ID() == id {
			return i
		}
	}
	return -1
}

// clauseLocked returns the effective where clause: the raw clause when one is
// applied, otherwise the compiled filters.
func (s *Session) clauseLocked() filter.Clause {
	if !s.rawWhere.IsZero() {
		return s.rawWhere
	}
	return filter.Compile(s.filters)
}

// --- Slice fetches ---

func (s *Session) fetchBrowse(ctx context.Context) {
	s.mu.Lock()
	s.browse.gen++
	gen := s.browse.gen
	collection := s.collection
	offset := (s.page - 1) * s.pageSize
	limit := s.pageSize
	where := s.clauseLocked()
	rev := s.filtersRev
	s.mu.Unlock()

	page, err := s.src.Page(ctx, collection, offset, limit, where)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.browse.gen {
		metrics.BrowserStaleDropsTotal.WithLabelValues("browse").Inc()
		return
	}
	if err != nil {
		// A failed fetch clears this slice's results; the other slices keep
		// theirs.
		s.browse = browseState{gen: gen, err: err}
		metrics.BrowserFetchesTotal.WithLabelValues("browse", "error").Inc()
		s.log.Warn("page fetch failed",
			zap.String("collection", collection), zap.Error(err))
		return
	}
	s.browse = browseState{
		gen:       gen,
		records:   page.Records,
		total:     page.Total,
		loaded:    true,
		loadedRev: rev,
	}
	metrics.BrowserFetchesTotal.WithLabelValues("browse", "ok").Inc()
}

func (s *Session) fetchSearch(ctx context.Context) {
	s.mu.Lock()
	s.search.gen++
	gen := s.search.gen
	collection := s.collection
	query := s.search.query
	semantic := s.search.semantic
	where := s.clauseLocked()
	limit := s.searchLimit
	s.mu.Unlock()

	var result *records.SearchResult
	var err error
	if semantic {
		result, err = s.src.SemanticSearch(ctx, collection, query, where, limit)
	} else {
		result, err = s.src.TextSearch(ctx, collection, query, where, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.search.gen || !s.search.active {
		metrics.BrowserStaleDropsTotal.WithLabelValues("search").Inc()
		return
	}
	if err != nil {
		s.search.err = err
		s.search.records = nil
		s.search.distances = nil
		metrics.BrowserFetchesTotal.WithLabelValues("search", "error").Inc()
		s.log.Warn("search failed",
			zap.String("collection", collection),
			zap.Bool("semantic", semantic), zap.Error(err))
		return
	}
	s.search.records = result.Records
	s.search.distances = result.Distances
	s.search.err = nil
	metrics.BrowserFetchesTotal.WithLabelValues("search", "ok").Inc()
}

func (s *Session) fetchCatalog(ctx context.Context) {
	s.mu.Lock()
	s.fields.gen++
	gen := s.fields.gen
	collection := s.collection
	s.mu.Unlock()

	fields, err := s.catalog.Refresh(ctx, collection)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.fields.gen {
		metrics.BrowserStaleDropsTotal.WithLabelValues("catalog").Inc()
		return
	}
	if err != nil {
		s.fields.err = err
		metrics.BrowserFetchesTotal.WithLabelValues("catalog", "error").Inc()
		s.log.Warn("catalog refresh failed",
			zap.String("collection", collection), zap.Error(err))
		return
	}
	s.fields.fields = fields
	s.fields.err = nil
	metrics.BrowserFetchesTotal.WithLabelValues("catalog", "ok").Inc()
}

func validPageSize(size int) bool {
	for _, s := range PageSizes {
		if size == s {
			return true
		}
	}
	return false
}

// totalPages is the page count for a filtered total; an empty result still
// has one (empty) page.
func totalPages(total, pageSize int) int {
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}
