package browser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/repository/records"
)

type fakeSource struct {
	mu        sync.Mutex
	pageCalls int
	textCalls int
	semCalls  int

	pageFn func(collection string, offset, limit int, where filter.Clause) (*records.PageResult, error)
	textFn func(collection, query string, where filter.Clause, limit int) (*records.SearchResult, error)
	semFn  func(collection, query string, where filter.Clause, limit int) (*records.SearchResult, error)

	entered chan struct{} // closed when the next Page call is entered
	block   chan struct{} // the next Page call waits on it
}

func (f *fakeSource) Page(_ context.Context, collection string, offset, limit int, where filter.Clause) (*records.PageResult, error) {
	f.mu.Lock()
	f.pageCalls++
	entered, block := f.entered, f.block
	f.entered, f.block = nil, nil
	fn := f.pageFn
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if fn == nil {
		return &records.PageResult{}, nil
	}
	return fn(collection, offset, limit, where)
}

func (f *fakeSource) TextSearch(_ context.Context, collection, query string, where filter.Clause, limit int) (*records.SearchResult, error) {
	f.mu.Lock()
	f.textCalls++
	fn := f.textFn
	f.mu.Unlock()
	if fn == nil {
		return &records.SearchResult{}, nil
	}
	return fn(collection, query, where, limit)
}

func (f *fakeSource) SemanticSearch(_ context.Context, collection, query string, where filter.Clause, limit int) (*records.SearchResult, error) {
	f.mu.Lock()
	f.semCalls++
	fn := f.semFn
	f.mu.Unlock()
	if fn == nil {
		return &records.SearchResult{Distances: []float64{}}, nil
	}
	return fn(collection, query, where, limit)
}

func (f *fakeSource) calls() (page, text, sem int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls, f.textCalls, f.semCalls
}

type fakeCatalog struct {
	mu     sync.Mutex
	calls  int
	fields []catalog.Field
	err    error
}

func (f *fakeCatalog) Refresh(context.Context, string) ([]catalog.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fields, f.err
}

func newTestSession(src Source, cat FieldCatalog) *Session {
	return NewSession(src, cat, zap.NewNop(), "docs", Options{})
}

func rec(id string) record.Record {
	return record.New(id, nil, nil, nil)
}

// hasEq reports whether the clause contains an eq predicate field == value.
func hasEq(where filter.Clause, field, value string) bool {
	for _, p := range where.Predicates() {
		if p.Field() == field && p.Op() == filter.Eq && p.Value() == value {
			return true
		}
	}
	return false
}

func TestLoad_PopulatesBrowseAndCatalog(t *testing.T) {
	src := &fakeSource{pageFn: func(string, int, int, filter.Clause) (*records.PageResult, error) {
		return &records.PageResult{Records: []record.Record{rec("a"), rec("b")}, Total: 2}, nil
	}}
	cat := &fakeCatalog{fields: catalog.BuildFields([]*record.Metadata{mdOne("type", "text")})}
	s := newTestSession(src, cat)
	s.Load(context.Background())

	v := s.View()
	if len(v.Records) != 2 || v.Total != 2 {
		t.Errorf("unexpected browse state: %d records, total %d", len(v.Records), v.Total)
	}
	if len(v.Fields) != 1 || v.Fields[0].Name() != "type" {
		t.Errorf("unexpected catalog: %v", v.Fields)
	}
	if v.Page != 1 || v.PageSize != DefaultPageSize {
		t.Errorf("unexpected paging defaults: page %d size %d", v.Page, v.PageSize)
	}
}

func mdOne(key, val string) *record.Metadata {
	m := record.NewMetadata()
	m.Set(key, record.String(val))
	return m
}

func TestAddFilter_NarrowsTotalAndResetsPage(t *testing.T) {
	src := &fakeSource{pageFn: func(_ string, _, _ int, where filter.Clause) (*records.PageResult, error) {
		if hasEq(where, "type", "text") {
			return &records.PageResult{Records: []record.Record{rec("a"), rec("b"), rec("c")}, Total: 3}, nil
		}
		return &records.PageResult{Total: 100}, nil
	}}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	if err := s.SetPage(context.Background(), 3); err != nil {
		t.Fatalf("set page: %v", err)
	}

	f, err := s.AddFilter(context.Background(), "type", filter.Eq, "text")
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}
	if f.ID() == "" {
		t.Error("expected filter to get an ID")
	}

	v := s.View()
	if v.Total != 3 {
		t.Errorf("expected filtered total 3, got %d", v.Total)
	}
	if v.Page != 1 {
		t.Errorf("filter change must reset to page 1, got %d", v.Page)
	}
	if len(v.Filters) != 1 {
		t.Errorf("expected 1 filter, got %d", len(v.Filters))
	}
}

func TestUpdateFilter_KeepsIDAndPosition(t *testing.T) {
	src := &fakeSource{}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	first, _ := s.AddFilter(context.Background(), "type", filter.Eq, "text")
	second, _ := s.AddFilter(context.Background(), "year", filter.Gt, "2020")

	updated, err := s.UpdateFilter(context.Background(), first.ID(), "type", filter.Ne, "image")
	if err != nil {
		t.Fatalf("update filter: %v", err)
	}
	if updated.ID() != first.ID() {
		t.Errorf("update must keep the filter ID")
	}

	v := s.View()
	if len(v.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(v.Filters))
	}
	if v.Filters[0].ID() != first.ID() || v.Filters[0].Op() != filter.Ne {
		t.Errorf("expected updated filter in place, got %+v", v.Filters[0])
	}
	if v.Filters[1].ID() != second.ID() {
		t.Errorf("expected second filter untouched")
	}
}

func TestRemoveFilter_UnknownID(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeCatalog{})
	if err := s.RemoveFilter(context.Background(), "nope"); !errors.Is(err, ErrFilterNotFound) {
		t.Errorf("expected ErrFilterNotFound, got %v", err)
	}
}

func TestSetPage_Validation(t *testing.T) {
	src := &fakeSource{pageFn: func(string, int, int, filter.Clause) (*records.PageResult, error) {
		return &records.PageResult{Total: 456}, nil
	}}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	v := s.View()
	if v.TotalPages != 19 {
		t.Fatalf("expected 19 pages for 456 records at size 25, got %d", v.TotalPages)
	}

	if err := s.SetPage(context.Background(), 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("page 0: expected ErrInvalidPage, got %v", err)
	}
	if err := s.SetPage(context.Background(), 20); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("page past end: expected ErrInvalidPage, got %v", err)
	}
	if err := s.SetPage(context.Background(), 19); err != nil {
		t.Errorf("last page: unexpected error %v", err)
	}
}

func TestSetPage_WhileSearchActive(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeCatalog{})
	s.Load(context.Background())
	s.RunSearch(context.Background(), "hello", false)

	if err := s.SetPage(context.Background(), 2); !errors.Is(err, ErrSearchActive) {
		t.Errorf("expected ErrSearchActive, got %v", err)
	}
}

func TestSetPageSize(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeCatalog{})
	s.Load(context.Background())

	if err := s.SetPageSize(context.Background(), 33); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("expected ErrInvalidPageSize, got %v", err)
	}
	if err := s.SetPageSize(context.Background(), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := s.View(); v.PageSize != 100 || v.Page != 1 {
		t.Errorf("expected size 100 on page 1, got size %d page %d", v.PageSize, v.Page)
	}
}

func TestStaleBrowseResponseDropped(t *testing.T) {
	src := &fakeSource{}
	src.pageFn = func(_ string, offset, _ int, where filter.Clause) (*records.PageResult, error) {
		if len(where.Predicates()) > 0 {
			return &records.PageResult{Total: 222}, nil
		}
		if offset > 0 {
			return &records.PageResult{Total: 111}, nil
		}
		return &records.PageResult{Total: 999}, nil
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	entered := make(chan struct{})
	release := make(chan struct{})
	src.mu.Lock()
	src.entered = entered
	src.block = release
	src.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.SetPage(context.Background(), 2)
	}()
	<-entered

	// A filter lands while the page-2 fetch is in flight: its response is
	// newer and must win.
	if _, err := s.AddFilter(context.Background(), "type", filter.Eq, "text"); err != nil {
		t.Fatalf("add filter: %v", err)
	}
	close(release)
	wg.Wait()

	if v := s.View(); v.Total != 222 {
		t.Errorf("expected the newer response to win, got total %d", v.Total)
	}
}

func TestSearchErrorLeavesBrowseIntact(t *testing.T) {
	src := &fakeSource{
		pageFn: func(string, int, int, filter.Clause) (*records.PageResult, error) {
			return &records.PageResult{Records: []record.Record{rec("a")}, Total: 1}, nil
		},
		textFn: func(string, string, filter.Clause, int) (*records.SearchResult, error) {
			return nil, domain.ErrStoreUnavailable
		},
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())
	s.RunSearch(context.Background(), "boom", false)

	v := s.View()
	if !errors.Is(v.SearchErr, domain.ErrStoreUnavailable) {
		t.Errorf("expected search error, got %v", v.SearchErr)
	}
	if v.BrowseErr != nil || len(v.Records) != 1 || v.Total != 1 {
		t.Errorf("search failure must not disturb browse state: %+v", v)
	}
}

func TestBrowseErrorClearsBrowseResults(t *testing.T) {
	var fail bool
	src := &fakeSource{}
	src.pageFn = func(string, int, int, filter.Clause) (*records.PageResult, error) {
		if fail {
			return nil, domain.ErrStoreUnavailable
		}
		return &records.PageResult{Records: []record.Record{rec("a")}, Total: 1}, nil
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	fail = true
	if err := s.SetPageSize(context.Background(), 50); err != nil {
		t.Fatalf("set page size: %v", err)
	}

	v := s.View()
	if !errors.Is(v.BrowseErr, domain.ErrStoreUnavailable) {
		t.Fatalf("expected browse error, got %v", v.BrowseErr)
	}
	if len(v.Records) != 0 || v.Total != 0 {
		t.Errorf("failed fetch must clear the browse results, got %d records (total %d)",
			len(v.Records), v.Total)
	}
}

func TestCatalogErrorLeavesOtherSlicesIntact(t *testing.T) {
	src := &fakeSource{pageFn: func(string, int, int, filter.Clause) (*records.PageResult, error) {
		return &records.PageResult{Total: 5}, nil
	}}
	s := newTestSession(src, &fakeCatalog{err: domain.ErrStoreUnavailable})
	s.Load(context.Background())

	v := s.View()
	if !errors.Is(v.CatalogErr, domain.ErrStoreUnavailable) {
		t.Errorf("expected catalog error, got %v", v.CatalogErr)
	}
	if v.BrowseErr != nil || v.Total != 5 {
		t.Errorf("catalog failure must not disturb browse state")
	}
}

func TestRunSearch_TextVersusSemanticDistances(t *testing.T) {
	src := &fakeSource{
		textFn: func(string, string, filter.Clause, int) (*records.SearchResult, error) {
			return &records.SearchResult{Records: []record.Record{rec("a")}}, nil
		},
		semFn: func(string, string, filter.Clause, int) (*records.SearchResult, error) {
			return &records.SearchResult{Records: []record.Record{rec("a")}, Distances: []float64{0.2}}, nil
		},
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	s.RunSearch(context.Background(), "hello", false)
	if v := s.View(); v.Distances != nil {
		t.Errorf("text search must not carry distances, got %v", v.Distances)
	}

	s.RunSearch(context.Background(), "hello", true)
	if v := s.View(); v.Distances == nil {
		t.Error("semantic search must carry distances")
	}
}

func TestFilterEditLeavesActiveSearchUntouched(t *testing.T) {
	src := &fakeSource{
		textFn: func(string, string, filter.Clause, int) (*records.SearchResult, error) {
			return &records.SearchResult{Records: []record.Record{rec("hit")}}, nil
		},
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())
	s.RunSearch(context.Background(), "hello", false)

	if _, err := s.AddFilter(context.Background(), "type", filter.Eq, "text"); err != nil {
		t.Fatalf("add filter: %v", err)
	}

	v := s.View()
	if !v.SearchActive || len(v.Hits) != 1 {
		t.Errorf("filter edit must leave the active search results alone: %+v", v)
	}
	if _, text, _ := src.calls(); text != 1 {
		t.Errorf("filter edit must not re-run the search, got %d search calls", text)
	}
}

func TestClearSearch_ReusesPageWhenFiltersUnchanged(t *testing.T) {
	src := &fakeSource{}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())
	pageCallsBefore, _, _ := src.calls()

	s.RunSearch(context.Background(), "hello", false)
	s.ClearSearch(context.Background())

	if pageCalls, _, _ := src.calls(); pageCalls != pageCallsBefore {
		t.Errorf("clearing search without filter edits must reuse the loaded page")
	}
	if v := s.View(); v.SearchActive {
		t.Error("search should be inactive after clear")
	}
}

func TestClearSearch_NoRefetchWhenPageAlreadyCurrent(t *testing.T) {
	src := &fakeSource{}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	s.RunSearch(context.Background(), "hello", false)
	if _, err := s.AddFilter(context.Background(), "type", filter.Eq, "text"); err != nil {
		t.Fatalf("add filter: %v", err)
	}
	pageCallsBefore, _, _ := src.calls()

	s.ClearSearch(context.Background())
	if pageCalls, _, _ := src.calls(); pageCalls != pageCallsBefore {
		// AddFilter already refetched under the new filters, so the loaded
		// page is current and no extra fetch should happen.
		t.Errorf("expected no refetch, got %d extra calls", pageCalls-pageCallsBefore)
	}
}

func TestClearSearch_RefetchesWhenLoadedPageIsStale(t *testing.T) {
	var failFiltered bool
	src := &fakeSource{}
	src.pageFn = func(_ string, _, _ int, where filter.Clause) (*records.PageResult, error) {
		if failFiltered && len(where.Predicates()) > 0 {
			return nil, domain.ErrStoreUnavailable
		}
		return &records.PageResult{Total: 9}, nil
	}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())
	s.RunSearch(context.Background(), "hello", false)

	// The refetch triggered by the filter edit fails, so the loaded page
	// still reflects the pre-edit filters.
	failFiltered = true
	if _, err := s.AddFilter(context.Background(), "type", filter.Eq, "text"); err != nil {
		t.Fatalf("add filter: %v", err)
	}
	failFiltered = false
	pageCallsBefore, _, _ := src.calls()

	s.ClearSearch(context.Background())
	if pageCalls, _, _ := src.calls(); pageCalls != pageCallsBefore+1 {
		t.Errorf("expected one refetch, got %d", pageCalls-pageCallsBefore)
	}
	if v := s.View(); v.BrowseErr != nil {
		t.Errorf("refetch should have succeeded, got %v", v.BrowseErr)
	}
}

func TestApplyRawWhere(t *testing.T) {
	src := &fakeSource{pageFn: func(_ string, _, _ int, where filter.Clause) (*records.PageResult, error) {
		if where.IsUnparseable() {
			return nil, domain.ErrQueryRejected
		}
		return &records.PageResult{Total: 7}, nil
	}}
	s := newTestSession(src, &fakeCatalog{})
	s.Load(context.Background())

	// A flat conjunction becomes editable filter rows.
	err := s.ApplyRawWhere(context.Background(), []byte(`{"and":[{"type":{"eq":"text"}},{"year":{"gt":2020}}]}`))
	if err != nil {
		t.Fatalf("apply where: %v", err)
	}
	v := s.View()
	if len(v.Filters) != 2 {
		t.Fatalf("expected 2 filters from decompiled clause, got %d", len(v.Filters))
	}
	if v.Total != 7 || v.BrowseErr != nil {
		t.Errorf("unexpected browse state: total %d err %v", v.Total, v.BrowseErr)
	}

	// An or-group is kept verbatim; the backend rejects it and the error
	// lands in the browse slice.
	err = s.ApplyRawWhere(context.Background(), []byte(`{"or":[{"a":{"eq":"x"}},{"b":{"eq":"y"}}]}`))
	if err != nil {
		t.Fatalf("apply raw where: %v", err)
	}
	v = s.View()
	if len(v.Filters) != 0 {
		t.Errorf("unparseable clause must not produce filter rows")
	}
	if !v.Where.IsUnparseable() {
		t.Error("expected the raw clause to be kept verbatim")
	}
	if !errors.Is(v.BrowseErr, domain.ErrQueryRejected) {
		t.Errorf("expected rejection in browse slice, got %v", v.BrowseErr)
	}

	// Malformed JSON is reported to the caller and changes nothing.
	if err := s.ApplyRawWhere(context.Background(), []byte(`{oops`)); !errors.Is(err, filter.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for malformed JSON, got %v", err)
	}
}

func TestSwitchCollection(t *testing.T) {
	src := &fakeSource{}
	cat := &fakeCatalog{}
	s := newTestSession(src, cat)
	s.Load(context.Background())

	if err := s.SetPageSize(context.Background(), 50); err != nil {
		t.Fatalf("set page size: %v", err)
	}
	if _, err := s.AddFilter(context.Background(), "type", filter.Eq, "text"); err != nil {
		t.Fatalf("add filter: %v", err)
	}
	s.RunSearch(context.Background(), "hello", false)

	s.SwitchCollection(context.Background(), "images")

	v := s.View()
	if v.Collection != "images" {
		t.Errorf("expected collection images, got %s", v.Collection)
	}
	if len(v.Filters) != 0 || !v.Where.IsZero() {
		t.Error("filters are collection-scoped and must reset")
	}
	if v.SearchActive {
		t.Error("search is collection-scoped and must reset")
	}
	if v.PageSize != 50 {
		t.Errorf("page size preference must carry over, got %d", v.PageSize)
	}
	cat.mu.Lock()
	calls := cat.calls
	cat.mu.Unlock()
	if calls < 2 {
		t.Errorf("expected a catalog refresh for the new collection, got %d calls", calls)
	}
}
