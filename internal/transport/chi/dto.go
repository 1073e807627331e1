package chi

import (
	"encoding/json"

	"github.com/vecscope/vecscope/internal/browser"
	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/domain/record"
	"github.com/vecscope/vecscope/internal/store"
)

// --- Requests ---

type queryRequest struct {
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
	Where  json.RawMessage `json:"where,omitempty"`
}

type searchRequest struct {
	Query    string          `json:"query"`
	Semantic bool            `json:"semantic"`
	Limit    int             `json:"limit"`
	Where    json.RawMessage `json:"where,omitempty"`
}

type createSessionRequest struct {
	Collection string `json:"collection"`
	PageSize   int    `json:"page_size"`
}

type filterRequest struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type pageSizeRequest struct {
	PageSize int `json:"page_size"`
}

type sessionSearchRequest struct {
	Query    string `json:"query"`
	Semantic bool   `json:"semantic"`
}

type switchCollectionRequest struct {
	Collection string `json:"collection"`
}

// --- Responses ---

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type collectionItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type collectionListResponse struct {
	Items []collectionItem `json:"items"`
}

// recordDTO keeps the document field nullable so an absent document is
// distinguishable from an empty one.
type recordDTO struct {
	ID       string           `json:"id"`
	Document *string          `json:"document"`
	Metadata *record.Metadata `json:"metadata"`
	Vector   []float32        `json:"vector,omitempty"`
}

type pageResponse struct {
	Records []recordDTO `json:"records"`
	Total   int         `json:"total"`
}

// searchResponse reports distances as null for text search and as an array
// for semantic search.
type searchResponse struct {
	Records   []recordDTO `json:"records"`
	Distances []float64   `json:"distances"`
}

type fieldDTO struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	SampleValues []record.Value `json:"sample_values"`
}

type fieldListResponse struct {
	Fields []fieldDTO `json:"fields"`
}

type filterDTO struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type sessionSearchView struct {
	Query     string      `json:"query"`
	Semantic  bool        `json:"semantic"`
	Hits      []recordDTO `json:"hits"`
	Distances []float64   `json:"distances"`
	Error     string      `json:"error,omitempty"`
}

type sessionView struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`

	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	Records    []recordDTO `json:"records"`
	BrowseErr  string      `json:"browse_error,omitempty"`

	Filters []filterDTO   `json:"filters"`
	Where   filter.Clause `json:"where"`

	Search *sessionSearchView `json:"search,omitempty"`

	Fields     []fieldDTO `json:"fields"`
	CatalogErr string     `json:"catalog_error,omitempty"`
}

// --- Converters ---

func recordToDTO(r record.Record) recordDTO {
	dto := recordDTO{
		ID:       r.ID(),
		Metadata: r.Metadata(),
		Vector:   r.Vector(),
	}
	if doc, ok := r.Document(); ok {
		dto.Document = &doc
	}
	return dto
}

func recordsToDTO(rs []record.Record) []recordDTO {
	out := make([]recordDTO, len(rs))
	for i, r := range rs {
		out[i] = recordToDTO(r)
	}
	return out
}

func collectionsToDTO(infos []store.CollectionInfo) collectionListResponse {
	items := make([]collectionItem, len(infos))
	for i, info := range infos {
		items[i] = collectionItem{Name: info.Name, Count: info.Count}
	}
	return collectionListResponse{Items: items}
}

func fieldsToDTO(fields []catalog.Field) []fieldDTO {
	out := make([]fieldDTO, len(fields))
	for i, f := range fields {
		samples := f.SampleValues()
		if samples == nil {
			samples = []record.Value{}
		}
		out[i] = fieldDTO{Name: f.Name(), Type: f.Type(), SampleValues: samples}
	}
	return out
}

func filterToDTO(f filter.Filter) filterDTO {
	return filterDTO{
		ID:    f.ID(),
		Field: f.Field(),
		Op:    string(f.Op()),
		Value: f.Value(),
	}
}

func viewToDTO(id string, v browser.View) sessionView {
	out := sessionView{
		ID:         id,
		Collection: v.Collection,
		Page:       v.Page,
		PageSize:   v.PageSize,
		Total:      v.Total,
		TotalPages: v.TotalPages,
		Records:    recordsToDTO(v.Records),
		Where:      v.Where,
		Fields:     fieldsToDTO(v.Fields),
	}
	if v.BrowseErr != nil {
		out.BrowseErr = v.BrowseErr.Error()
	}
	if v.CatalogErr != nil {
		out.CatalogErr = v.CatalogErr.Error()
	}

	out.Filters = make([]filterDTO, len(v.Filters))
	for i, f := range v.Filters {
		out.Filters[i] = filterToDTO(f)
	}

	if v.SearchActive {
		search := &sessionSearchView{
			Query:     v.SearchQuery,
			Semantic:  v.Semantic,
			Hits:      recordsToDTO(v.Hits),
			Distances: v.Distances,
		}
		if v.SearchErr != nil {
			search.Error = v.SearchErr.Error()
		}
		out.Search = search
	}
	return out
}
