// Package chi provides the HTTP API over record browsing: stateless
// collection queries plus stateful browsing sessions.
package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vecscope/vecscope/internal/browser"
	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
	"github.com/vecscope/vecscope/internal/repository/records"
	"github.com/vecscope/vecscope/internal/store"
)

// Limits for stateless query endpoints.
const (
	defaultQueryLimit = 25
	maxQueryLimit     = 100
	defaultHitLimit   = 50
	maxHitLimit       = 200
	maxWhereBytes     = 1 << 16
)

// RecordSource is the consumer interface for collection reads (ISP).
type RecordSource interface {
	browser.Source
	Collections(ctx context.Context) ([]store.CollectionInfo, error)
}

// Server handles the HTTP API.
type Server struct {
	source   RecordSource
	catalog  browser.FieldCatalog
	sessions *SessionManager
	pinger   store.Pinger
	embedder domain.HealthChecker
	logger   *zap.Logger
	opts     browser.Options

	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. The embedder health checker may be
// nil when semantic search is disabled.
func NewServer(
	source RecordSource,
	cat browser.FieldCatalog,
	sessions *SessionManager,
	pinger store.Pinger,
	embedder domain.HealthChecker,
	logger *zap.Logger,
	opts browser.Options,
) *Server {
	return &Server{
		source:        source,
		catalog:       cat,
		sessions:      sessions,
		pinger:        pinger,
		embedder:      embedder,
		logger:        logger,
		opts:          opts,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts all API routes on a new router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/collections", s.ListCollections)
		r.Post("/collections/{collection}/query", s.QueryRecords)
		r.Post("/collections/{collection}/search", s.SearchRecords)
		r.Get("/collections/{collection}/fields", s.ListFields)

		r.Post("/sessions", s.CreateSession)
		r.Route("/sessions/{session}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/page", s.SetPage)
			r.Put("/page-size", s.SetPageSize)
			r.Post("/filters", s.AddFilter)
			r.Delete("/filters", s.ClearFilters)
			r.Put("/filters/{filter}", s.UpdateFilter)
			r.Delete("/filters/{filter}", s.RemoveFilter)
			r.Put("/where", s.ApplyWhere)
			r.Post("/search", s.RunSearch)
			r.Delete("/search", s.ClearSearch)
			r.Put("/collection", s.SwitchCollection)
			r.Post("/catalog/refresh", s.RefreshCatalog)
		})
	})

	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["store"] = "fail"
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	if s.embedder != nil {
		if err := s.embedder.HealthCheck(r.Context()); err != nil {
			checks["embedding"] = "fail"
			healthy = false
		} else {
			checks["embedding"] = "ok"
		}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// ListCollections handles GET /api/v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	infos, err := s.source.Collections(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionsToDTO(infos))
}

// QueryRecords handles POST /api/v1/collections/{collection}/query.
func (s *Server) QueryRecords(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Offset < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "offset must not be negative")
		return
	}
	limit := clampLimit(req.Limit, defaultQueryLimit, maxQueryLimit)

	where, err := filter.ParseClause(req.Where)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	page, err := s.source.Page(r.Context(), collection, req.Offset, limit, where)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Records: recordsToDTO(page.Records),
		Total:   page.Total,
	})
}

// SearchRecords handles POST /api/v1/collections/{collection}/search.
func (s *Server) SearchRecords(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}
	limit := clampLimit(req.Limit, defaultHitLimit, maxHitLimit)

	where, err := filter.ParseClause(req.Where)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	var result *records.SearchResult
	if req.Semantic {
		result, err = s.source.SemanticSearch(r.Context(), collection, req.Query, where, limit)
	} else {
		result, err = s.source.TextSearch(r.Context(), collection, req.Query, where, limit)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Records:   recordsToDTO(result.Records),
		Distances: result.Distances,
	})
}

// ListFields handles GET /api/v1/collections/{collection}/fields.
func (s *Server) ListFields(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	fields, err := s.catalog.Refresh(r.Context(), collection)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fieldListResponse{Fields: fieldsToDTO(fields)})
}

// CreateSession handles POST /api/v1/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collection is required")
		return
	}

	opts := s.opts
	if req.PageSize != 0 {
		opts.PageSize = req.PageSize
	}

	session := browser.NewSession(s.source, s.catalog, s.logger, req.Collection, opts)
	session.Load(r.Context())
	id := s.sessions.Add(session)

	writeJSON(w, http.StatusCreated, viewToDTO(id, session.View()))
}

// GetSession handles GET /api/v1/sessions/{session}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// DeleteSession handles DELETE /api/v1/sessions/{session}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(chi.URLParam(r, "session")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPage handles PUT /api/v1/sessions/{session}/page.
func (s *Server) SetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := session.SetPage(r.Context(), req.Page); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// SetPageSize handles PUT /api/v1/sessions/{session}/page-size.
func (s *Server) SetPageSize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req pageSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := session.SetPageSize(r.Context(), req.PageSize); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// AddFilter handles POST /api/v1/sessions/{session}/filters.
func (s *Server) AddFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if _, err := session.AddFilter(r.Context(), req.Field, filter.Operator(req.Op), req.Value); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewToDTO(id, session.View()))
}

// UpdateFilter handles PUT /api/v1/sessions/{session}/filters/{filter}.
func (s *Server) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	filterID := chi.URLParam(r, "filter")
	if _, err := session.UpdateFilter(r.Context(), filterID, req.Field, filter.Operator(req.Op), req.Value); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// RemoveFilter handles DELETE /api/v1/sessions/{session}/filters/{filter}.
func (s *Server) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := session.RemoveFilter(r.Context(), chi.URLParam(r, "filter")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// ClearFilters handles DELETE /api/v1/sessions/{session}/filters.
func (s *Server) ClearFilters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	session.ClearFilters(r.Context())
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// ApplyWhere handles PUT /api/v1/sessions/{session}/where. The body is the
// where clause JSON itself, not a wrapper object.
func (s *Server) ApplyWhere(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWhereBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read request body: "+err.Error())
		return
	}

	if err := session.ApplyRawWhere(r.Context(), body); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// RunSearch handles POST /api/v1/sessions/{session}/search.
func (s *Server) RunSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req sessionSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	session.RunSearch(r.Context(), req.Query, req.Semantic)
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// ClearSearch handles DELETE /api/v1/sessions/{session}/search.
func (s *Server) ClearSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	session.ClearSearch(r.Context())
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// SwitchCollection handles PUT /api/v1/sessions/{session}/collection.
func (s *Server) SwitchCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var req switchCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collection is required")
		return
	}

	session.SwitchCollection(r.Context(), req.Collection)
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

// RefreshCatalog handles POST /api/v1/sessions/{session}/catalog/refresh.
func (s *Server) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	session, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	session.RefreshCatalog(r.Context())
	writeJSON(w, http.StatusOK, viewToDTO(id, session.View()))
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
