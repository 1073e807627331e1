package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vecscope/vecscope/internal/browser"
	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
)

// errorCode is the machine-readable error identifier in error responses.
type errorCode string

const (
	codeBadRequest         errorCode = "bad_request"
	codeValidationFailed   errorCode = "validation_failed"
	codeCollectionNotFound errorCode = "collection_not_found"
	codeSessionNotFound    errorCode = "session_not_found"
	codeFilterNotFound     errorCode = "filter_not_found"
	codeSearchActive       errorCode = "search_active"
	codeQueryRejected      errorCode = "query_rejected"
	codeEmbeddingProvider  errorCode = "embedding_provider_error"
	codeStoreUnavailable   errorCode = "store_unavailable"
	codeInternalError      errorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// defaultErrorHandlers maps sentinels to HTTP statuses in match order.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound),
		sentinelHandler(browser.ErrFilterNotFound, http.StatusNotFound, codeFilterNotFound),
		sentinelHandler(browser.ErrSearchActive, http.StatusConflict, codeSearchActive),
		sentinelHandler(browser.ErrInvalidPage, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(browser.ErrInvalidPageSize, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(filter.ErrInvalidFilter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrQueryRejected, http.StatusUnprocessableEntity, codeQueryRejected),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrSessionNotFound,
		domain.ErrQueryRejected,
		domain.ErrEmbeddingProviderError,
		domain.ErrStoreUnavailable,
		browser.ErrFilterNotFound,
		browser.ErrSearchActive,
		browser.ErrInvalidPage,
		browser.ErrInvalidPageSize,
		filter.ErrInvalidFilter,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
