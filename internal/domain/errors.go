// Package domain holds cross-layer contracts and sentinel errors.
package domain

import "errors"

var (
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrSessionNotFound signals a missing browse session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQueryRejected signals a query the store backend cannot execute.
	ErrQueryRejected = errors.New("query rejected")
	// ErrStoreUnavailable signals an unreachable record store.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
