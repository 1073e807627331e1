package chi

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vecscope/vecscope/internal/browser"
	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/metrics"
)

// SessionManager holds the live browser sessions keyed by opaque ID.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*browser.Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*browser.Session)}
}

// Add registers a session and returns its new ID.
func (m *SessionManager) Add(s *browser.Session) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metrics.BrowserSessionsActive.Inc()
	return id
}

// Get returns a session by ID.
func (m *SessionManager) Get(id string) (*browser.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Remove deletes a session by ID.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	metrics.BrowserSessionsActive.Dec()
	return nil
}
