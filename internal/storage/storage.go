package storage

import (
	"sync"
	"time"

	"github.com/artifex-heritage/artifex/internal/models"
)

// SessionStore holds admin sessions in memory, keyed by token.
type SessionStore struct {
	sessions map[string]*models.AdminSession
	mu       sync.RWMutex
	now      func() time.Time
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.AdminSession),
		now:      time.Now,
	}
}

// Get returns a live session. Expired sessions are dropped on access.
func (s *SessionStore) Get(token string) (*models.AdminSession, bool) {
	s.mu.RLock()
	session, exists := s.sessions[token]
	s.mu.RUnlock()
	if !exists {
		return nil, false
	}
	if session.Expired(s.now()) {
		s.Delete(token)
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Set(token string, session *models.AdminSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session
}

func (s *SessionStore) GetAll() map[string]*models.AdminSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*models.AdminSession, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Prune drops every expired session and returns how many were removed.
func (s *SessionStore) Prune() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
