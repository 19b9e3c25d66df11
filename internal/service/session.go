// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session represents one authenticated browser session.
type Session struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// SessionService manages in-memory login sessions for the task API.
// Sessions are lost on restart; clients re-authenticate through OIDC.
type SessionService struct {
	sessions map[string]*Session
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewSessionService creates a session store with the given session lifetime.
func NewSessionService(ttl time.Duration) *SessionService {
	return &SessionService{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// CreateSession creates a new session for the given user and returns its ID.
func (s *SessionService) CreateSession(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.sessions[id] = &Session{
		ID:        id,
		Email:     email,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	return id
}

// GetSession returns the session for the given ID, or nil if it does not
// exist or has expired. Expired sessions are removed lazily.
func (s *SessionService) GetSession(id string) *Session {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		s.DeleteSession(id)
		return nil
	}
	return session
}

// ValidateSession reports whether the given session ID is valid.
func (s *SessionService) ValidateSession(id string) bool {
	return s.GetSession(id) != nil
}

// DeleteSession removes a session (logout).
func (s *SessionService) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
