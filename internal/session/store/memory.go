package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"branchrate/internal/session/models"
	"branchrate/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.Session
	now      func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[uuid.UUID]models.Session), now: time.Now}
}

func (s *InMemory) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *InMemory) Find(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.IsExpired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
