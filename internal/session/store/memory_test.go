package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"branchrate/internal/session/models"
	"branchrate/pkg/platform/sentinel"
)

type InMemorySessionSuite struct {
	suite.Suite
	store *InMemory
	now   time.Time
	ctx   context.Context
}

func TestInMemorySessionSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionSuite))
}

func (s *InMemorySessionSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory()
	s.store.now = func() time.Time { return s.now }
}

func (s *InMemorySessionSuite) newSession(ttl time.Duration) *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		BranchID:  "2",
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(ttl),
	}
}

func (s *InMemorySessionSuite) TestSaveFindDelete() {
	session := s.newSession(time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, session))

	found, err := s.store.Find(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.BranchID, found.BranchID)

	s.Require().NoError(s.store.Delete(s.ctx, session.ID))
	_, err = s.store.Find(s.ctx, session.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Delete(s.ctx, session.ID), "delete is idempotent")
}

func (s *InMemorySessionSuite) TestExpiredIsAbsent() {
	session := s.newSession(time.Minute)
	s.Require().NoError(s.store.Save(s.ctx, session))
	s.now = s.now.Add(2 * time.Minute)

	_, err := s.store.Find(s.ctx, session.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
