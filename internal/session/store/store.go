// Package store persists sessions. Both implementations treat an expired
// session as absent.
package store

import (
	"context"

	"github.com/google/uuid"

	"branchrate/internal/session/models"
)

type Store interface {
	Save(ctx context.Context, s *models.Session) error
	Find(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*Redis)(nil)
)
