package models

import (
	"time"

	"github.com/google/uuid"

	branchmodels "branchrate/internal/branch/models"
)

// Session associates one caller with exactly one branch between login and
// logout.
type Session struct {
	ID        uuid.UUID             `json:"id"`
	BranchID  branchmodels.BranchID `json:"branchId"`
	Device    string                `json:"device,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL returns the remaining lifetime at now, never negative.
func (s *Session) TTL(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
