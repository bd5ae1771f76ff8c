package propagation

import (
	"context"

	"branchrate/internal/audit"
	"branchrate/internal/branch/models"
)

// Directory is the read side of the branch forest. *directory.Directory
// implements it.
type Directory interface {
	GetByID(id models.BranchID) (models.Branch, bool)
	DescendantsOf(id models.BranchID) []models.Branch
	Err() error
	Refresh(ctx context.Context) error
}

// RateWriter performs the single external write for a confirmed update.
type RateWriter interface {
	WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error
}

// AuditEmitter receives lifecycle events. Emission is best-effort.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Caller identifies who is acting. BranchID is resolved against the
// directory on every call, never trusted as a cached Branch.
type Caller struct {
	SessionID string
	BranchID  models.BranchID
}
