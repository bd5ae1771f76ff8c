package propagation

import (
	"time"

	"github.com/google/uuid"

	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
)

// State of one update attempt.
type State string

const (
	StateIdle         State = "idle"
	StateValidating   State = "validating"
	StatePreviewReady State = "preview_ready"
	StateConfirming   State = "confirming"
	StateApplying     State = "applying"
	StateApplied      State = "applied"
	// StateFailed is transient: a failed write passes through it on the way
	// back to StatePreviewReady.
	StateFailed State = "failed"
)

var transitions = map[State][]State{
	StateIdle:         {StateValidating},
	StateValidating:   {StatePreviewReady, StateIdle},
	StatePreviewReady: {StateConfirming, StateIdle},
	StateConfirming:   {StateApplying},
	StateApplying:     {StateApplied, StateFailed},
	StateFailed:       {StatePreviewReady},
	StateApplied:      {StateIdle},
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Attempt is one proposed rate update. Values returned by the engine are
// copies; mutating them has no effect.
type Attempt struct {
	ID         uuid.UUID       `json:"id"`
	BranchID   models.BranchID `json:"branchId"`
	SessionID  string          `json:"-"`
	Rate       models.Rate     `json:"rate"`
	State      State           `json:"state"`
	ChangeSet  ChangeSet       `json:"changeSet"`
	LastError  string          `json:"lastError,omitempty"`
	Failures   int             `json:"failures"`
	ProposedAt time.Time       `json:"proposedAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// idleAttempt is what a caller sees when they own no attempt for a branch.
func idleAttempt(id models.BranchID) *Attempt {
	return &Attempt{BranchID: id, State: StateIdle}
}

func (a *Attempt) transition(to State, at time.Time) error {
	if !CanTransition(a.State, to) {
		return dErrors.New(dErrors.CodeInvariantViolation, "illegal transition "+string(a.State)+" -> "+string(to))
	}
	a.State = to
	a.UpdatedAt = at
	return nil
}

func (a *Attempt) clone() *Attempt {
	c := *a
	c.ChangeSet = a.ChangeSet.clone()
	return &c
}

func (a *Attempt) inFlight() bool {
	return a.State == StateConfirming || a.State == StateApplying
}
