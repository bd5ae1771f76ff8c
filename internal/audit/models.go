package audit

import "time"

// Action names a rate-update lifecycle event.
type Action string

const (
	ActionRateProposed     Action = "rate_proposed"
	ActionRateApplied      Action = "rate_applied"
	ActionRateUpdateFailed Action = "rate_update_failed"
	ActionRateCancelled    Action = "rate_cancelled"
	ActionSessionCreated   Action = "session_created"
	ActionSessionRevoked   Action = "session_revoked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	SessionID string    `json:"sessionId,omitempty"`
	// ActorBranchID is the branch of the caller; BranchID is the branch acted on.
	ActorBranchID string   `json:"actorBranchId,omitempty"`
	BranchID      string   `json:"branchId,omitempty"`
	Rate          string   `json:"rate,omitempty"`
	Affected      []string `json:"affected,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	RequestID     string   `json:"requestId,omitempty"`
}
