package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events and fans them out to every sink. A failing sink
// does not stop delivery to the others.
type Publisher struct {
	sinks []Sink
	now   func() time.Time
}

func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = p.now()
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Append(ctx, base); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"action", string(e.Action),
		"branch_id", e.BranchID,
		"actor_branch_id", e.ActorBranchID,
		"session_id", e.SessionID,
		"rate", e.Rate,
		"affected", len(e.Affected),
		"reason", e.Reason,
		"request_id", e.RequestID,
	)
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Actions lists the action of every event in order.
func (s *MemorySink) Actions() []Action {
	events := s.Events()
	out := make([]Action, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
