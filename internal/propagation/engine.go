// Package propagation validates proposed branch rates, previews their blast
// radius over the branch forest and applies them with a single external
// write.
//
// Each branch has at most one live attempt, owned by the session that
// proposed it. A new proposal supersedes a PreviewReady or Applied attempt;
// anything arriving while an attempt is being applied is rejected with
// Conflict.
package propagation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"branchrate/internal/audit"
	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/requestcontext"
)

const DefaultWriteTimeout = 10 * time.Second

type Engine struct {
	directory    Directory
	writer       RateWriter
	audit        AuditEmitter
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	writeTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	attempts map[models.BranchID]*Attempt
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAudit(a AuditEmitter) Option {
	return func(e *Engine) {
		e.audit = a
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer("branchrate/propagation")
		}
	}
}

// WithWriteTimeout bounds the external write. Non-positive values keep the
// default.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.writeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(directory Directory, writer RateWriter, opts ...Option) (*Engine, error) {
	if directory == nil {
		return nil, errors.New("directory is required")
	}
	if writer == nil {
		return nil, errors.New("rate writer is required")
	}
	e := &Engine{
		directory:    directory,
		writer:       writer,
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer("branchrate/propagation"),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		attempts:     make(map[models.BranchID]*Attempt),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ComputeAffected returns the change-set for setting rate on branchID: the
// branch itself followed by its descendants.
func (e *Engine) ComputeAffected(branchID models.BranchID, rate models.Rate) (ChangeSet, error) {
	if err := e.directoryErr(); err != nil {
		return ChangeSet{}, err
	}
	root, ok := e.directory.GetByID(branchID)
	if !ok {
		return ChangeSet{}, dErrors.New(dErrors.CodeBranchNotFound, "branch "+branchID.String()+" not found")
	}
	return newChangeSet(root, e.directory.DescendantsOf(branchID), rate), nil
}

// ProposeRate checks permission, parses raw and stores a PreviewReady
// attempt. A failed proposal leaves any previous attempt untouched.
func (e *Engine) ProposeRate(ctx context.Context, caller Caller, branchID models.BranchID, raw string) (*Attempt, error) {
	ctx, span := e.tracer.Start(ctx, "propagation.ProposeRate", trace.WithAttributes(
		attribute.String("branch.id", branchID.String()),
		attribute.String("caller.branch_id", caller.BranchID.String()),
	))
	defer span.End()

	attempt, superseded, err := e.propose(caller, branchID, raw)
	if err != nil {
		e.recordError(ctx, span, "propose", branchID, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("changeset.size", attempt.ChangeSet.Len()))

	if superseded != nil && superseded.State == StatePreviewReady {
		e.metrics.incCancelled()
		e.emit(ctx, caller, audit.ActionRateCancelled, superseded, "superseded")
	}
	e.metrics.incProposals(attempt.ChangeSet.Len())
	e.emit(ctx, caller, audit.ActionRateProposed, attempt, "")
	e.logger.InfoContext(ctx, "rate proposed",
		"branch_id", branchID.String(),
		"rate", attempt.Rate.String(),
		"affected", attempt.ChangeSet.Len(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return attempt, nil
}

func (e *Engine) propose(caller Caller, branchID models.BranchID, raw string) (attempt, superseded *Attempt, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.attempts[branchID]
	if prev != nil && prev.inFlight() {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "a rate update for this branch is being applied")
	}
	if err := e.authorize(caller, branchID); err != nil {
		return nil, nil, err
	}

	now := e.now()
	a := &Attempt{
		ID:         uuid.New(),
		BranchID:   branchID,
		SessionID:  caller.SessionID,
		State:      StateIdle,
		ProposedAt: now,
		UpdatedAt:  now,
	}
	if err := a.transition(StateValidating, now); err != nil {
		return nil, nil, err
	}
	rate, err := models.ParseRate(raw)
	if err != nil {
		return nil, nil, err
	}
	cs, err := e.ComputeAffected(branchID, rate)
	if err != nil {
		return nil, nil, err
	}
	a.Rate = rate
	a.ChangeSet = cs
	if err := a.transition(StatePreviewReady, now); err != nil {
		return nil, nil, err
	}

	if prev != nil {
		superseded = prev.clone()
		_ = prev.transition(StateIdle, now)
	}
	e.attempts[branchID] = a
	return a.clone(), superseded, nil
}

// ConfirmUpdate applies the caller's PreviewReady attempt with exactly one
// RateWriter call. On failure the attempt returns to PreviewReady with the
// same change-set and the UpdateFailed error is returned alongside it.
//
// The write and the follow-up refresh are detached from ctx cancellation: a
// caller that goes away abandons the result, not the write.
func (e *Engine) ConfirmUpdate(ctx context.Context, caller Caller, branchID models.BranchID) (*Attempt, error) {
	ctx, span := e.tracer.Start(ctx, "propagation.ConfirmUpdate", trace.WithAttributes(
		attribute.String("branch.id", branchID.String()),
	))
	defer span.End()

	a, err := e.beginApply(caller, branchID)
	if err != nil {
		e.recordError(ctx, span, "confirm", branchID, err)
		return nil, err
	}

	start := time.Now()
	root, rate := a.ChangeSet.Root, a.ChangeSet.Rate
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.writeTimeout)
	werr := e.writer.WriteRate(writeCtx, root, rate)
	timedOut := werr != nil && errors.Is(writeCtx.Err(), context.DeadlineExceeded)
	cancel()

	if werr != nil {
		out := e.finishFailed(a, werr)
		msg := "rate update failed"
		if timedOut {
			msg = "rate update timed out after " + e.writeTimeout.String()
		}
		err := dErrors.Wrap(werr, dErrors.CodeUpdateFailed, msg)
		span.SetAttributes(attribute.Bool("write.timeout", timedOut))
		e.recordError(ctx, span, "confirm", branchID, err)
		e.emit(ctx, caller, audit.ActionRateUpdateFailed, out, werr.Error())
		return out, err
	}

	if rerr := e.directory.Refresh(context.WithoutCancel(ctx)); rerr != nil {
		e.logger.WarnContext(ctx, "directory refresh after rate write failed",
			"branch_id", branchID.String(),
			"error", rerr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	out := e.finishApplied(a)
	e.metrics.incApplied(start)
	e.emit(ctx, caller, audit.ActionRateApplied, out, "")
	e.logger.InfoContext(ctx, "rate applied",
		"branch_id", branchID.String(),
		"rate", rate.String(),
		"affected", out.ChangeSet.Len(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return out, nil
}

func (e *Engine) beginApply(caller Caller, branchID models.BranchID) (*Attempt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.owned(caller, branchID)
	if a == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "no rate update is awaiting confirmation for this branch")
	}
	switch a.State {
	case StatePreviewReady:
	case StateApplied:
		return nil, dErrors.New(dErrors.CodeConflict, "rate update already applied")
	default:
		return nil, dErrors.New(dErrors.CodeConflict, "a rate update for this branch is being applied")
	}
	if err := e.authorize(caller, branchID); err != nil {
		return nil, err
	}
	now := e.now()
	if err := a.transition(StateConfirming, now); err != nil {
		return nil, err
	}
	if err := a.transition(StateApplying, now); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) finishFailed(a *Attempt, cause error) *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	_ = a.transition(StateFailed, now)
	_ = a.transition(StatePreviewReady, now)
	a.LastError = cause.Error()
	a.Failures++
	return a.clone()
}

func (e *Engine) finishApplied(a *Attempt) *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = a.transition(StateApplied, e.now())
	a.ChangeSet.markApplied()
	a.LastError = ""
	return a.clone()
}

// Cancel discards the caller's attempt for branchID. Cancelling nothing is
// not an error; cancelling while the write is in flight is a Conflict.
func (e *Engine) Cancel(ctx context.Context, caller Caller, branchID models.BranchID) error {
	e.mu.Lock()
	a := e.owned(caller, branchID)
	if a == nil {
		e.mu.Unlock()
		return nil
	}
	if a.inFlight() {
		e.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "a rate update for this branch is being applied")
	}
	wasPreview := a.State == StatePreviewReady
	_ = a.transition(StateIdle, e.now())
	delete(e.attempts, branchID)
	out := a.clone()
	e.mu.Unlock()

	if wasPreview {
		e.metrics.incCancelled()
		e.emit(ctx, caller, audit.ActionRateCancelled, out, "cancelled")
	}
	return nil
}

// Attempt returns the caller's attempt for branchID, or an Idle placeholder.
func (e *Engine) Attempt(caller Caller, branchID models.BranchID) *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a := e.owned(caller, branchID); a != nil {
		return a.clone()
	}
	return idleAttempt(branchID)
}

// DiscardSession drops every attempt owned by sessionID that is not in
// flight. Returns how many were dropped.
func (e *Engine) DiscardSession(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id, a := range e.attempts {
		if a.SessionID == sessionID && !a.inFlight() {
			delete(e.attempts, id)
			n++
		}
	}
	return n
}

func (e *Engine) owned(caller Caller, branchID models.BranchID) *Attempt {
	a := e.attempts[branchID]
	if a == nil || a.SessionID != caller.SessionID {
		return nil
	}
	return a
}

func (e *Engine) directoryErr() error {
	err := e.directory.Err()
	if err == nil {
		return nil
	}
	if dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "branch directory unavailable")
}

func (e *Engine) recordError(ctx context.Context, span trace.Span, op string, branchID models.BranchID, err error) {
	code := dErrors.CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	e.metrics.incFailure(string(code))
	e.logger.WarnContext(ctx, "rate update rejected",
		"op", op,
		"branch_id", branchID.String(),
		"code", string(code),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (e *Engine) emit(ctx context.Context, caller Caller, action audit.Action, a *Attempt, reason string) {
	if e.audit == nil {
		return
	}
	event := audit.Event{
		Timestamp:     e.now(),
		Action:        action,
		SessionID:     caller.SessionID,
		ActorBranchID: caller.BranchID.String(),
		BranchID:      a.BranchID.String(),
		Rate:          a.Rate.String(),
		Affected:      idStrings(a.ChangeSet.IDs()),
		Reason:        reason,
		RequestID:     requestcontext.RequestID(ctx),
	}
	if err := e.audit.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}
