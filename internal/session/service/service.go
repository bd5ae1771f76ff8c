// Package service logs callers in against a branch and resolves bearer
// tokens back to sessions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"branchrate/internal/audit"
	branchmodels "branchrate/internal/branch/models"
	"branchrate/internal/session/models"
	"branchrate/internal/session/store"
	"branchrate/internal/session/token"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/sentinel"
	"branchrate/pkg/requestcontext"
)

const DefaultTTL = 12 * time.Hour

// BranchLookup resolves login targets. *directory.Directory implements it.
type BranchLookup interface {
	GetByID(id branchmodels.BranchID) (branchmodels.Branch, bool)
	Err() error
}

type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store    store.Store
	branches BranchLookup
	tokens   *token.Service
	ttl      time.Duration
	logger   *slog.Logger
	audit    AuditEmitter
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAudit(a AuditEmitter) Option {
	return func(s *Service) {
		s.audit = a
	}
}

func New(st store.Store, branches BranchLookup, tokens *token.Service, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("session store is required")
	}
	if branches == nil {
		return nil, errors.New("branch lookup is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	s := &Service{
		store:    st,
		branches: branches,
		tokens:   tokens,
		ttl:      DefaultTTL,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token   string              `json:"token"`
	Session *models.Session     `json:"session"`
	Branch  branchmodels.Branch `json:"branch"`
}

// Login associates the caller with branchID. The branch must exist in the
// directory.
func (s *Service) Login(ctx context.Context, rawBranchID, userAgent string) (*LoginResult, error) {
	branchID, err := branchmodels.ParseBranchID(rawBranchID)
	if err != nil {
		return nil, err
	}
	if err := s.branches.Err(); err != nil {
		if dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "branch directory unavailable")
	}
	branch, ok := s.branches.GetByID(branchID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBranchNotFound, "invalid branch id")
	}

	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:        uuid.New(),
		BranchID:  branch.ID,
		Device:    models.DeviceLabel(userAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}
	tok, err := s.tokens.Issue(session.ID, branch.ID, session.ExpiresAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.emit(ctx, audit.ActionSessionCreated, session)
	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID.String(),
		"branch_id", branch.ID.String(),
		"device", session.Device,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &LoginResult{Token: tok, Session: session, Branch: branch}, nil
}

// Logout deletes the session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, session *models.Session) error {
	if err := s.store.Delete(ctx, session.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session")
	}
	s.emit(ctx, audit.ActionSessionRevoked, session)
	s.logger.InfoContext(ctx, "session revoked",
		"session_id", session.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Resolve validates a bearer token and loads its session.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*models.Session, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	session, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session not found or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return session, nil
}

// Authenticate resolves a token to its session and branch ids for the
// session middleware.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (string, string, error) {
	session, err := s.Resolve(ctx, tokenString)
	if err != nil {
		return "", "", err
	}
	return session.ID.String(), session.BranchID.String(), nil
}

// LogoutByID looks the session up and logs it out. An unknown or expired
// session is already logged out.
func (s *Service) LogoutByID(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid session id")
	}
	session, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return s.Logout(ctx, session)
}

func (s *Service) emit(ctx context.Context, action audit.Action, session *models.Session) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:        action,
		SessionID:     session.ID.String(),
		ActorBranchID: session.BranchID.String(),
		BranchID:      session.BranchID.String(),
		Reason:        session.Device,
		RequestID:     requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}
