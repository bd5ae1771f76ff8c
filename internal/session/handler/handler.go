package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	branchmodels "branchrate/internal/branch/models"
	"branchrate/internal/platform/metrics"
	"branchrate/internal/session/service"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/requestcontext"
)

// Service defines the session operations the handler needs.
type Service interface {
	Login(ctx context.Context, rawBranchID, userAgent string) (*service.LoginResult, error)
	LogoutByID(ctx context.Context, sessionID string) error
}

// Directory is the read side used by the dashboard.
type Directory interface {
	GetByID(id branchmodels.BranchID) (branchmodels.Branch, bool)
	ChildrenOf(id branchmodels.BranchID) []branchmodels.Branch
	DescendantsOf(id branchmodels.BranchID) []branchmodels.Branch
	Err() error
}

// Handler serves /api/session.
type Handler struct {
	sessions  Service
	directory Directory
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onLogout  []func(sessionID string)
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogoutHook runs fn after a successful logout, e.g. to drop the
// session's pending rate updates.
func WithLogoutHook(fn func(sessionID string)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.onLogout = append(h.onLogout, fn)
		}
	}
}

func New(sessions Service, directory Directory, opts ...Option) *Handler {
	h := &Handler{
		sessions:  sessions,
		directory: directory,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the session routes. requireSession guards everything but
// login.
func (h *Handler) Register(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Post("/api/session", h.handleLogin)
	r.With(requireSession).Get("/api/session", h.handleDashboard)
	r.With(requireSession).Delete("/api/session", h.handleLogout)
}

type loginRequest struct {
	BranchID branchmodels.BranchID `json:"branchId"`
}

func (r *loginRequest) Validate() error {
	id, err := branchmodels.ParseBranchID(string(r.BranchID))
	if err != nil {
		return err
	}
	r.BranchID = id
	return nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[loginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	userAgent := requestcontext.UserAgent(ctx)
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	res, err := h.sessions.Login(ctx, req.BranchID.String(), userAgent)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"branch_id", req.BranchID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementSessions()
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestcontext.SessionID(ctx)

	if err := h.sessions.LogoutByID(ctx, sessionID); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	for _, fn := range h.onLogout {
		fn(sessionID)
	}
	h.metrics.DecrementSessions()
	w.WriteHeader(http.StatusNoContent)
}

// DashboardResponse summarises the logged-in branch.
type DashboardResponse struct {
	SessionID        string                `json:"sessionId"`
	Branch           branchmodels.Branch   `json:"branch"`
	Parent           *branchmodels.Branch  `json:"parent,omitempty"`
	Rate             branchmodels.Rate     `json:"rate"`
	CanManage        bool                  `json:"canManageDescendants"`
	ChildrenCount    int                   `json:"childrenCount"`
	DescendantsCount int                   `json:"descendantsCount"`
	Children         []branchmodels.Branch `json:"children"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.directory.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	branchID := branchmodels.BranchID(requestcontext.BranchID(ctx))
	branch, ok := h.directory.GetByID(branchID)
	if !ok {
		// The branch vanished from the directory after login.
		httputil.WriteError(w, dErrors.New(dErrors.CodeBranchNotFound, "session branch no longer exists"))
		return
	}

	children := h.directory.ChildrenOf(branch.ID)
	resp := DashboardResponse{
		SessionID:        requestcontext.SessionID(ctx),
		Branch:           branch,
		Rate:             branch.Rate,
		CanManage:        branch.CanManageDescendants(),
		ChildrenCount:    len(children),
		DescendantsCount: len(h.directory.DescendantsOf(branch.ID)),
		Children:         children,
	}
	if branch.ParentID != nil {
		if parent, ok := h.directory.GetByID(*branch.ParentID); ok {
			resp.Parent = &parent
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
