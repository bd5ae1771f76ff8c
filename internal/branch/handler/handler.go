// Package handler serves the branch API: the collaborator contract used by
// the propagation engine (list branches, write a rate) and read-only tree
// queries for logged-in sessions.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"branchrate/internal/branch/directory"
	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/platform/sentinel"
	"branchrate/pkg/requestcontext"
)

// Store is the source of truth behind the collaborator endpoints.
type Store interface {
	ListBranches(ctx context.Context) ([]models.Branch, error)
	SetRate(ctx context.Context, id models.BranchID, rate models.Rate) ([]models.BranchID, error)
}

// Directory answers tree queries from the cached snapshot.
type Directory interface {
	GetByID(id models.BranchID) (models.Branch, bool)
	ChildrenOf(id models.BranchID) []models.Branch
	DescendantsOf(id models.BranchID) []models.Branch
	AncestorsOf(id models.BranchID) []models.Branch
	SiblingsOf(id models.BranchID) []models.Branch
	RelatedTo(id models.BranchID) []models.Branch
	Err() error
	Refresh(ctx context.Context) error
}

type Handler struct {
	store     Store
	directory Directory
	logger    *slog.Logger
}

func New(store Store, dir Directory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{store: store, directory: dir, logger: logger}
}

// Register mounts the collaborator routes, guarding the write with
// requireWriter, and the tree routes behind requireSession.
func (h *Handler) Register(r chi.Router, requireWriter, requireSession func(http.Handler) http.Handler) {
	r.Get("/api/branches", h.handleList)
	r.With(requireWriter).Put("/api/rate/{branchId}", h.handleWriteRate)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/api/branches/{branchId}", h.handleGet)
		r.Get("/api/branches/{branchId}/children", h.relation(h.directory.ChildrenOf))
		r.Get("/api/branches/{branchId}/descendants", h.relation(h.directory.DescendantsOf))
		r.Get("/api/branches/{branchId}/siblings", h.relation(h.directory.SiblingsOf))
		r.Get("/api/branches/{branchId}/ancestors", h.relation(h.directory.AncestorsOf))
		r.Get("/api/branches/{branchId}/related", h.relation(h.directory.RelatedTo))
	})
}

// handleList returns every branch in insertion order. ?name= filters by a
// case-insensitive substring.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	branches, err := h.store.ListBranches(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list branches",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list branches"))
		return
	}
	branches = directory.FilterByName(branches, r.URL.Query().Get("name"))
	if branches == nil {
		branches = []models.Branch{}
	}
	httputil.WriteJSON(w, http.StatusOK, branches)
}

// RateWriteResponse reports the branches a collaborator write touched.
type RateWriteResponse struct {
	BranchID models.BranchID   `json:"branchId"`
	Rate     models.Rate       `json:"rate"`
	Affected []models.BranchID `json:"affected"`
}

func (h *Handler) handleWriteRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := models.ParseBranchID(chi.URLParam(r, "branchId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rate, err := models.ParseRate(r.URL.Query().Get("rate"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	affected, err := h.store.SetRate(ctx, id, rate)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBranchNotFound, "branch "+id.String()+" not found"))
			return
		}
		h.logger.ErrorContext(ctx, "rate write failed",
			"request_id", requestID,
			"branch_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write rate"))
		return
	}

	// The store is authoritative; the snapshot catches up here or on the
	// next refresh tick.
	if err := h.directory.Refresh(ctx); err != nil {
		h.logger.WarnContext(ctx, "directory refresh after rate write failed",
			"request_id", requestID,
			"error", err,
		)
	}
	h.logger.InfoContext(ctx, "rate written",
		"request_id", requestID,
		"branch_id", id.String(),
		"rate", rate.String(),
		"affected", len(affected),
	)
	httputil.WriteJSON(w, http.StatusOK, RateWriteResponse{BranchID: id, Rate: rate, Affected: affected})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) relation(fn func(models.BranchID) []models.Branch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := h.lookup(w, r)
		if !ok {
			return
		}
		out := fn(b.ID)
		if out == nil {
			out = []models.Branch{}
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (models.Branch, bool) {
	if err := h.directory.Err(); err != nil {
		httputil.WriteError(w, err)
		return models.Branch{}, false
	}
	id, err := models.ParseBranchID(chi.URLParam(r, "branchId"))
	if err != nil {
		httputil.WriteError(w, err)
		return models.Branch{}, false
	}
	b, ok := h.directory.GetByID(id)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBranchNotFound, "branch "+id.String()+" not found"))
		return models.Branch{}, false
	}
	return b, true
}
