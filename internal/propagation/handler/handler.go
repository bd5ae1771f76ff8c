// Package handler exposes the propagation engine as the rate-update
// workflow: propose, inspect, confirm, cancel.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"branchrate/internal/branch/models"
	"branchrate/internal/propagation"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/requestcontext"
)

// Engine is the subset of *propagation.Engine used over HTTP.
type Engine interface {
	ProposeRate(ctx context.Context, caller propagation.Caller, branchID models.BranchID, raw string) (*propagation.Attempt, error)
	ConfirmUpdate(ctx context.Context, caller propagation.Caller, branchID models.BranchID) (*propagation.Attempt, error)
	Cancel(ctx context.Context, caller propagation.Caller, branchID models.BranchID) error
	Attempt(caller propagation.Caller, branchID models.BranchID) *propagation.Attempt
}

type Handler struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{engine: engine, logger: logger}
}

// Register mounts the rate-update routes behind requireSession.
func (h *Handler) Register(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Route("/api/rate-updates", func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/", h.handlePropose)
		r.Get("/{branchId}", h.handleGet)
		r.Post("/{branchId}/confirm", h.handleConfirm)
		r.Delete("/{branchId}", h.handleCancel)
	})
}

// ProposeRequest carries the raw rate as typed by the user. Parsing happens
// in the engine so every rejection uses the same InvalidRate taxonomy.
type ProposeRequest struct {
	BranchID models.BranchID `json:"branchId"`
	Rate     rawRate         `json:"rate"`
}

func (r *ProposeRequest) Validate() error {
	id, err := models.ParseBranchID(string(r.BranchID))
	if err != nil {
		return err
	}
	r.BranchID = id
	return nil
}

// rawRate accepts a JSON string or number. Strings are unescaped; any other
// token keeps its literal text so the engine sees exactly what was sent.
type rawRate string

func (r *rawRate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = rawRate(s)
	default:
		*r = rawRate(data)
	}
	return nil
}

// UpdateFailedResponse is returned when the write fails. The attempt is back
// in preview_ready and can be confirmed again.
type UpdateFailedResponse struct {
	httputil.ErrorResponse
	Attempt *propagation.Attempt `json:"attempt"`
}

func caller(ctx context.Context) propagation.Caller {
	return propagation.Caller{
		SessionID: requestcontext.SessionID(ctx),
		BranchID:  models.BranchID(requestcontext.BranchID(ctx)),
	}
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ProposeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	attempt, err := h.engine.ProposeRate(ctx, caller(ctx), req.BranchID, string(req.Rate))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := branchParam(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.engine.Attempt(caller(ctx), id))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := branchParam(w, r)
	if !ok {
		return
	}
	attempt, err := h.engine.ConfirmUpdate(ctx, caller(ctx), id)
	if err != nil {
		if attempt != nil && dErrors.HasCode(err, dErrors.CodeUpdateFailed) {
			httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeUpdateFailed), UpdateFailedResponse{
				ErrorResponse: httputil.ErrorResponse{
					Error:            string(dErrors.CodeUpdateFailed),
					ErrorDescription: dErrors.MessageOf(err),
				},
				Attempt: attempt,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := branchParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.Cancel(ctx, caller(ctx), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func branchParam(w http.ResponseWriter, r *http.Request) (models.BranchID, bool) {
	id, err := models.ParseBranchID(chi.URLParam(r, "branchId"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}
