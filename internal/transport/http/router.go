package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	branchhandler "branchrate/internal/branch/handler"
	"branchrate/internal/platform/metrics"
	ratehandler "branchrate/internal/propagation/handler"
	"branchrate/internal/ratelimit"
	sessionhandler "branchrate/internal/session/handler"
	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/platform/middleware/admin"
	"branchrate/pkg/platform/middleware/auth"
	"branchrate/pkg/platform/middleware/metadata"
	"branchrate/pkg/platform/middleware/request"
	"branchrate/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the handlers and cross-cutting pieces the router composes.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Sessions   auth.SessionResolver
	AdminToken string
	Checks     map[string]HealthCheck
	// Limiter throttles the session and rate-update endpoints per client IP.
	Limiter *ratelimit.Middleware

	SessionHandler *sessionhandler.Handler
	BranchHandler  *branchhandler.Handler
	RateHandler    *ratehandler.Handler
}

// NewRouter wires all public endpoints. Handlers stay thin and delegate to
// services so transport concerns remain isolated.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.Recover(logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(logger, d.Metrics))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/health", healthHandler(d.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	requireSession := auth.RequireSession(d.Sessions, logger)
	if d.BranchHandler != nil {
		d.BranchHandler.Register(r, admin.RequireAdminToken(d.AdminToken, logger), requireSession)
	}
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Limit)
		}
		if d.SessionHandler != nil {
			d.SessionHandler.Register(r, requireSession)
		}
		if d.RateHandler != nil {
			d.RateHandler.Register(r, requireSession)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
