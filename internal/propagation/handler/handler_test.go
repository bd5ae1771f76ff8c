package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"branchrate/internal/branch/directory"
	"branchrate/internal/branch/models"
	"branchrate/internal/branch/store"
	"branchrate/internal/propagation"
	"branchrate/pkg/requestcontext"
)

// flakyWriter fails while failing is set, then delegates to the store.
type flakyWriter struct {
	store   *store.InMemory
	failing atomic.Bool
}

func (w *flakyWriter) WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error {
	if w.failing.Load() {
		return errors.New("collaborator returned 500")
	}
	return w.store.WriteRate(ctx, id, rate)
}

type RateUpdateHandlerSuite struct {
	suite.Suite
	writer *flakyWriter
	dir    *directory.Directory
	router chi.Router
}

func TestRateUpdateHandlerSuite(t *testing.T) {
	suite.Run(t, new(RateUpdateHandlerSuite))
}

func (s *RateUpdateHandlerSuite) SetupTest() {
	ctx := context.Background()
	st := store.NewInMemory()
	seed, err := store.DefaultSeed()
	s.Require().NoError(err)
	_, err = store.SeedIfEmpty(ctx, st, seed)
	s.Require().NoError(err)

	s.dir = directory.New(st)
	s.Require().NoError(s.dir.Refresh(ctx))
	s.writer = &flakyWriter{store: st}

	engine, err := propagation.New(s.dir, s.writer)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(engine, nil).Register(s.router, sessionFromHeader)
}

// sessionFromHeader stands in for the session middleware: X-Branch names the
// caller's branch, X-Session its session.
func sessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithSession(r.Context(), r.Header.Get("X-Session"), r.Header.Get("X-Branch"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *RateUpdateHandlerSuite) do(method, target, body, session, branch string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-Session", session)
	req.Header.Set("X-Branch", branch)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RateUpdateHandlerSuite) attempt(w *httptest.ResponseRecorder) propagation.Attempt {
	var a propagation.Attempt
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &a), w.Body.String())
	return a
}

func (s *RateUpdateHandlerSuite) TestProposeConfirm() {
	w := s.do(http.MethodPost, "/api/rate-updates", `{"branchId":"2","rate":6.0}`, "s1", "1")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	preview := s.attempt(w)
	s.Equal(propagation.StatePreviewReady, preview.State)
	s.Equal([]models.BranchID{"2", "4", "5"}, preview.ChangeSet.IDs())

	w = s.do(http.MethodGet, "/api/rate-updates/2", "", "s1", "1")
	s.Equal(propagation.StatePreviewReady, s.attempt(w).State)

	w = s.do(http.MethodPost, "/api/rate-updates/2/confirm", "", "s1", "1")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(propagation.StateApplied, s.attempt(w).State)

	b, _ := s.dir.GetByID("5")
	s.Equal("6", b.Rate.String())
}

func (s *RateUpdateHandlerSuite) TestProposeRejections() {
	tests := []struct {
		name   string
		body   string
		branch string
		want   int
	}{
		{name: "invalid rate", body: `{"branchId":"2","rate":"abc"}`, branch: "1", want: http.StatusBadRequest},
		{name: "negative rate", body: `{"branchId":"2","rate":-1}`, branch: "1", want: http.StatusBadRequest},
		{name: "empty rate", body: `{"branchId":"2","rate":""}`, branch: "1", want: http.StatusBadRequest},
		{name: "missing branch", body: `{"rate":"1"}`, branch: "1", want: http.StatusBadRequest},
		{name: "unknown branch", body: `{"branchId":"99","rate":"1"}`, branch: "1", want: http.StatusNotFound},
		{name: "child editing sibling", body: `{"branchId":"5","rate":"1"}`, branch: "4", want: http.StatusForbidden},
		{name: "huge exponent", body: `{"branchId":"2","rate":"1e50000000"}`, branch: "1", want: http.StatusBadRequest},
		{name: "huge exponent number", body: `{"branchId":"2","rate":1e50000000}`, branch: "1", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/api/rate-updates", tt.body, "s1", tt.branch)
			s.Equal(tt.want, w.Code, w.Body.String())
		})
	}
}

func (s *RateUpdateHandlerSuite) TestProposeUnescapesStringRate() {
	w := s.do(http.MethodPost, "/api/rate-updates", `{"branchId":"2","rate":"\u0035.5"}`, "s1", "1")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("5.5", s.attempt(w).Rate.String())
}

func (s *RateUpdateHandlerSuite) TestConfirmFailureKeepsPreview() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/rate-updates", `{"branchId":"3","rate":"7"}`, "s1", "1").Code)

	s.writer.failing.Store(true)
	w := s.do(http.MethodPost, "/api/rate-updates/3/confirm", "", "s1", "1")
	s.Require().Equal(http.StatusBadGateway, w.Code)

	var resp struct {
		Error   string              `json:"error"`
		Attempt propagation.Attempt `json:"attempt"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("update_failed", resp.Error)
	s.Equal(propagation.StatePreviewReady, resp.Attempt.State)
	s.Equal(1, resp.Attempt.Failures)

	s.writer.failing.Store(false)
	w = s.do(http.MethodPost, "/api/rate-updates/3/confirm", "", "s1", "1")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RateUpdateHandlerSuite) TestCancel() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/rate-updates", `{"branchId":"2","rate":"1"}`, "s1", "1").Code)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/rate-updates/2", "", "s1", "1").Code)
	s.Equal(propagation.StateIdle, s.attempt(s.do(http.MethodGet, "/api/rate-updates/2", "", "s1", "1")).State)

	w := s.do(http.MethodPost, "/api/rate-updates/2/confirm", "", "s1", "1")
	s.Equal(http.StatusConflict, w.Code)
}

func (s *RateUpdateHandlerSuite) TestAttemptsArePerSession() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/rate-updates", `{"branchId":"2","rate":"1"}`, "s1", "1").Code)

	w := s.do(http.MethodGet, "/api/rate-updates/2", "", "s2", "1")
	s.Equal(propagation.StateIdle, s.attempt(w).State)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/api/rate-updates/2/confirm", "", "s2", "1").Code)
}
