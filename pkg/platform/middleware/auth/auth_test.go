package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/requestcontext"
)

type stubResolver map[string][2]string

func (s stubResolver) Authenticate(_ context.Context, token string) (string, string, error) {
	if token == "broken" {
		return "", "", errors.New("redis down")
	}
	ids, ok := s[token]
	if !ok {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "session not found or expired")
	}
	return ids[0], ids[1], nil
}

func TestRequireSession(t *testing.T) {
	var sessionID, branchID string
	h := RequireSession(stubResolver{"good": {"sess-1", "2"}}, slog.New(slog.DiscardHandler))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID = requestcontext.SessionID(r.Context())
			branchID = requestcontext.BranchID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer good", want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer other", want: http.StatusUnauthorized},
		{name: "resolver failure", header: "Bearer broken", want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionID, branchID = "", ""
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "sess-1", sessionID)
				assert.Equal(t, "2", branchID)
			}
		})
	}
}
