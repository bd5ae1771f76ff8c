package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/httputil"
	"branchrate/pkg/requestcontext"
)

// SessionResolver turns a bearer token into the session it belongs to.
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (sessionID, branchID string, err error)
}

// BearerToken returns the token from an Authorization header, if any.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// RequireSession rejects requests without a live session and stores the
// session and its branch in the request context.
func RequireSession(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			sessionID, branchID, err := resolver.Authenticate(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					httputil.WriteError(w, err)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session"))
				return
			}

			ctx = requestcontext.WithSession(ctx, sessionID, branchID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
