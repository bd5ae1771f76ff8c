package testutil

import (
	"net/http"

	"branchrate/pkg/requestcontext"
)

// WithSession adds a session and its branch to the request context.
// This simulates what the session middleware does for authenticated requests.
func WithSession(req *http.Request, sessionID, branchID string) *http.Request {
	return req.WithContext(requestcontext.WithSession(req.Context(), sessionID, branchID))
}
