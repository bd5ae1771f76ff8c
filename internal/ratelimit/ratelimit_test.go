package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchrate/pkg/requestcontext"
)

func TestSlidingWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	w := NewSlidingWindow(2, time.Minute)
	w.now = func() time.Time { return now }

	first := w.Allow("10.0.0.1")
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	now = base.Add(10 * time.Second)
	assert.True(t, w.Allow("10.0.0.1").Allowed)

	now = base.Add(20 * time.Second)
	denied := w.Allow("10.0.0.1")
	assert.False(t, denied.Allowed)
	assert.Equal(t, base.Add(time.Minute), denied.ResetAt)
	assert.Equal(t, 40, denied.RetryAfter(now))

	t.Run("keys are independent", func(t *testing.T) {
		assert.True(t, w.Allow("10.0.0.2").Allowed)
	})

	t.Run("oldest request ages out", func(t *testing.T) {
		now = base.Add(61 * time.Second)
		assert.True(t, w.Allow("10.0.0.1").Allowed)
	})

	t.Run("reset clears the key", func(t *testing.T) {
		w.Reset("10.0.0.1")
		assert.Equal(t, 1, w.Allow("10.0.0.1").Remaining)
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	call := func(h http.Handler, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
		req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("rejects once the window is full", func(t *testing.T) {
		h := New(1, nil).Limit(ok)

		first := call(h, "192.0.2.1")
		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

		second := call(h, "192.0.2.1")
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
		var body ExceededResponse
		require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
		assert.Equal(t, "rate_limit_exceeded", body.Error)

		assert.Equal(t, http.StatusOK, call(h, "192.0.2.2").Code)
	})

	t.Run("disabled passes everything through", func(t *testing.T) {
		h := New(0, nil).Limit(ok)
		for range 5 {
			assert.Equal(t, http.StatusOK, call(h, "192.0.2.1").Code)
		}
	})
}
