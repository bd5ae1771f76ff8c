package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/circuit"
	"branchrate/pkg/platform/sentinel"
)

func TestListBranches(t *testing.T) {
	t.Run("decodes both wire shapes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/branches", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[
				{"id": 1, "name": "Main Branch", "type": "parent", "rate": 5.25},
				{"id": "2", "name": "North", "parent": {"id": 1}, "rate": "5.25"}
			]`))
		}))
		defer srv.Close()

		got, err := New(srv.URL+"/api", WithAuthToken("tok")).ListBranches(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, models.BranchID("1"), got[0].ID)
		assert.True(t, got[1].HasParent("1"))
		assert.Equal(t, models.BranchTypeChild, got[1].Type)
	})

	t.Run("non-200 is directory unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := New(srv.URL).ListBranches(context.Background())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})

	t.Run("malformed body is directory unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not": "a list"`))
		}))
		defer srv.Close()

		_, err := New(srv.URL).ListBranches(context.Background())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})
}

func TestWriteRate(t *testing.T) {
	t.Run("sends rate as query parameter", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/rate/2", r.URL.Path)
			assert.Equal(t, "6.125", r.URL.Query().Get("rate"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := New(srv.URL).WriteRate(context.Background(), "2", models.MustParseRate("6.125"))
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("non-200 is update failed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := New(srv.URL).WriteRate(context.Background(), "2", models.MustParseRate("1"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUpdateFailed))
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := New(srv.URL).WriteRate(ctx, "2", models.MustParseRate("1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c := New(srv.URL, WithBreaker(breaker))

	for range 2 {
		_, err := c.ListBranches(context.Background())
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := c.ListBranches(context.Background())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	c := New(srv.URL, WithBreaker(breaker))
	_ = c.WriteRate(context.Background(), "9", models.MustParseRate("1"))
	assert.False(t, breaker.IsOpen())
}
