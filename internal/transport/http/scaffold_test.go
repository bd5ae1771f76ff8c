package httptransport

import (
	"net/http"
	"testing"

	"branchrate/pkg/testutil"
)

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "a router without a session resolver backing any token", func(t *testing.T) {
		router := NewRouter(Deps{Sessions: rejectAll{}})

		testutil.When(t, "calling GET /health with no checks", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it should report ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "ok")
			})
		})

		testutil.When(t, "presenting a token the resolver rejects", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/metrics"), "stale")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "public routes still answer", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})

		testutil.When(t, "calling a route that is not mounted", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/rate-updates", map[string]string{"branchId": "1"}))

			testutil.Then(t, "it should respond with not found", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusNotFound)
			})
		})
	})
}
