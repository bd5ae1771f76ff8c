package ratectl

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	branchhandler "branchrate/internal/branch/handler"
	"branchrate/internal/branch/directory"
	"branchrate/internal/branch/models"
	"branchrate/internal/branch/store"
	dErrors "branchrate/pkg/domain-errors"
)

type RatectlSuite struct {
	suite.Suite
	home     string
	store    *store.InMemory
	server   *httptest.Server
	failPuts atomic.Int32
}

func TestRatectlSuite(t *testing.T) {
	suite.Run(t, new(RatectlSuite))
}

func (s *RatectlSuite) SetupTest() {
	ctx := context.Background()
	s.store = store.NewInMemory()
	seed, err := store.DefaultSeed()
	s.Require().NoError(err)
	_, err = store.SeedIfEmpty(ctx, s.store, seed)
	s.Require().NoError(err)
	dir := directory.New(s.store)
	s.Require().NoError(dir.Refresh(ctx))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodPut && s.failPuts.Load() > 0 {
				s.failPuts.Add(-1)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	pass := func(next http.Handler) http.Handler { return next }
	branchhandler.New(s.store, dir, nil).Register(r, pass, pass)
	s.server = httptest.NewServer(r)
	s.T().Cleanup(s.server.Close)

	s.home = s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(s.home, "config.yaml"),
		[]byte("api_url: "+s.server.URL+"/api/\nwrite_timeout: 2s\n"), 0o600))
}

func (s *RatectlSuite) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCmd(&App{Home: s.home, In: strings.NewReader(stdin), Out: &out, Err: &out})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (s *RatectlSuite) rateOf(id string) string {
	b, err := s.store.FindByID(context.Background(), models.BranchID(id))
	s.Require().NoError(err)
	return b.Rate.String()
}

func (s *RatectlSuite) TestLoginWhoamiLogout() {
	out, err := s.run("", "login", "2")
	s.Require().NoError(err)
	s.Contains(out, "Logged in as North Region")

	out, err = s.run("", "whoami")
	s.Require().NoError(err)
	s.Contains(out, "Children:    2")
	s.Contains(out, "Rate:        5.25%")

	_, err = s.run("", "logout")
	s.Require().NoError(err)
	_, err = s.run("", "whoami")
	s.ErrorIs(err, ErrNotLoggedIn)
}

func (s *RatectlSuite) TestLoginUnknownBranch() {
	_, err := s.run("", "login", "99")
	s.True(dErrors.HasCode(err, dErrors.CodeBranchNotFound))
	_, statErr := os.Stat(filepath.Join(s.home, "session.yaml"))
	s.True(os.IsNotExist(statErr))
}

func (s *RatectlSuite) TestBranches() {
	out, err := s.run("", "branches", "--descendants", "3")
	s.Require().NoError(err)
	s.Contains(out, "Harbor")
	s.Contains(out, "Airport")
	s.NotContains(out, "Downtown")

	_, err = s.run("", "login", "4")
	s.Require().NoError(err)
	out, err = s.run("", "branches")
	s.Require().NoError(err)
	s.Contains(out, "North Region")
	s.Contains(out, "Uptown")
	s.NotContains(out, "Harbor")
}

func (s *RatectlSuite) TestRateSetConfirmed() {
	_, err := s.run("", "login", "1")
	s.Require().NoError(err)

	out, err := s.run("y\n", "rate", "set", "2", "6.0")
	s.Require().NoError(err)
	s.Contains(out, "affects 3 branches")
	s.Contains(out, "Applied 6.00% to 3 branches")
	s.Equal("6", s.rateOf("4"))
	s.Equal("5.25", s.rateOf("3"))
}

func (s *RatectlSuite) TestRateSetDeclined() {
	_, err := s.run("", "login", "1")
	s.Require().NoError(err)

	out, err := s.run("n\n", "rate", "set", "2", "6.0")
	s.Require().NoError(err)
	s.Contains(out, "nothing was written")
	s.Equal("5.25", s.rateOf("2"))
}

func (s *RatectlSuite) TestRateSetRetriesAfterFailure() {
	_, err := s.run("", "login", "1")
	s.Require().NoError(err)
	s.failPuts.Store(1)

	out, err := s.run("y\ny\n", "rate", "set", "3", "4")
	s.Require().NoError(err)
	s.Contains(out, "Update failed")
	s.Equal("4", s.rateOf("7"))
}

func (s *RatectlSuite) TestRateSetRejections() {
	_, err := s.run("", "rate", "set", "2", "6")
	s.ErrorIs(err, ErrNotLoggedIn)

	_, err = s.run("", "login", "4")
	s.Require().NoError(err)
	_, err = s.run("", "rate", "set", "5", "6", "--yes")
	s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))
	_, err = s.run("", "rate", "set", "4", "abc", "--yes")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRate))
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("api_url: http://file/api\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RATECTL_API_URL", "http://env/api/")

	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://env/api" {
		t.Fatalf("expected env url, got %q", cfg.APIURL)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://localhost:8080/api" {
		t.Fatalf("unexpected default url %q", cfg.APIURL)
	}
}
