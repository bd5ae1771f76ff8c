package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"branchrate/internal/audit"
	"branchrate/internal/branch/directory"
	branchmodels "branchrate/internal/branch/models"
	"branchrate/internal/session/store"
	"branchrate/internal/session/token"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/requestcontext"
)

type SessionServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	sink    *audit.MemorySink
	service *Service
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Now())
	dir := directory.New(directory.StaticSource{
		{ID: "1", Name: "Main Branch", Type: branchmodels.BranchTypeParent, Rate: branchmodels.MustParseRate("5.25")},
		{ID: "2", Name: "North", Type: branchmodels.BranchTypeChild, ParentID: branchmodels.Ptr("1"), Rate: branchmodels.MustParseRate("5.25")},
	})
	s.Require().NoError(dir.Refresh(s.ctx))
	s.store = store.NewInMemory()
	s.sink = audit.NewMemorySink()

	var err error
	s.service, err = New(s.store, dir, token.NewService("k", "branchrate", "admin"),
		WithTTL(time.Hour),
		WithAudit(audit.NewPublisher(s.sink)),
	)
	s.Require().NoError(err)
}

func (s *SessionServiceSuite) TestNew() {
	_, err := New(nil, directory.New(directory.StaticSource{}), nil)
	s.ErrorContains(err, "session store is required")
	_, err = New(s.store, nil, nil)
	s.ErrorContains(err, "branch lookup is required")
}

func (s *SessionServiceSuite) TestLoginResolveLogout() {
	res, err := s.service.Login(s.ctx, " 2 ", "curl/8.4.0")
	s.Require().NoError(err)
	s.Equal(branchmodels.BranchID("2"), res.Branch.ID)
	s.NotEmpty(res.Token)
	s.WithinDuration(time.Now().Add(time.Hour), res.Session.ExpiresAt, time.Minute)

	session, err := s.service.Resolve(s.ctx, res.Token)
	s.Require().NoError(err)
	s.Equal(res.Session.ID, session.ID)

	s.Require().NoError(s.service.Logout(s.ctx, session))
	_, err = s.service.Resolve(s.ctx, res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.NoError(s.service.Logout(s.ctx, session), "logout is idempotent")

	s.Equal([]audit.Action{audit.ActionSessionCreated, audit.ActionSessionRevoked, audit.ActionSessionRevoked}, s.sink.Actions())
}

func (s *SessionServiceSuite) TestLoginFailures() {
	s.Run("unknown branch", func() {
		_, err := s.service.Login(s.ctx, "99", "")
		s.True(dErrors.HasCode(err, dErrors.CodeBranchNotFound))
		s.Contains(err.Error(), "invalid branch id")
	})

	s.Run("empty branch id", func() {
		_, err := s.service.Login(s.ctx, "  ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("directory unavailable", func() {
		dir := directory.New(failingSource{})
		_ = dir.Refresh(s.ctx)
		svc, err := New(s.store, dir, token.NewService("k", "branchrate", "admin"))
		s.Require().NoError(err)
		_, err = svc.Login(s.ctx, "1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})
}

func (s *SessionServiceSuite) TestResolveRejectsGarbage() {
	_, err := s.service.Resolve(s.ctx, "not-a-token")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

type failingSource struct{}

func (failingSource) ListBranches(context.Context) ([]branchmodels.Branch, error) {
	return nil, errors.New("unreachable")
}

func (s *SessionServiceSuite) TestAuthenticateAndLogoutByID() {
	res, err := s.service.Login(s.ctx, "1", "")
	s.Require().NoError(err)

	sessionID, branchID, err := s.service.Authenticate(s.ctx, res.Token)
	s.Require().NoError(err)
	s.Equal(res.Session.ID.String(), sessionID)
	s.Equal("1", branchID)

	s.Require().NoError(s.service.LogoutByID(s.ctx, sessionID))
	_, _, err = s.service.Authenticate(s.ctx, res.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.NoError(s.service.LogoutByID(s.ctx, sessionID), "already gone")
	s.True(dErrors.HasCode(s.service.LogoutByID(s.ctx, "nope"), dErrors.CodeUnauthorized))
}
