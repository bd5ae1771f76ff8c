package session

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	DELETE(path string) error
	StatusCode() int
	GetResponseField(field string) (interface{}, error)
	SetToken(token string)
}

// RegisterSteps registers session-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sessionSteps{tc: tc}

	ctx.Step(`^I log in as branch "([^"]*)"$`, steps.logInAs)
	ctx.Step(`^I try to log in as branch "([^"]*)"$`, steps.tryLogInAs)
	ctx.Step(`^I log out$`, steps.logOut)
	ctx.Step(`^I open my dashboard$`, steps.openDashboard)
	ctx.Step(`^my dashboard should show (\d+) descendants$`, steps.dashboardShowsDescendants)
}

type sessionSteps struct {
	tc TestContext
}

func (s *sessionSteps) tryLogInAs(ctx context.Context, branchID string) error {
	return s.tc.POST("/api/session", map[string]string{"branchId": branchID})
}

func (s *sessionSteps) logInAs(ctx context.Context, branchID string) error {
	if err := s.tryLogInAs(ctx, branchID); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return fmt.Errorf("login as %s failed with status %d", branchID, s.tc.StatusCode())
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetToken(fmt.Sprint(token))
	return nil
}

func (s *sessionSteps) logOut(ctx context.Context) error {
	return s.tc.DELETE("/api/session")
}

func (s *sessionSteps) openDashboard(ctx context.Context) error {
	return s.tc.GET("/api/session")
}

func (s *sessionSteps) dashboardShowsDescendants(ctx context.Context, n int) error {
	v, err := s.tc.GetResponseField("descendantsCount")
	if err != nil {
		return err
	}
	if got, ok := v.(float64); !ok || int(got) != n {
		return fmt.Errorf("expected %d descendants, got %v", n, v)
	}
	return nil
}
