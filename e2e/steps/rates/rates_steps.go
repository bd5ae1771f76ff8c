package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	DELETE(path string) error
	StatusCode() int
	DecodeResponse(v interface{}) error
}

// RegisterSteps registers rate-update step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rateSteps{tc: tc}

	ctx.Step(`^I propose rate "([^"]*)" for branch "([^"]*)"$`, steps.propose)
	ctx.Step(`^I confirm the update for branch "([^"]*)"$`, steps.confirm)
	ctx.Step(`^I cancel the update for branch "([^"]*)"$`, steps.cancel)
	ctx.Step(`^the preview should list branches "([^"]*)"$`, steps.previewShouldList)
	ctx.Step(`^the update state should be "([^"]*)"$`, steps.stateShouldBe)
	ctx.Step(`^the update for branch "([^"]*)" should be "([^"]*)"$`, steps.updateForBranchShouldBe)
	ctx.Step(`^branch "([^"]*)" should have rate "([^"]*)"$`, steps.branchShouldHaveRate)
}

type rateSteps struct {
	tc TestContext
}

type attempt struct {
	State     string `json:"state"`
	ChangeSet struct {
		Entries []struct {
			BranchID string `json:"branchId"`
		} `json:"entries"`
	} `json:"changeSet"`
}

func (s *rateSteps) propose(ctx context.Context, rate, branchID string) error {
	return s.tc.POST("/api/rate-updates", map[string]string{"branchId": branchID, "rate": rate})
}

func (s *rateSteps) confirm(ctx context.Context, branchID string) error {
	return s.tc.POST("/api/rate-updates/"+branchID+"/confirm", nil)
}

func (s *rateSteps) cancel(ctx context.Context, branchID string) error {
	return s.tc.DELETE("/api/rate-updates/" + branchID)
}

func (s *rateSteps) lastAttempt() (*attempt, error) {
	var a attempt
	if err := s.tc.DecodeResponse(&a); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &a, nil
}

func (s *rateSteps) previewShouldList(ctx context.Context, ids string) error {
	a, err := s.lastAttempt()
	if err != nil {
		return err
	}
	got := make([]string, 0, len(a.ChangeSet.Entries))
	for _, e := range a.ChangeSet.Entries {
		got = append(got, e.BranchID)
	}
	if strings.Join(got, ",") != ids {
		return fmt.Errorf("expected preview %s, got %s", ids, strings.Join(got, ","))
	}
	return nil
}

func (s *rateSteps) stateShouldBe(ctx context.Context, state string) error {
	a, err := s.lastAttempt()
	if err != nil {
		return err
	}
	if a.State != state {
		return fmt.Errorf("expected state %q, got %q", state, a.State)
	}
	return nil
}

func (s *rateSteps) updateForBranchShouldBe(ctx context.Context, branchID, state string) error {
	if err := s.tc.GET("/api/rate-updates/" + branchID); err != nil {
		return err
	}
	return s.stateShouldBe(ctx, state)
}

func (s *rateSteps) branchShouldHaveRate(ctx context.Context, branchID, rate string) error {
	if err := s.tc.GET("/api/branches/" + branchID); err != nil {
		return err
	}
	var b struct {
		Rate float64 `json:"rate"`
	}
	if err := s.tc.DecodeResponse(&b); err != nil {
		return err
	}
	var want float64
	if _, err := fmt.Sscan(rate, &want); err != nil {
		return err
	}
	if b.Rate != want {
		return fmt.Errorf("branch %s: expected rate %s, got %v", branchID, rate, b.Rate)
	}
	return nil
}
