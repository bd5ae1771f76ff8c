package e2e

import (
	"github.com/cucumber/godog"

	"branchrate/e2e/steps/common"
	"branchrate/e2e/steps/rates"
	"branchrate/e2e/steps/session"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	session.RegisterSteps(ctx, tc)
	rates.RegisterSteps(ctx, tc)
}
