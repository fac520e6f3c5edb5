//go:build cucumber

package limits_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/plans"
)

// TestGovernanceFeatures executes the governance scenarios via godog.
func TestGovernanceFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name: "governance",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(t, ctx)
		},
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "governance.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// governanceState holds one scenario's pipeline and last result.
type governanceState struct {
	t       *testing.T
	stack   *stack
	lastErr error
}

func initializeScenario(t *testing.T, ctx *godog.ScenarioContext) {
	state := &governanceState{t: t}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.stack = nil
		state.lastErr = nil
		return ctx, nil
	})

	ctx.Step(`^a rate limit of (\d+) requests per window$`, state.givenRateLimit)
	ctx.Step(`^tenant "([^"]+)" is on the "([^"]+)" plan$`, state.givenPlan)
	ctx.Step(`^tenant "([^"]+)" already has (\d+) client spaces$`, state.givenClientSpaces)
	ctx.Step(`^the collaboration API fails the next (\d+) calls$`, state.givenFailures)
	ctx.Step(`^tenant "([^"]+)" creates (\d+) client spaces$`, state.createSpaces)
	ctx.Step(`^tenant "([^"]+)" creates a client space$`, state.createSpace)
	ctx.Step(`^tenant "([^"]+)" creates a client space using "([^"]+)"$`, state.createSpaceUsing)
	ctx.Step(`^the call succeeds$`, state.callSucceeds)
	ctx.Step(`^the call is rate limited with (\d+) remaining of (\d+)$`, state.callRateLimited)
	ctx.Step(`^the call is denied for "([^"]+)"$`, state.callDenied)
	ctx.Step(`^the required tier is "([^"]+)"$`, state.requiredTier)
	ctx.Step(`^the collaboration API received (\d+) calls$`, state.apiCalls)
	ctx.Step(`^(\d+) audit records were written with (\d+) "([^"]+)"$`, state.auditRecords)
}

func (s *governanceState) givenRateLimit(limit int) error {
	s.stack = newStack(s.t, limit)
	return nil
}

func (s *governanceState) givenPlan(tenant, tier string) error {
	return s.stack.source.Upsert(context.Background(), plans.Subscription{
		TenantID:  tenant,
		Tier:      plans.Tier(tier),
		Status:    plans.StatusActive,
		StartedAt: time.Now().Add(-time.Hour),
	})
}

func (s *governanceState) givenClientSpaces(tenant string, n int) error {
	return s.stack.source.SetResourceCount(context.Background(), tenant, plans.QuotaClientSpaces, int64(n))
}

func (s *governanceState) givenFailures(n int) error {
	s.stack.failures.Store(int32(n))
	return nil
}

func (s *governanceState) createSpaces(tenant string, n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.stack.createSite(context.Background(), tenant, ""); err != nil {
			return fmt.Errorf("create %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *governanceState) createSpace(tenant string) error {
	return s.createSpaceUsing(tenant, "")
}

func (s *governanceState) createSpaceUsing(tenant, feature string) error {
	_, s.lastErr = s.stack.createSite(context.Background(), tenant, feature)
	return nil
}

func (s *governanceState) callSucceeds() error {
	if s.lastErr != nil {
		return fmt.Errorf("expected success, got %v", s.lastErr)
	}
	return nil
}

func (s *governanceState) callRateLimited(remaining, limit int) error {
	var rle *limits.RateLimitedError
	if !errors.As(s.lastErr, &rle) {
		return fmt.Errorf("expected *RateLimitedError, got %v", s.lastErr)
	}
	if rle.Remaining != int64(remaining) || rle.Limit != int64(limit) {
		return fmt.Errorf("limit/remaining = %d/%d, want %d/%d", rle.Limit, rle.Remaining, limit, remaining)
	}
	return nil
}

func (s *governanceState) denial() (*enforcement.UpgradeRequiredError, error) {
	var denial *enforcement.UpgradeRequiredError
	if !errors.As(s.lastErr, &denial) {
		return nil, fmt.Errorf("expected *UpgradeRequiredError, got %v", s.lastErr)
	}
	return denial, nil
}

func (s *governanceState) callDenied(reason string) error {
	denial, err := s.denial()
	if err != nil {
		return err
	}
	if string(denial.Reason) != reason {
		return fmt.Errorf("reason = %s, want %s", denial.Reason, reason)
	}
	return nil
}

func (s *governanceState) requiredTier(tier string) error {
	denial, err := s.denial()
	if err != nil {
		return err
	}
	if string(denial.RequiredTier) != tier {
		return fmt.Errorf("required tier = %s, want %s", denial.RequiredTier, tier)
	}
	return nil
}

func (s *governanceState) apiCalls(n int) error {
	if got := s.stack.calls.Load(); got != int32(n) {
		return fmt.Errorf("API calls = %d, want %d", got, n)
	}
	return nil
}

func (s *governanceState) auditRecords(total, matching int, outcome string) error {
	if err := s.stack.recorder.Close(); err != nil {
		return fmt.Errorf("recorder Close failed: %w", err)
	}
	records := s.stack.store.Records()

	n := 0
	for _, r := range records {
		if r.Outcome == audit.Outcome(outcome) {
			n++
		}
	}
	if len(records) != total || n != matching {
		return fmt.Errorf("got %d records with %d %s, want %d with %d", len(records), n, outcome, total, matching)
	}
	return nil
}
