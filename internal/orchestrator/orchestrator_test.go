package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verax/internal/config"
	"verax/internal/firewall"
	"verax/internal/model"
)

func TestBuildPlanOrdersStaticBeforeRuntimeAndPreservesInput(t *testing.T) {
	static := []model.Expectation{
		{ID: "expect-1", Kind: model.KindButton, Source: model.Source{DiscoveredAtPhase: model.PhaseStatic}},
	}
	runtime := []model.RuntimeTarget{
		{ID: "runtime-nav-1", Href: "/about", NormalizedHref: "https://example.com/about", SelectorPath: "a"},
	}

	plan := buildPlan(static, runtime, "https://example.com")
	require.Len(t, plan, 2)
	assert.Equal(t, "expect-1", plan[0].Expectation.ID)
	assert.Equal(t, "runtime-nav-1", plan[1].Expectation.ID)
	assert.Equal(t, model.PhaseRuntime, plan[1].Expectation.Source.DiscoveredAtPhase)
	assert.NotNil(t, plan[1].Expectation.RuntimeNav)
}

func TestComputeStatsCountsAttemptedObservedAndSkipped(t *testing.T) {
	attempts := []model.Attempt{
		{ExpectationID: "a", Attempted: true, Observed: true},
		{ExpectationID: "b", Attempted: true, Observed: false, Reason: "no-change"},
		{ExpectationID: "c", Attempted: false, Reason: "global-timeout-exceeded"},
	}
	stats := computeStats(3, attempts, &firewall.Firewall{})
	assert.Equal(t, 3, stats.TotalExpectations)
	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 1, stats.Observed)
	assert.Equal(t, 1, stats.NotObserved)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.SkippedReasons["global-timeout-exceeded"])
	assert.InDelta(t, 2.0/3.0, stats.CoverageRatio, 0.0001)
}

func TestComputeStatsHandlesZeroTotal(t *testing.T) {
	stats := computeStats(0, nil, &firewall.Firewall{})
	assert.Equal(t, 1.0, stats.CoverageRatio)
}

func TestRunDigestIsStableAcrossCalls(t *testing.T) {
	attempts := []model.Attempt{{ExpectationID: "a", Attempted: true, Observed: true, Cause: model.CauseNull}}
	d1 := runDigest([]string{"a"}, attempts, "https://example.com", "generic", "0.1.0")
	d2 := runDigest([]string{"a"}, attempts, "https://example.com", "generic", "0.1.0")
	assert.Equal(t, d1, d2)
}

func TestRunDigestChangesWithObservations(t *testing.T) {
	a1 := []model.Attempt{{ExpectationID: "a", Attempted: true, Observed: true, Cause: model.CauseNull}}
	a2 := []model.Attempt{{ExpectationID: "a", Attempted: true, Observed: false, Cause: model.CauseNoChange}}
	d1 := runDigest([]string{"a"}, a1, "https://example.com", "generic", "0.1.0")
	d2 := runDigest([]string{"a"}, a2, "https://example.com", "generic", "0.1.0")
	assert.NotEqual(t, d1, d2)
}

func TestAuthAppearsEffectiveRequiresSomeCredential(t *testing.T) {
	assert.False(t, authAppearsEffective(config.RunConfig{}))
	assert.True(t, authAppearsEffective(config.RunConfig{AuthCookie: "{}"}))
	assert.True(t, authAppearsEffective(config.RunConfig{AuthHeaders: []string{"X: Y"}}))
}

func TestStubResultHasDeterministicFullCoverage(t *testing.T) {
	r := stubResult(config.RunConfig{URL: "https://example.com"})
	assert.False(t, r.Incomplete)
	assert.Equal(t, 0, r.Stats.TotalExpectations)
	assert.Equal(t, 1.0, r.Stats.CoverageRatio)
	assert.NotEmpty(t, r.RunDigest)
}
