// Package orchestrator implements the Observation Orchestrator (C13,
// spec.md §4.12): the eight-step run protocol that owns browser lifecycle,
// navigation, discovery, the execution loop, and the run digest. Grounded
// on the teacher's SessionManager.Start→CreateSession→Navigate→Shutdown
// sequencing (internal/browser/session_manager.go), generalized from "one
// session per API call" to "one session, guaranteed teardown, for the
// whole run".
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"verax/internal/authstate"
	"verax/internal/browserready"
	"verax/internal/browsersession"
	"verax/internal/clock"
	"verax/internal/config"
	"verax/internal/discovery"
	"verax/internal/dispatch"
	"verax/internal/firewall"
	"verax/internal/intent"
	"verax/internal/model"
	"verax/internal/planner"
	"verax/internal/routesensor"
	"verax/internal/staticdiscover"
)

// Reason is the closed set of infra-failure reasons the Orchestrator can
// report without launching (or after tearing down) a browser.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonRuntimeNotReady   Reason = "runtime_not_ready"
	ReasonNavigationFailed  Reason = "navigation_failed"
	ReasonAuthIneffective   Reason = "auth_ineffective"
	ReasonSensorInjectFailed Reason = "sensor_injection_failed"
)

// Result is the Orchestrator's complete output: either a stub (test mode),
// an infra failure (no/partial observation), or a full run.
type Result struct {
	Incomplete   bool
	Reason       Reason
	Detail       string
	Attempts     []model.Attempt
	Plans        []planner.Item
	PlanIDs      []string
	Stats        model.RunStats
	RunDigest    string
	BaseURL      string
	BlockedCount int
	Blocked      []firewall.BlockedRequest
}

// frameworkTag and version feed the run digest (spec.md §4.12 step 7). They
// are constants rather than build-derived values so the digest stays
// reproducible across builds of the same source.
const frameworkTag = "generic"
const veraxVersion = "0.1.0"

// Run executes the full eight-step protocol.
func Run(ctx context.Context, cfg config.RunConfig, logger *zap.Logger, c clock.Clock) Result {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Step 1: test-mode stub fast path.
	if cfg.TestMode {
		return stubResult(cfg)
	}

	// Step 2: readiness.
	readiness, err := browserready.EnsureReady(ctx, browserready.EnsureReadyOptions{Bootstrap: true})
	if !readiness.Ready {
		logger.Warn("browser not ready", zap.String("reason", string(readiness.Reason)), zap.Error(err))
		return Result{Incomplete: true, Reason: ReasonRuntimeNotReady, Detail: string(readiness.Reason)}
	}

	sessCfg := browsersession.DefaultConfig()
	sessCfg.BinaryPath = readiness.BinaryPath
	if cfg.ForceTimeout {
		sessCfg.NavigationTimeout = 1 * time.Millisecond
		sessCfg.NetworkIdleTimeout = 1 * time.Millisecond
	}

	// Step 3: Session + firewall + route sensor.
	sess, err := browsersession.Open(ctx, sessCfg)
	if err != nil {
		logger.Warn("session open failed", zap.Error(err))
		return Result{Incomplete: true, Reason: ReasonRuntimeNotReady, Detail: err.Error()}
	}
	defer sess.Close() // Step 8: guaranteed teardown on every exit path.

	// The read-only discipline is a hard Non-goal (spec.md §1: "the core
	// does not mutate the target application"), not a togglable security
	// posture — VERAX never disables the firewall, regardless of
	// cfg.SecurityStrict, which this package does not read.
	fw, err := firewall.Install(ctx, sess.Page(), true, nil, c)
	if err != nil {
		logger.Warn("firewall install failed", zap.Error(err))
		return Result{Incomplete: true, Reason: ReasonNavigationFailed, Detail: err.Error()}
	}
	defer fw.Close()

	sensor, err := routesensor.Install(ctx, sess.Page())
	if err != nil {
		logger.Warn("route sensor install failed", zap.Error(err))
		return Result{Incomplete: true, Reason: ReasonSensorInjectFailed, Detail: err.Error()}
	}

	// Step 4: apply credentials, navigate, then verify auth.
	if cfg.AuthMode != config.AuthOff {
		if err := applyAuth(sess.Page(), cfg); err != nil {
			logger.Warn("auth material failed to apply", zap.Error(err))
			if cfg.AuthMode == config.AuthStrict {
				return Result{Incomplete: true, Reason: ReasonAuthIneffective, Detail: err.Error()}
			}
		}
	}

	if err := sess.Navigate(ctx, cfg.URL); err != nil {
		logger.Warn("navigation failed", zap.Error(err))
		return Result{Incomplete: true, Reason: ReasonNavigationFailed, Detail: err.Error()}
	}

	if cfg.AuthMode == config.AuthStrict {
		if !authAppearsEffective(cfg) {
			return Result{Incomplete: true, Reason: ReasonAuthIneffective, Detail: "no auth credential supplied in strict mode"}
		}
	}

	// Step 5: discovery + plan.
	staticExpectations, err := staticdiscover.Discover(cfg.SrcDir)
	if err != nil {
		logger.Warn("static discovery failed, continuing with runtime targets only", zap.Error(err))
	}

	runtimeTargets, err := discovery.Discover(ctx, sess.Page(), cfg.URL, discovery.Options{MaxTargets: cfg.MaxTargets})
	if err != nil {
		logger.Warn("runtime discovery failed, continuing with static expectations only", zap.Error(err))
	}

	plan := buildPlan(staticExpectations, runtimeTargets, cfg.URL)
	planIDs := make([]string, 0, len(plan))
	for _, item := range plan {
		planIDs = append(planIDs, item.Expectation.ID)
	}

	// Step 6: execution loop (strictly sequential per spec.md §5).
	budgets := planner.DefaultBudgets()
	if cfg.GlobalBudget > 0 {
		budgets.Global = cfg.GlobalBudget
	}
	if cfg.AttemptBudget > 0 {
		budgets.PerAttempt = cfg.AttemptBudget
	}
	wait := planner.DefaultWaitConfig()
	if cfg.FastOutcome {
		wait = planner.FastOutcomeWaitConfig()
	}

	p := planner.New(c, logger, budgets, wait, evidenceDirFor(cfg))

	var attempts []model.Attempt
	for _, item := range plan {
		attempts = append(attempts, runWithRetries(ctx, sess, cfg, p, sensor, fw, item))
	}

	// Step 7: stats + digest.
	stats := computeStats(len(plan), attempts, fw)
	digest := runDigest(planIDs, attempts, cfg.URL, frameworkTag, veraxVersion)

	return Result{
		Attempts:     attempts,
		Plans:        plan,
		PlanIDs:      planIDs,
		Stats:        stats,
		RunDigest:    digest,
		BaseURL:      cfg.URL,
		BlockedCount: len(fw.Blocked()),
		Blocked:      fw.Blocked(),
	}
}

// runWithRetries drives one plan item through the Planner, resetting a
// runtime-nav item to the base URL before every dispatch, and retries a
// timed-out attempt up to planner.MaxRetries() (spec.md §4.7: "Timeouts use
// at most max_retries_per_interaction=2").
func runWithRetries(ctx context.Context, sess *browsersession.Session, cfg config.RunConfig, p *planner.Planner, sensor *routesensor.Sensor, fw *firewall.Firewall, item planner.Item) model.Attempt {
	if item.Expectation.Source.DiscoveredAtPhase == model.PhaseRuntime {
		if err := sess.ResetToBase(ctx, cfg.URL); err != nil {
			return model.Attempt{
				ExpectationID: item.Expectation.ID,
				Kind:          item.Expectation.Kind,
				Attempted:     false,
				Reason:        "reset-to-base-failed",
				Cause:         model.CauseError,
			}
		}
	}

	attempt := p.Run(ctx, sess.Page(), sensor, fw, item)

	for retries := 0; planner.Retryable(attempt.Cause, retries); retries++ {
		if item.Expectation.Source.DiscoveredAtPhase == model.PhaseRuntime {
			if err := sess.ResetToBase(ctx, cfg.URL); err != nil {
				break
			}
		}
		attempt = p.Run(ctx, sess.Page(), sensor, fw, item)
	}

	return attempt
}

func stubResult(cfg config.RunConfig) Result {
	return Result{
		Stats: model.RunStats{
			TotalExpectations: 0,
			Attempted:         0,
			Observed:          0,
			NotObserved:       0,
			Skipped:           0,
			BlockedWrites:     0,
			CoverageRatio:     1.0,
		},
		BaseURL:   cfg.URL,
		RunDigest: runDigest(nil, nil, cfg.URL, frameworkTag, veraxVersion),
	}
}

// authAppearsEffective is a conservative check: strict mode only proceeds
// when the operator supplied some credential material for the Orchestrator
// to have applied. Verifying that a credential actually authenticated the
// session is an external collaborator's job (spec.md §4.12 step 4: "Verify
// authentication (optional external collaborator)") — this is the minimal
// in-core gate spec.md requires before even attempting discovery.
func authAppearsEffective(cfg config.RunConfig) bool {
	return cfg.AuthStorage != "" || cfg.AuthCookie != "" || len(cfg.AuthHeaders) > 0
}

// applyAuth installs whatever credential material the operator supplied
// onto the page before navigation. Header/cookie parsing failures are
// returned to the caller, which only treats them as fatal under strict
// auth mode (spec.md §4.12 step 4).
func applyAuth(page *rod.Page, cfg config.RunConfig) error {
	if cfg.AuthStorage != "" {
		if err := authstate.ApplyStorageFile(page, cfg.AuthStorage); err != nil {
			return err
		}
	}
	if cfg.AuthCookie != "" {
		if err := authstate.ApplyCookie(page, cfg.AuthCookie); err != nil {
			return err
		}
	}
	if len(cfg.AuthHeaders) > 0 {
		if _, err := authstate.ApplyHeaders(page, cfg.AuthHeaders); err != nil {
			return err
		}
	}
	return nil
}

func evidenceDirFor(cfg config.RunConfig) string {
	out := cfg.OutDir
	if out == "" {
		out = ".verax"
	}
	return out + "/EVIDENCE"
}

// planItem pairs an Expectation with the dispatch Target and navigation
// intent the Planner needs to drive it.
type planItem = planner.Item

// buildPlan merges static expectations and runtime targets into one
// stably-ordered plan (spec.md §4.12 step 5: "static expectations ∥
// runtime targets, preserving stable order"). Static expectations sort
// first (by file, then line, already done by staticdiscover.Discover);
// runtime targets follow in their own stable (normalized_href,
// selector_path) order (already done by discovery.Discover).
func buildPlan(staticExpectations []model.Expectation, runtimeTargets []model.RuntimeTarget, baseURL string) []planItem {
	plan := make([]planItem, 0, len(staticExpectations)+len(runtimeTargets))

	for _, e := range staticExpectations {
		plan = append(plan, planItem{
			Expectation: e,
			Target: dispatch.Target{
				Kind:     e.Kind,
				Selector: e.Selector,
			},
		})
	}

	for _, t := range runtimeTargets {
		exp := model.Expectation{
			ID:              t.ID,
			Kind:            model.KindNavigation,
			Selector:        t.SelectorPath,
			ExpectedOutcome: model.OutcomeNavigation,
			Source: model.Source{
				DiscoveredAtPhase: model.PhaseRuntime,
			},
			RuntimeNav: &model.RuntimeNav{
				Href:           t.Href,
				NormalizedHref: t.NormalizedHref,
				SelectorPath:   t.SelectorPath,
				Context:        t.SourceKind,
				ShadowHostTag:  t.HostTag,
				IframeFrameURL: t.FrameURL,
			},
		}
		navIntent := intent.ClassifyNavigation(t.Href, baseURL, "", "")
		plan = append(plan, planItem{
			Expectation: exp,
			Target: dispatch.Target{
				Kind:         model.KindNavigation,
				SelectorPath: t.SelectorPath,
				ShadowHost:   t.SourceKind == model.ContextShadowDOM,
				FrameURL:     t.FrameURL,
			},
			NavIntent: navIntent,
		})
	}

	return plan
}

func computeStats(total int, attempts []model.Attempt, fw *firewall.Firewall) model.RunStats {
	stats := model.RunStats{TotalExpectations: total, SkippedReasons: map[string]int{}}
	for _, a := range attempts {
		if a.Attempted {
			stats.Attempted++
		} else {
			stats.Skipped++
			stats.SkippedReasons[a.Reason]++
		}
		if a.Observed {
			stats.Observed++
		} else if a.Attempted {
			stats.NotObserved++
		}
	}
	stats.BlockedWrites = len(fw.Blocked())
	if total > 0 {
		stats.CoverageRatio = float64(stats.Attempted) / float64(total)
	} else {
		stats.CoverageRatio = 1.0
	}
	return stats
}

// runDigest computes a stable, content-derived summary of one run over the
// fields spec.md §4.12 step 7 names, joined the same way idstable does
// (NUL-separated, sha256, hex). Kept local to this package (rather than
// idstable) since a run digest mixes whole observation lists, not a
// handful of scalar fields.
func runDigest(planIDs []string, attempts []model.Attempt, baseURL, frameworkTag, version string) string {
	var b strings.Builder
	b.WriteString(strings.Join(planIDs, ","))
	b.WriteByte(0)

	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, fmt.Sprintf("%s:%t:%t:%s", a.ExpectationID, a.Attempted, a.Observed, a.Cause))
	}
	sort.Strings(ids)
	b.WriteString(strings.Join(ids, ","))
	b.WriteByte(0)
	b.WriteString(baseURL)
	b.WriteByte(0)
	b.WriteString(frameworkTag)
	b.WriteByte(0)
	b.WriteString(version)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
