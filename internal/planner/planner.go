// Package planner implements the Interaction Planner (C8, spec.md §4.7):
// the state machine that drives one Expectation through
// Budgeted → BeforeCapture → ActDispatch → WaitEffect → AfterCapture →
// Classify → Recorded and always emits exactly one Attempt, even on
// exception. Grounded on the teacher's sequential
// Navigate/Click/Type/startEventStream orchestration
// (internal/browser/session_manager.go) for the "drive one page through a
// scripted sequence of CDP calls" shape; the state-machine structure
// itself has no teacher analog and is built fresh from spec.md §4.7's
// literal table.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"verax/internal/clock"
	"verax/internal/dispatch"
	"verax/internal/evidence"
	"verax/internal/intent"
	"verax/internal/model"
	"verax/internal/outcome"
	"verax/internal/routesensor"
)

// Budgets holds the two timeouts spec.md §4.7 requires.
type Budgets struct {
	Global     time.Duration
	PerAttempt time.Duration
}

// DefaultBudgets mirrors spec.md §4.7's defaults.
func DefaultBudgets() Budgets {
	return Budgets{Global: 5 * time.Minute, PerAttempt: 15 * time.Second}
}

// WaitConfig configures the adaptive WaitEffect watcher (spec.md §4.7).
type WaitConfig struct {
	MaxWait         time.Duration
	PollInterval    time.Duration
	StabilityWindow time.Duration
	EarlyExit       time.Duration
}

// DefaultWaitConfig mirrors spec.md §4.7's defaults.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		MaxWait:         10 * time.Second,
		PollInterval:    250 * time.Millisecond,
		StabilityWindow: 300 * time.Millisecond,
		EarlyExit:       500 * time.Millisecond,
	}
}

// FastOutcomeWaitConfig is used under VERAX_TEST_FAST_OUTCOME=1 (spec.md
// §5: "waitForTimeout after an action ... 5ms under a fast-outcome test
// mode").
func FastOutcomeWaitConfig() WaitConfig {
	return WaitConfig{
		MaxWait:         200 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		StabilityWindow: 5 * time.Millisecond,
		EarlyExit:       10 * time.Millisecond,
	}
}

const maxRetriesPerInteraction = 2

// Planner drives the state machine for a sequence of Expectations against
// one page.
type Planner struct {
	clock       clock.Clock
	logger      *zap.Logger
	budgets     Budgets
	wait        WaitConfig
	evidenceDir string
	runStartMS  int64
}

// New constructs a Planner. runStartMS is the clock reading at the start
// of the run, against which the global budget is checked.
func New(c clock.Clock, logger *zap.Logger, budgets Budgets, wait WaitConfig, evidenceDir string) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		clock:       c,
		logger:      logger,
		budgets:     budgets,
		wait:        wait,
		evidenceDir: evidenceDir,
		runStartMS:  c.NowMS(),
	}
}

// Item is one plan entry: an Expectation plus what the Dispatcher needs to
// act on it.
type Item struct {
	Expectation model.Expectation
	Target      dispatch.Target
	NavIntent   intent.Navigation
}

// Run drives one Item through the full state machine and returns its
// Attempt. page must already be reset to the base URL by the caller for
// runtime-nav items (spec.md §4.12 step 6: "if runtime-nav, reset the page
// to base").
func (p *Planner) Run(ctx context.Context, page *rod.Page, sensor *routesensor.Sensor, fw networkObserverSource, item Item) (attempt model.Attempt) {
	attempt.ExpectationID = item.Expectation.ID
	attempt.Kind = item.Expectation.Kind

	defer func() {
		if r := recover(); r != nil {
			attempt.Attempted = true
			attempt.Observed = false
			attempt.Reason = fmt.Sprintf("error:%v", r)
			attempt.Cause = model.CauseError
		}
	}()

	// Budgeted: global budget check before BeforeCapture.
	if p.clock.NowMS()-p.runStartMS > p.budgets.Global.Milliseconds() {
		attempt.Attempted = false
		attempt.Reason = "global-timeout-exceeded"
		attempt.Cause = model.CauseTimeout
		return attempt
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.budgets.PerAttempt)
	defer cancel()

	interactionID := item.Expectation.ID
	bundle := evidence.New(p.evidenceDir, interactionID)
	bundle.StartListening(attemptCtx, page)
	if fw != nil {
		fw.SetObserver(func(method, url string, status int) {
			bundle.RecordNetworkEntry(method, url, status)
		})
	}

	urlBefore := pageURL(page)

	// BeforeCapture.
	if err := bundle.CaptureBefore(attemptCtx, page); err != nil {
		attempt.Attempted = true
		attempt.Reason = fmt.Sprintf("error:%v", err)
		attempt.Cause = model.CauseError
		return attempt
	}

	attempt.Attempted = true

	// ActDispatch.
	result := dispatch.Dispatch(attemptCtx, page, item.Target)
	attempt.Action = result.Action

	if !result.Success {
		attempt.Reason, attempt.Cause = classifyFailure(result.CauseHint)
		return attempt
	}

	// WaitEffect.
	signals, transitions, lateSignal := p.waitEffect(attemptCtx, page, bundle, sensor, urlBefore)
	_ = transitions

	// AfterCapture already folded into waitEffect's final capture.
	urlAfter := pageURL(page)
	attempt.Signals = signals

	// Classify.
	met := outcome.MeetsExpectation(item.Expectation.ExpectedOutcome, signals)
	switch {
	case met:
		attempt.Observed = true
		attempt.Reason = "null"
		attempt.Cause = model.CauseNull
	default:
		attempt.Observed = false
		attempt.Reason = "no-change"
		attempt.Cause = model.CauseNoChange
		if !signals.Any() {
			attempt.SilenceKind = outcome.Classify(signals, outcome.NetworkObservation{
				AcknowledgedLate: lateSignal,
			})
		}
	}

	if files, err := bundle.Finalize(); err == nil {
		attempt.EvidenceFiles = files
	}
	_ = urlAfter

	return attempt
}

// networkObserverSource decouples the Planner from the concrete firewall
// type while still letting it wire network observation into the bundle.
type networkObserverSource interface {
	SetObserver(func(method, url string, status int))
}

func pageURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// classifyFailure implements the Classify table's false-action_success rows
// (spec.md §4.7).
func classifyFailure(hint string) (reason string, cause model.Cause) {
	lower := strings.ToLower(hint)
	switch {
	case strings.Contains(lower, "not-found"):
		return "selector-not-found", model.CauseNotFound
	case strings.Contains(lower, "interactable") || strings.Contains(lower, "blocked"):
		return "element-not-interactable", model.CauseBlocked
	case strings.Contains(lower, "prevented"):
		return "form-submit-prevented", model.CausePreventedSubmit
	case strings.Contains(lower, "timeout"):
		return "outcome-timeout", model.CauseTimeout
	case hint == "unsupported-promise-type":
		return "unsupported-promise-type", model.CauseBlocked
	default:
		return "error:" + hint, model.CauseError
	}
}

// waitEffect implements the bounded adaptive watcher of spec.md §4.7: poll
// until acknowledgment, hold for the stability window, or give up after
// early_exit_ms of sustained quiet, bounded overall by max_wait.
func (p *Planner) waitEffect(ctx context.Context, page *rod.Page, bundle *evidence.Bundle, sensor *routesensor.Sensor, urlBefore string) (model.Signals, []routesensor.Transition, bool) {
	deadline := p.clock.NowMS() + p.wait.MaxWait.Milliseconds()
	quietSince := int64(-1)
	late := false
	var transitions []routesensor.Transition
	var signals model.Signals

	ticker := time.NewTicker(p.wait.PollInterval)
	defer ticker.Stop()

	for {
		if sensor != nil {
			transitions = append(transitions, sensor.ReadAndClear()...)
		}
		_ = bundle.CaptureAfter(ctx, page)
		urlNow := pageURL(page)
		signals = bundle.AnalyzeChanges(urlBefore, urlNow, transitions)

		acknowledged := signals.RouteChanged || signals.MeaningfulDOMChange || signals.FeedbackSeen || signals.CorrelatedNetworkActivity
		now := p.clock.NowMS()

		if acknowledged {
			if now > deadline {
				late = true
			}
			p.holdStability(ctx)
			if sensor != nil {
				transitions = append(transitions, sensor.ReadAndClear()...)
			}
			_ = bundle.CaptureAfter(ctx, page)
			signals = bundle.AnalyzeChanges(urlBefore, pageURL(page), transitions)
			return signals, transitions, late
		}

		if !signals.Any() {
			if quietSince < 0 {
				quietSince = now
			}
			if now-quietSince >= p.wait.EarlyExit.Milliseconds() {
				return signals, transitions, late
			}
		} else {
			quietSince = -1
		}

		if now >= deadline {
			return signals, transitions, late
		}

		select {
		case <-ctx.Done():
			return signals, transitions, late
		case <-ticker.C:
		}
	}
}

func (p *Planner) holdStability(ctx context.Context) {
	t := time.NewTimer(p.wait.StabilityWindow)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// MaxRetries is exposed for the Orchestrator's retry loop (spec.md §4.7:
// "Timeouts ... at most max_retries_per_interaction=2").
func MaxRetries() int { return maxRetriesPerInteraction }

// Retryable reports whether cause permits a retry. not-found and blocked
// are reported but never retried; only timeout is retried, and a "settle"
// timeout (already retried to the limit) is terminal. retriesSoFar is the
// number of retries already made for the item (0 after the first attempt).
func Retryable(cause model.Cause, retriesSoFar int) bool {
	return cause == model.CauseTimeout && retriesSoFar < maxRetriesPerInteraction
}
