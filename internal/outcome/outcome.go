// Package outcome implements the Outcome Evaluator & Silence Classifier
// (C10, spec.md §4.9): the canonical table mapping an expected outcome and
// observed signals to a satisfied/unsatisfied verdict, and the precedence
// rules that classify an unsatisfied, signal-free attempt into one of the
// seven silence kinds. Built fresh from the spec's literal tables; the
// teacher has no analog (codeNERD never asks "did the app acknowledge
// this interaction").
package outcome

import (
	"strings"

	"verax/internal/model"
)

// MeetsExpectation implements the canonical satisfaction table.
func MeetsExpectation(expected model.ExpectedOutcome, s model.Signals) bool {
	switch expected {
	case model.OutcomeNavigation:
		return s.NavigationChanged || s.RouteChanged
	case model.OutcomeFeedback:
		return s.FeedbackSeen
	case model.OutcomeNetwork:
		return s.CorrelatedNetworkActivity || s.NetworkActivity
	case model.OutcomeUIChange:
		return s.NavigationChanged || s.MeaningfulDOMChange || s.FeedbackSeen || s.CorrelatedNetworkActivity
	default:
		return false
	}
}

// NetworkObservation is the minimal correlated-response/console context the
// Silence Classifier needs beyond Signals.
type NetworkObservation struct {
	CorrelatedStatuses []int
	NoResponseReceived bool
	ConsoleText        []string
	AcknowledgedLate   bool // signals appeared after max_wait (spec.md §4.7's slow-acknowledgment case)
	UserNavigated      bool // the Planner observed a full-page navigation unrelated to the expectation
}

func containsAny(texts []string, needles ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
	}
	return false
}

func hasAuthStatus(statuses []int) bool {
	for _, code := range statuses {
		if code == 401 || code == 403 {
			return true
		}
	}
	return false
}

func has2xx(statuses []int) bool {
	for _, code := range statuses {
		if code >= 200 && code < 300 {
			return true
		}
	}
	return false
}

// Classify assigns a SilenceKind by the precedence order in spec.md §4.9:
// user-navigation > auth > network-timeout > ui-render-failure >
// server-side-only > slow-acknowledgment > true-silence. Only called when
// the expectation was unsatisfied and the attempt had no other signals.
func Classify(s model.Signals, obs NetworkObservation) model.SilenceKind {
	switch {
	case obs.UserNavigated:
		return model.SilenceUserNavigation
	case hasAuthStatus(obs.CorrelatedStatuses) || containsAny(obs.ConsoleText, "unauthorized", "login required"):
		return model.SilenceBlockedByAuth
	case obs.NoResponseReceived || containsAny(obs.ConsoleText, "timeout"):
		return model.SilenceNetworkTimeout
	case has2xx(obs.CorrelatedStatuses) && s.DOMChanged && !s.MeaningfulDOMChange || containsAny(obs.ConsoleText, "render error"):
		return model.SilenceUIRenderFailure
	case has2xx(obs.CorrelatedStatuses) && !s.DOMChanged:
		return model.SilenceServerSideOnly
	case obs.AcknowledgedLate:
		return model.SilenceSlowAck
	default:
		return model.SilenceTrue
	}
}
