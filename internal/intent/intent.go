// Package intent implements the Intent Engines (C11, spec.md §4.10): pure,
// deterministic functions from a minimal element snapshot to an intent
// tag. No teacher equivalent exists (codeNERD has no notion of an
// interaction's navigational/submission intent); built fresh from the
// spec's literal decision rules.
package intent

import "strings"

// Snapshot is the minimal element-level evidence the intent engines need.
// It is deliberately narrower than model.RuntimeTarget: intent classification
// only looks at structural signals, never at text content or styling.
type Snapshot struct {
	TagName          string
	HasHref          bool
	Role             string
	IsSubmitControl  bool
	HasFormAncestor  bool
	HasClickHandler  bool
	HasToggleARIA    bool // aria-pressed, aria-expanded, aria-checked
}

// Interaction is the closed set of interaction-intent tags.
type Interaction string

const (
	InteractionNavigation    Interaction = "NAVIGATION"
	InteractionSubmission    Interaction = "SUBMISSION"
	InteractionToggle        Interaction = "TOGGLE"
	InteractionAsyncFeedback Interaction = "ASYNC_FEEDBACK"
	InteractionUnknown       Interaction = "UNKNOWN"
)

// Classify determines the interaction intent of an element snapshot
// (spec.md §4.10).
func Classify(s Snapshot) Interaction {
	switch {
	case s.TagName == "a" && s.HasHref:
		return InteractionNavigation
	case s.IsSubmitControl && s.HasFormAncestor:
		return InteractionSubmission
	case s.HasToggleARIA:
		return InteractionToggle
	case s.HasClickHandler:
		return InteractionAsyncFeedback
	default:
		return InteractionUnknown
	}
}

// Navigation is the closed set of navigation-intent tags.
type Navigation string

const (
	NavFullPage  Navigation = "FULL_PAGE_NAV"
	NavSPARoute  Navigation = "SPA_ROUTE_NAV"
	NavHash      Navigation = "HASH_NAV"
	NavUnknown   Navigation = "UNKNOWN"
)

// ClassifyNavigation determines the navigation intent of an anchor's href
// relative to the current page URL. urlBefore/urlAfter, when both
// non-empty, let the hash-only case be distinguished from a full
// navigation (spec.md §4.10: "hash distinction requiring before/after
// URLs comparable").
func ClassifyNavigation(href, pageURL, urlBefore, urlAfter string) Navigation {
	if href == "" {
		return NavUnknown
	}
	if len(href) > 0 && href[0] == '#' {
		return NavHash
	}
	if urlBefore != "" && urlAfter != "" {
		if sameOriginAndPath(urlBefore, urlAfter) {
			return NavHash
		}
	}
	if isSameOrigin(href, pageURL) {
		return NavSPARoute
	}
	return NavFullPage
}

// Submission is the closed set of submission-intent tags.
type Submission string

const (
	SubmissionForm    Submission = "FORM_SUBMISSION"
	SubmissionUnknown Submission = "UNKNOWN"
)

// ClassifySubmission determines the submission intent (spec.md §4.10).
func ClassifySubmission(s Snapshot) Submission {
	if s.IsSubmitControl && s.HasFormAncestor {
		return SubmissionForm
	}
	return SubmissionUnknown
}

func sameOriginAndPath(a, b string) bool {
	return originAndPath(a) == originAndPath(b)
}

func originAndPath(raw string) string {
	// A coarse origin+path extraction good enough for before/after
	// comparisons; full URL parsing happens upstream in discovery/evidence.
	rest := raw
	if _, after, found := strings.Cut(raw, "://"); found {
		rest = after
	}
	rest, _, _ = strings.Cut(rest, "#")
	rest, _, _ = strings.Cut(rest, "?")
	return rest
}

func isSameOrigin(href, pageURL string) bool {
	return origin(href) == origin(pageURL) || origin(href) == ""
}

func origin(raw string) string {
	scheme, tail, found := strings.Cut(raw, "://")
	if !found {
		return ""
	}
	host, _, _ := strings.Cut(tail, "/")
	return scheme + "://" + host
}

// BrokenNavigation reports whether the spec.md §4.10 "broken navigation"
// finding condition holds: an explicit navigation intent whose
// intent-specific observable contract was not met.
func BrokenNavigation(nav Navigation, navigationChanged bool) bool {
	switch nav {
	case NavFullPage:
		return !navigationChanged
	case NavSPARoute, NavHash:
		return !navigationChanged
	default:
		return false
	}
}
