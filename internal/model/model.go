// Package model defines the shared data types that flow between VERAX's
// discovery, planning, detection, and reporting stages. Types here are
// plain data — no behavior beyond simple accessors — so that every
// component can depend on them without pulling in unrelated packages.
package model

import "time"

// ExpectationKind enumerates the kinds of expectation discovery can produce.
type ExpectationKind string

const (
	KindNavigation ExpectationKind = "navigation"
	KindButton     ExpectationKind = "button"
	KindForm       ExpectationKind = "form"
	KindValidation ExpectationKind = "validation"
	KindState      ExpectationKind = "state"
	KindNetwork    ExpectationKind = "network"
)

// ExpectedOutcome enumerates the observable outcome an expectation predicts.
type ExpectedOutcome string

const (
	OutcomeNavigation ExpectedOutcome = "navigation"
	OutcomeFeedback   ExpectedOutcome = "feedback"
	OutcomeNetwork    ExpectedOutcome = "network"
	OutcomeUIChange   ExpectedOutcome = "ui_change"
)

// DiscoveryPhase records when an expectation was discovered.
type DiscoveryPhase string

const (
	PhaseStatic  DiscoveryPhase = "static"
	PhaseRuntime DiscoveryPhase = "runtime"
)

// RuntimeContextKind distinguishes where in the frame/shadow tree a runtime
// navigation target was found.
type RuntimeContextKind string

const (
	ContextDOM       RuntimeContextKind = "dom"
	ContextShadowDOM RuntimeContextKind = "shadow-dom"
	ContextIframe    RuntimeContextKind = "iframe"
)

// Source identifies where an expectation came from.
type Source struct {
	File             string         `json:"file,omitempty"`
	Line             int            `json:"line,omitempty"`
	DiscoveredAtPhase DiscoveryPhase `json:"discovered_at_phase"`
}

// RuntimeNav carries the runtime-discovery-specific fields of an expectation
// created from a live DOM target.
type RuntimeNav struct {
	Href            string             `json:"href"`
	NormalizedHref  string             `json:"normalized_href"`
	SelectorPath    string             `json:"selector_path"`
	Context         RuntimeContextKind `json:"context"`
	ShadowHostTag   string             `json:"host_tag,omitempty"`
	IframeFrameURL  string             `json:"frame_url,omitempty"`
}

// Expectation is a prediction that interacting with some locus of the
// application produces a named observable outcome. Immutable after
// discovery (I5: its ID is stable under identical inputs).
type Expectation struct {
	ID              string          `json:"id"`
	Kind            ExpectationKind `json:"kind"`
	Selector        string          `json:"selector,omitempty"`
	ExpectedOutcome ExpectedOutcome `json:"expected_outcome"`
	Source          Source          `json:"source"`
	RuntimeNav      *RuntimeNav     `json:"runtime_nav,omitempty"`
}

// RuntimeTarget is a concrete navigation target extracted from the live DOM
// by the discovery pipeline (C5), prior to being wrapped as an Expectation.
type RuntimeTarget struct {
	ID             string             `json:"id"`
	TagName        string             `json:"tag_name"`
	Href           string             `json:"href"`
	NormalizedHref string             `json:"normalized_href"`
	SelectorPath   string             `json:"selector_path"`
	Attributes     map[string]string  `json:"attributes,omitempty"`
	TextContent    string             `json:"text_content,omitempty"`
	SourceKind     RuntimeContextKind `json:"source_kind"`
	Role           string             `json:"role,omitempty"`
	FrameURL       string             `json:"frame_url,omitempty"`
	HostTag        string             `json:"host_tag,omitempty"`
}

// ActionKind enumerates how the dispatcher acted on an expectation.
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionSubmit      ActionKind = "submit"
	ActionObserve     ActionKind = "observe"
	ActionUnsupported ActionKind = "unsupported"
	ActionError       ActionKind = "error"
)

// Cause enumerates the closed set of attempt causes (spec.md §3 Attempt).
type Cause string

const (
	CauseNotFound         Cause = "not-found"
	CauseBlocked          Cause = "blocked"
	CausePreventedSubmit  Cause = "prevented-submit"
	CauseTimeout          Cause = "timeout"
	CauseNoChange         Cause = "no-change"
	CauseError            Cause = "error"
	CauseNull             Cause = "null"
)

// Signals is the structured set of booleans promoted from an Evidence
// Bundle to an Attempt (spec.md §4.6).
type Signals struct {
	NavigationChanged         bool `json:"navigation_changed"`
	RouteChanged              bool `json:"route_changed"`
	MeaningfulDOMChange       bool `json:"meaningful_dom_change"`
	MeaningfulUIChange        bool `json:"meaningful_ui_change"`
	FeedbackSeen              bool `json:"feedback_seen"`
	CorrelatedNetworkActivity bool `json:"correlated_network_activity"`
	NetworkActivity           bool `json:"network_activity"`
	DOMChanged                bool `json:"dom_changed"`
	AttributeOnlyChange       bool `json:"attribute_only_change"`
}

// Any reports whether at least one signal fired.
func (s Signals) Any() bool {
	return s.NavigationChanged || s.RouteChanged || s.MeaningfulDOMChange ||
		s.MeaningfulUIChange || s.FeedbackSeen || s.CorrelatedNetworkActivity ||
		s.NetworkActivity || s.DOMChanged
}

// SilenceKind is the closed set of silence classifications (spec.md §4.9).
type SilenceKind string

const (
	SilenceTrue              SilenceKind = "TRUE_SILENCE"
	SilenceSlowAck           SilenceKind = "SLOW_ACKNOWLEDGMENT"
	SilenceBlockedByAuth     SilenceKind = "BLOCKED_BY_AUTH"
	SilenceServerSideOnly    SilenceKind = "SERVER_SIDE_ONLY"
	SilenceUIRenderFailure   SilenceKind = "UI_RENDER_FAILURE"
	SilenceNetworkTimeout    SilenceKind = "NETWORK_TIMEOUT"
	SilenceUserNavigation    SilenceKind = "USER_NAVIGATION"
)

// Attempt is the single executed-or-skipped record corresponding to one
// Expectation (spec.md §3, I1).
type Attempt struct {
	ExpectationID string      `json:"id"`
	Kind          ExpectationKind `json:"kind"`
	Attempted     bool        `json:"attempted"`
	Observed      bool        `json:"observed"`
	Action        ActionKind  `json:"action"`
	Reason        string      `json:"reason"`
	Cause         Cause       `json:"cause"`
	Signals       Signals     `json:"signals"`
	SilenceKind   SilenceKind `json:"silence_kind,omitempty"`
	EvidenceRef   string      `json:"evidence_ref,omitempty"`
	EvidenceFiles []string    `json:"evidence_files,omitempty"`
}

// FindingStatus is the closed status set a finding can carry.
type FindingStatus string

const (
	StatusConfirmed     FindingStatus = "CONFIRMED"
	StatusSuspected     FindingStatus = "SUSPECTED"
	StatusInformational FindingStatus = "INFORMATIONAL"
)

// Severity is the closed severity set.
type Severity string

const (
	SeverityHigh    Severity = "HIGH"
	SeverityMedium  Severity = "MEDIUM"
	SeverityLow     Severity = "LOW"
	SeverityUnknown Severity = "UNKNOWN"
)

// ConfidenceLevel buckets a numeric confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "HIGH"
	ConfidenceMedium  ConfidenceLevel = "MEDIUM"
	ConfidenceLow     ConfidenceLevel = "LOW"
	ConfidenceUnproven ConfidenceLevel = "UNPROVEN"
)

// EvidenceCategory is one of the strong-evidence categories required by I3.
type EvidenceCategory string

const (
	CategoryNavigation    EvidenceCategory = "navigation"
	CategoryMeaningfulDOM EvidenceCategory = "meaningful_dom"
	CategoryFeedback      EvidenceCategory = "feedback"
	CategoryNetwork       EvidenceCategory = "network"
)

// Evidence is the evidence block attached to a Finding.
type Evidence struct {
	EvidenceFiles    []string           `json:"evidence_files"`
	Categories       []EvidenceCategory `json:"categories"`
	AmbiguityReasons []string           `json:"ambiguity_reasons,omitempty"`
}

// Policy records whether/why a finding was suppressed or downgraded.
type Policy struct {
	Suppressed bool        `json:"suppressed"`
	Downgraded bool        `json:"downgraded"`
	Rule       interface{} `json:"rule,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Finding is a typed, evidence-backed observation about the target app.
type Finding struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Status            FindingStatus   `json:"status"`
	Severity          Severity        `json:"severity"`
	Confidence        float64         `json:"confidence"`
	ConfidenceLevel   ConfidenceLevel `json:"confidenceLevel"`
	ConfidenceReasons []string        `json:"confidenceReasons"`
	Evidence          Evidence        `json:"evidence"`
	Policy            Policy          `json:"policy"`
}

// RunStats mirrors META.json's stats block.
type RunStats struct {
	TotalExpectations int     `json:"totalExpectations"`
	Attempted         int     `json:"attempted"`
	Observed          int     `json:"observed"`
	NotObserved       int     `json:"notObserved"`
	Skipped           int     `json:"skipped"`
	SkippedReasons    map[string]int `json:"skippedReasons,omitempty"`
	BlockedWrites     int     `json:"blockedWrites"`
	CoverageRatio     float64 `json:"coverageRatio"`
}

// OutOfScopeFeedback records a not-observed attempt whose only DOM evidence
// was a style/class/aria-expanded/data-* attribute change: weak evidence
// that spec §1's Non-goal (iii) forbids promoting to a finding. Surfaced as
// REPORT.json coverage-gap metadata instead.
type OutOfScopeFeedback struct {
	ExpectationID string `json:"expectation_id"`
	Reason        string `json:"reason"`
}

// RunStatus is the closed status set for META.json.
type RunStatus string

const (
	RunSuccess    RunStatus = "SUCCESS"
	RunFindings   RunStatus = "FINDINGS"
	RunIncomplete RunStatus = "INCOMPLETE"
)

// Timestamped is a small helper embedded by event records that need a
// monotonic relative offset in addition to wall-clock time.
type Timestamped struct {
	RelativeMS int64     `json:"relative_ms"`
	At         time.Time `json:"-"`
}
