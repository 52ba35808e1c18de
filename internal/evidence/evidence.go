// Package evidence implements the Evidence Bundle (C7, spec.md §4.6): the
// before/after capture, console/network correlation, and change-analysis
// pipeline that produces the Signals promoted to an Attempt, plus the
// artifact files written under evidence/. Grounded on the teacher's
// captureDOMFacts/startEventStream (internal/browser/session_manager.go)
// for the page.Eval-snapshot + CDP-event-subscription shape, and on
// internal/diff (sergi/go-diff) for structural DOM comparison.
package evidence

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"verax/internal/atomicio"
	"verax/internal/diff"
	"verax/internal/model"
	"verax/internal/redact"
	"verax/internal/routesensor"
)

//go:embed evidence.js
var captureJS string

type snapshot struct {
	HTML     string           `json:"html"`
	URL      string           `json:"url"`
	Feedback []feedbackRecord `json:"feedback"`
}

type feedbackRecord struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Visible  bool   `json:"visible"`
}

// ConsoleEntry is one captured console message.
type ConsoleEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// NetworkEntry is one captured network request/response pair summary.
type NetworkEntry struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
}

// Bundle accumulates evidence for one interaction attempt.
type Bundle struct {
	dir           string
	interactionID string

	before *snapshot
	after  *snapshot

	mu          sync.Mutex
	console     []ConsoleEntry
	network     map[string]*NetworkEntry
	transitions []routesensor.Transition

	unsubscribeConsole func()
	unsubscribeNetwork func()
}

// New creates a Bundle that will write its artifact files under
// evidenceDir/interactionID/.
func New(evidenceDir, interactionID string) *Bundle {
	return &Bundle{
		dir:           filepath.Join(evidenceDir, interactionID),
		interactionID: interactionID,
		network:       make(map[string]*NetworkEntry),
	}
}

// StartListening subscribes to console CDP events for the duration of ctx.
// Must be called before the action is dispatched so console output emitted
// during WaitEffect is captured. Network observation is deliberately not
// done via a Network-domain subscription here: the Firewall (C12) already
// intercepts every request on the Fetch domain, and subscribing to
// NetworkRequestWillBeSent/NetworkResponseReceived at the same time as an
// active Fetch-domain hijack causes every hijacked request to fail with
// ERR_BLOCKED_BY_CLIENT on current Chromium (see
// other_examples/d8821d0c_..._scraper-page.go.go's setupHijack comment).
// Instead the Orchestrator feeds this bundle's RecordNetworkEntry from the
// Firewall's own interception callback, which sees every request exactly
// once regardless of whether it was allowed or blocked.
func (b *Bundle) StartListening(ctx context.Context, page *rod.Page) {
	scoped := page.Context(ctx)

	waitConsole := scoped.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		b.RecordConsole(e)
	})
	go waitConsole()
}

// RecordNetworkEntry records one request/response observed by the
// Firewall's interception callback (spec.md §4.6's correlate_network()
// input).
func (b *Bundle) RecordNetworkEntry(method, url string, status int) {
	b.mu.Lock()
	b.network[method+" "+url] = &NetworkEntry{Method: method, URL: url, Status: status}
	b.mu.Unlock()
}

// RecordConsole appends one console event; exported so callers that
// already hold a console subscription elsewhere can feed this bundle
// directly (spec.md's record_console(evt)).
func (b *Bundle) RecordConsole(e *proto.RuntimeConsoleAPICalled) {
	text := ""
	for _, arg := range e.Args {
		if arg.Value.Val() != nil {
			text += fmt.Sprintf("%v ", arg.Value.Val())
		}
	}
	b.mu.Lock()
	b.console = append(b.console, ConsoleEntry{Level: string(e.Type), Text: strings.TrimSpace(text)})
	b.mu.Unlock()
}

// CaptureBefore snapshots the page immediately before the action is
// dispatched.
func (b *Bundle) CaptureBefore(ctx context.Context, page *rod.Page) error {
	snap, err := capture(ctx, page)
	if err != nil {
		return fmt.Errorf("evidence: capture before: %w", err)
	}
	b.before = snap
	return nil
}

// CaptureAfter snapshots the page once WaitEffect has settled.
func (b *Bundle) CaptureAfter(ctx context.Context, page *rod.Page) error {
	snap, err := capture(ctx, page)
	if err != nil {
		return fmt.Errorf("evidence: capture after: %w", err)
	}
	b.after = snap
	return nil
}

func capture(ctx context.Context, page *rod.Page) (*snapshot, error) {
	res, err := page.Context(ctx).Eval(captureJS)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CorrelateNetwork reports whether any network activity was recorded during
// the attempt window.
func (b *Bundle) CorrelateNetwork() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.network) > 0
}

const domChangeHunkThreshold = 1

// AnalyzeChanges computes the Signals struct for this attempt from the
// before/after captures, the route sensor's transitions, and the
// navigation/route URLs observed by the Planner.
func (b *Bundle) AnalyzeChanges(urlBefore, urlAfter string, transitions []routesensor.Transition) model.Signals {
	var s model.Signals

	// transitions is the Route Sensor's full accumulated list for this
	// attempt so far (the Planner passes the whole running slice on every
	// WaitEffect poll), so store it wholesale rather than appending.
	if len(transitions) > 0 {
		b.mu.Lock()
		b.transitions = append([]routesensor.Transition(nil), transitions...)
		b.mu.Unlock()
	}

	s.NavigationChanged = urlBefore != urlAfter
	s.RouteChanged = len(transitions) > 0 || routesensor.RouteSignatureChanged(urlBefore, urlAfter)

	if b.before != nil && b.after != nil {
		fileDiff := diff.ComputeDiff("before", "after", b.before.HTML, b.after.HTML)
		s.DOMChanged = len(fileDiff.Hunks) > 0
		significant := len(fileDiff.Hunks) >= domChangeHunkThreshold && significantHunks(fileDiff)
		weakOnly := significant && attributeOnlyChange(b.before.HTML, b.after.HTML)
		s.MeaningfulDOMChange = significant && !weakOnly
		s.AttributeOnlyChange = weakOnly
	}

	s.FeedbackSeen = b.feedbackVisible()

	b.mu.Lock()
	s.NetworkActivity = len(b.network) > 0
	b.mu.Unlock()
	s.CorrelatedNetworkActivity = s.NetworkActivity && (s.RouteChanged || s.DOMChanged)

	s.MeaningfulUIChange = s.NavigationChanged || s.MeaningfulDOMChange || s.FeedbackSeen || s.CorrelatedNetworkActivity

	return s
}

// significantHunks filters out whitespace-only diffs so formatting noise
// never counts as a meaningful DOM change: the removed and added lines are
// compared with all whitespace stripped.
func significantHunks(fileDiff *diff.FileDiff) bool {
	var removed, added strings.Builder
	for _, h := range fileDiff.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case diff.LineRemoved:
				removed.WriteString(strings.Join(strings.Fields(l.Content), ""))
			case diff.LineAdded:
				added.WriteString(strings.Join(strings.Fields(l.Content), ""))
			}
		}
	}
	return removed.String() != added.String()
}

// weakAttrPattern matches the attribute families spec §1's Non-goal (iii)
// names as never sufficient alone to prove an observable effect: class,
// inline style, aria-expanded, and any custom data-* attribute.
var weakAttrPattern = regexp.MustCompile(`\s(?:class|style|aria-expanded|data-[a-zA-Z0-9_-]+)="[^"]*"`)

func stripWeakAttributes(html string) string {
	return weakAttrPattern.ReplaceAllString(html, "")
}

// attributeOnlyChange reports whether before/after differ only in the
// attributes weakAttrPattern covers, once those attributes are stripped from
// both sides. A true structural or text change survives the strip and is
// still reported as a real DOM change.
func attributeOnlyChange(before, after string) bool {
	if before == after {
		return false
	}
	return stripWeakAttributes(before) == stripWeakAttributes(after)
}

func (b *Bundle) feedbackVisible() bool {
	if b.after == nil {
		return false
	}
	for _, f := range b.after.Feedback {
		if f.Visible && f.Text != "" {
			return true
		}
	}
	return false
}

// Summary is the structured result returned by GetSummary; Finalize writes
// it, redacted, to the bundle's trace.json.
type Summary struct {
	InteractionID string                   `json:"interaction_id"`
	ConsoleCount  int                      `json:"console_count"`
	NetworkCount  int                      `json:"network_count"`
	Console       []ConsoleEntry           `json:"console,omitempty"`
	Network       []NetworkEntry           `json:"network,omitempty"`
	Transitions   []routesensor.Transition `json:"route_transitions,omitempty"`
}

// GetSummary returns the bundle's accumulated console/network/route evidence.
func (b *Bundle) GetSummary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	network := make([]NetworkEntry, 0, len(b.network))
	for _, e := range b.network {
		network = append(network, *e)
	}

	return Summary{
		InteractionID: b.interactionID,
		ConsoleCount:  len(b.console),
		NetworkCount:  len(network),
		Console:       append([]ConsoleEntry(nil), b.console...),
		Network:       network,
		Transitions:   append([]routesensor.Transition(nil), b.transitions...),
	}
}

// Finalize writes this bundle's artifact files under dir/interactionID/ and
// returns their paths, each rooted at the evidence directory the Bundle was
// created with (evidenceDir/interactionID/file), per spec.md §4.6.
// Evidence Law (I2) requires every CONFIRMED finding's referenced file to
// exist and be non-empty; atomicio.WriteJSONAtomic guarantees the file is
// never left partially written.
func (b *Bundle) Finalize() ([]string, error) {
	var written []string

	domDigestPath := filepath.Join(b.dir, "dom_digest.json")
	domDigest := struct {
		BeforeURL string `json:"before_url,omitempty"`
		AfterURL  string `json:"after_url,omitempty"`
		BeforeLen int    `json:"before_len"`
		AfterLen  int    `json:"after_len"`
	}{}
	if b.before != nil {
		domDigest.BeforeURL = b.before.URL
		domDigest.BeforeLen = len(b.before.HTML)
	}
	if b.after != nil {
		domDigest.AfterURL = b.after.URL
		domDigest.AfterLen = len(b.after.HTML)
	}
	if err := atomicio.WriteJSONAtomic(domDigestPath, domDigest); err != nil {
		return nil, fmt.Errorf("evidence: write dom digest: %w", err)
	}
	written = append(written, domDigestPath)

	summary := redactSummary(b.GetSummary())
	if summary.NetworkCount > 0 || summary.ConsoleCount > 0 || len(summary.Transitions) > 0 {
		tracePath := filepath.Join(b.dir, "trace.json")
		if err := atomicio.WriteJSONAtomic(tracePath, summary); err != nil {
			return nil, fmt.Errorf("evidence: write trace: %w", err)
		}
		written = append(written, tracePath)
	}

	return written, nil
}

// redactSummary scrubs tokens/secrets from URLs and console text before
// the summary ever reaches disk (spec.md §4.1 Evidence Law companion: no
// evidence artifact may carry raw credentials).
func redactSummary(s Summary) Summary {
	for i := range s.Network {
		s.Network[i].URL = redact.URL(s.Network[i].URL)
	}
	for i := range s.Console {
		s.Console[i].Text = redact.URL(s.Console[i].Text)
	}
	for i := range s.Transitions {
		s.Transitions[i].From = redact.URL(s.Transitions[i].From)
		s.Transitions[i].To = redact.URL(s.Transitions[i].To)
	}
	return s
}
