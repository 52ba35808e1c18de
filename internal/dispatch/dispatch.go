// Package dispatch implements the Action Dispatcher (C9, spec.md §4.8):
// routes an Expectation to an executor by kind/category and always
// returns an Outcome, never an error. Grounded on the teacher's
// SessionManager.Click/Type/Navigate (element lookup via page.Element,
// el.Click/el.Input) and on the selector-path-aware refind pattern from
// other_examples/d8821d0c_Easonliuliang-purify__scraper-page.go.go's
// element-handling style.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"verax/internal/model"
)

// Outcome is the dispatcher's always-returned result; never an error value
// (spec.md §4.8: "Always returns an outcome object; never throws").
type Outcome struct {
	Success   bool
	CauseHint string // fed into the Planner's Classify table, e.g. "not-found", "blocked", "prevented", "timeout"
	Action    model.ActionKind
	Detail    string
}

// Target carries what the dispatcher needs to act, independent of how the
// Expectation was discovered.
type Target struct {
	Kind         model.ExpectationKind
	Selector     string
	SelectorPath string // runtime-nav selector path, shadow/iframe aware
	ShadowHost   bool
	FrameURL     string
	FormFields   map[string]string // for kind=form: field selector -> value to type
}

const elementTimeout = 5 * time.Second

// Dispatch routes target to the right executor for page and returns an
// Outcome. It never panics and never returns a Go error — failures are
// encoded in Outcome.Success/CauseHint per spec.md §4.8.
func Dispatch(ctx context.Context, page *rod.Page, target Target) Outcome {
	switch target.Kind {
	case model.KindNavigation, model.KindButton:
		return dispatchClick(ctx, page, target)
	case model.KindForm:
		return dispatchForm(ctx, page, target)
	case model.KindValidation:
		return dispatchValidation(ctx, page, target)
	case model.KindState:
		return dispatchObserve(ctx, page, target)
	case model.KindNetwork:
		return dispatchObserve(ctx, page, target)
	default:
		return Outcome{Success: false, CauseHint: "unsupported-promise-type", Action: model.ActionUnsupported}
	}
}

func resolveSelector(target Target) string {
	if target.SelectorPath != "" {
		return target.SelectorPath
	}
	return target.Selector
}

// shadowSeparator is the literal segment discovery.js inserts into a
// selector path at every shadow-root crossing (internal/discovery/discovery.js).
const shadowSeparator = "::shadow"

// splitShadowSegments splits a full selector path into the CSS selector to
// run at each shadow level, in traversal order. A path with no shadow
// crossing returns a single segment equal to the whole path.
func splitShadowSegments(selectorPath string) []string {
	tokens := strings.Split(selectorPath, ">")
	var segments []string
	var current []string
	for _, tok := range tokens {
		if tok == shadowSeparator {
			segments = append(segments, strings.Join(current, ">"))
			current = nil
			continue
		}
		current = append(current, tok)
	}
	segments = append(segments, strings.Join(current, ">"))
	return segments
}

// resolveFrame switches to the same-origin iframe target.FrameURL names
// (spec.md §4.8: "selector-path aware, with shadow/iframe refind"), matching
// by the iframe's src attribute the same way discovery.Discover enumerated
// it. Returns page itself, unchanged, when frameURL is empty.
func resolveFrame(ctx context.Context, page *rod.Page, frameURL string) (*rod.Page, string) {
	if frameURL == "" {
		return page, ""
	}
	iframeEls, err := page.Context(ctx).Elements("iframe")
	if err != nil {
		return nil, "not-found: iframe lookup failed: " + err.Error()
	}
	for _, el := range iframeEls {
		src, err := el.Attribute("src")
		if err != nil || src == nil || *src != frameURL {
			continue
		}
		framePage, err := el.Frame()
		if err != nil {
			return nil, "not-found: frame switch failed: " + err.Error()
		}
		return framePage, ""
	}
	return nil, "not-found: iframe with src " + frameURL + " not found"
}

// findElementBySelector is the plain, non-shadow/frame-aware lookup used for
// raw CSS selectors that were never discovered via runtime-nav (e.g. a form's
// per-field selectors, which are always document-scoped today).
func findElementBySelector(ctx context.Context, page *rod.Page, selector string) (*rod.Element, string) {
	el, err := page.Context(ctx).Timeout(elementTimeout).Element(selector)
	if err != nil {
		return nil, "not-found: " + err.Error()
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return nil, "interactable/blocked: element not visible"
	}
	return el, ""
}

// findElementInShadow walks a "::shadow"-separated selector path, piercing
// each shadow-root boundary via Element.ShadowRoot before resolving the next
// segment within it.
func findElementInShadow(ctx context.Context, page *rod.Page, selectorPath string) (*rod.Element, string) {
	segments := splitShadowSegments(selectorPath)

	el, err := page.Context(ctx).Timeout(elementTimeout).Element(segments[0])
	if err != nil {
		return nil, "not-found: " + err.Error()
	}

	for _, seg := range segments[1:] {
		root, err := el.ShadowRoot()
		if err != nil {
			return nil, "not-found: shadow root: " + err.Error()
		}
		el, err = root.Context(ctx).Timeout(elementTimeout).Element(seg)
		if err != nil {
			return nil, "not-found: " + err.Error()
		}
	}

	visible, err := el.Visible()
	if err != nil || !visible {
		return nil, "interactable/blocked: element not visible"
	}
	return el, ""
}

// findElement resolves target's element, switching into target.FrameURL's
// iframe first when set, then piercing shadow-root boundaries when
// target.ShadowHost is set and the selector path actually crosses one.
func findElement(ctx context.Context, page *rod.Page, target Target) (*rod.Element, string) {
	scopePage, hint := resolveFrame(ctx, page, target.FrameURL)
	if scopePage == nil {
		return nil, hint
	}

	selector := resolveSelector(target)
	if target.ShadowHost && strings.Contains(selector, shadowSeparator) {
		return findElementInShadow(ctx, scopePage, selector)
	}
	return findElementBySelector(ctx, scopePage, selector)
}

func dispatchClick(ctx context.Context, page *rod.Page, target Target) Outcome {
	el, hint := findElement(ctx, page, target)
	if el == nil {
		return Outcome{Success: false, CauseHint: hint, Action: model.ActionClick}
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Outcome{Success: false, CauseHint: classifyClickError(err), Action: model.ActionClick}
	}
	return Outcome{Success: true, Action: model.ActionClick}
}

func classifyClickError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout: " + err.Error()
	case strings.Contains(msg, "not found"):
		return "not-found: " + err.Error()
	default:
		return "interactable/blocked: " + err.Error()
	}
}

func dispatchForm(ctx context.Context, page *rod.Page, target Target) Outcome {
	for selector, value := range target.FormFields {
		el, hint := findElementBySelector(ctx, page, selector)
		if el == nil {
			return Outcome{Success: false, CauseHint: hint, Action: model.ActionSubmit}
		}
		if err := el.Input(value); err != nil {
			return Outcome{Success: false, CauseHint: "interactable/blocked: " + err.Error(), Action: model.ActionSubmit}
		}
	}

	el, hint := findElement(ctx, page, target)
	if el == nil {
		return Outcome{Success: false, CauseHint: hint, Action: model.ActionSubmit}
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Outcome{Success: false, CauseHint: "prevented: " + err.Error(), Action: model.ActionSubmit}
	}
	return Outcome{Success: true, Action: model.ActionSubmit}
}

// dispatchValidation attempts submit and leaves checking for validation UI
// to the Evidence Bundle/Outcome Evaluator (feedback_seen), per spec.md
// §4.8: "attempt submit and check for validation UI".
func dispatchValidation(ctx context.Context, page *rod.Page, target Target) Outcome {
	return dispatchForm(ctx, page, target)
}

// dispatchObserve covers kind=state and kind=network: there is no element
// action to perform, just a wait-and-observe; the Planner's WaitEffect and
// Evidence Bundle do the actual work, so this always reports success and
// lets Classify/Outcome decide based on signals.
func dispatchObserve(ctx context.Context, page *rod.Page, target Target) Outcome {
	_ = ctx
	_ = page
	return Outcome{Success: true, Action: model.ActionObserve}
}
