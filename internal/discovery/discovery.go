// Package discovery implements Runtime Navigation Discovery (C5, spec.md
// §4.4): depth-first traversal of the live DOM, including open shadow
// roots and same-origin iframes, collecting candidate navigation targets
// with stable, content-derived IDs. Grounded on the teacher's
// SessionManager.captureDOMFacts (internal/browser/session_manager.go) for
// the page.Eval/go:embed injection pattern, and on the domwatch observer
// (other_examples/a883819f_..._observer.go.go) for embedding page-side JS
// alongside the Go that drives it.
package discovery

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"golang.org/x/sync/errgroup"

	"verax/internal/idstable"
	"verax/internal/model"
)

// maxConcurrentFrames bounds same-origin iframe traversal fan-out so a page
// with many frames cannot spawn unbounded concurrent CDP sessions.
const maxConcurrentFrames = 4

//go:embed discovery.js
var discoveryJS string

// Options configures one discovery pass.
type Options struct {
	AllowCrossOrigin bool
	MaxTargets       int
}

// DefaultOptions mirrors spec.md §4.4's defaults.
func DefaultOptions() Options {
	return Options{AllowCrossOrigin: false, MaxTargets: 25}
}

type rawTarget struct {
	Href         string `json:"href"`
	TagName      string `json:"tagName"`
	SelectorPath string `json:"selectorPath"`
	Role         string `json:"role"`
	Visible      bool   `json:"visible"`
}

var rejectedSchemes = map[string]bool{
	"javascript": true,
	"mailto":     true,
	"tel":        true,
	"sms":        true,
	"data":       true,
}

// Discover runs the discovery algorithm against page (document + same-origin
// iframes) relative to baseURL, and returns the deduplicated, sorted,
// truncated list of runtime-nav targets with stable IDs.
func Discover(ctx context.Context, page *rod.Page, baseURL string, opts Options) ([]model.RuntimeTarget, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse base url: %w", err)
	}
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = 25
	}

	var targets []model.RuntimeTarget
	crossOriginSkipped := 0

	docTargets, err := collectFrom(page.Context(ctx), base, model.ContextDOM, "")
	if err != nil {
		return nil, err
	}
	targets = append(targets, docTargets...)

	iframeEls, err := page.Context(ctx).Elements("iframe")
	if err == nil {
		var mu sync.Mutex
		var skipped int
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentFrames)

		for _, el := range iframeEls {
			el := el
			frameURL, ok := frameURLOf(el)
			if !ok {
				continue
			}
			fURL, err := url.Parse(frameURL)
			if err != nil {
				continue
			}
			if base.ResolveReference(fURL).Host != base.Host {
				skipped++
				continue
			}

			g.Go(func() error {
				framePage, err := el.Frame()
				if err != nil {
					return nil
				}
				frameTargets, err := collectFrom(framePage.Context(gCtx), base, model.ContextIframe, frameURL)
				if err != nil {
					return nil
				}
				mu.Lock()
				targets = append(targets, frameTargets...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		crossOriginSkipped = skipped
	}

	out := normalizeDeduplicateSort(targets, base, opts)
	_ = crossOriginSkipped // counted for diagnostics; not currently surfaced as a finding field
	return out, nil
}

func frameURLOf(el *rod.Element) (string, bool) {
	src, err := el.Attribute("src")
	if err != nil || src == nil || *src == "" {
		return "", false
	}
	return *src, true
}

func collectFrom(page *rod.Page, base *url.URL, kind model.RuntimeContextKind, frameURL string) ([]model.RuntimeTarget, error) {
	res, err := page.Eval(discoveryJS)
	if err != nil {
		return nil, fmt.Errorf("discovery: eval: %w", err)
	}

	var raw []rawTarget
	if err := json.Unmarshal([]byte(res.Value.Str()), &raw); err != nil {
		return nil, fmt.Errorf("discovery: unmarshal results: %w", err)
	}

	var out []model.RuntimeTarget
	for _, r := range raw {
		if !r.Visible {
			continue
		}
		normalized, ok := normalizeHref(r.Href, base)
		if !ok {
			continue
		}
		sourceKind := kind
		if kind == model.ContextDOM && strings.Contains(r.SelectorPath, "::shadow") {
			sourceKind = model.ContextShadowDOM
		}
		out = append(out, model.RuntimeTarget{
			Href:           r.Href,
			NormalizedHref: normalized,
			TagName:        r.TagName,
			SelectorPath:   r.SelectorPath,
			Role:           r.Role,
			SourceKind:     sourceKind,
			FrameURL:       frameURL,
		})
	}
	return out, nil
}

func normalizeHref(href string, base *url.URL) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || trimmed == "#" {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "" && rejectedSchemes[strings.ToLower(parsed.Scheme)] {
		return "", false
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Fragment != "" && resolved.Path == base.Path && resolved.RawQuery == base.RawQuery {
		// Hash-only change against the current location.
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

func normalizeDeduplicateSort(targets []model.RuntimeTarget, base *url.URL, opts Options) []model.RuntimeTarget {
	seen := make(map[string]bool, len(targets))
	var deduped []model.RuntimeTarget
	for _, t := range targets {
		if !opts.AllowCrossOrigin {
			tURL, err := url.Parse(t.NormalizedHref)
			if err != nil || tURL.Host != base.Host {
				continue
			}
		}
		// Dedup by normalized_href alone (spec.md §3/§4.4 step 6): two DOM
		// matches that resolve to the same destination are the same
		// navigation target even if one is a direct <a href> and the other
		// a wrapping role="link" element with its own selector path.
		key := t.NormalizedHref
		if seen[key] {
			continue
		}
		seen[key] = true
		t.ID = idstable.RuntimeNavID(t.NormalizedHref, t.TagName, t.SelectorPath, t.Role)
		deduped = append(deduped, t)
	}

	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].NormalizedHref != deduped[j].NormalizedHref {
			return deduped[i].NormalizedHref < deduped[j].NormalizedHref
		}
		return deduped[i].SelectorPath < deduped[j].SelectorPath
	})

	if len(deduped) > opts.MaxTargets {
		deduped = deduped[:opts.MaxTargets]
	}
	return deduped
}
