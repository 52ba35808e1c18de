// Package firewall implements the Network Firewall (C12, spec.md §4.11):
// in read-only mode, intercept every outbound request and abort mutating
// verbs (POST/PUT/PATCH/DELETE) before they reach the network, recording
// what was blocked. Grounded on the teacher's startEventStream CDP
// subscription style (internal/browser/session_manager.go), adapted from
// "observe and log" to "intercept via proto.FetchEnable and selectively
// abort" (I6).
package firewall

import (
	"context"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"verax/internal/clock"
	"verax/internal/redact"
)

var mutatingMethods = map[string]bool{
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// writeBlockedReason is the closed reason code stamped on every blocked
// request (spec.md §4.11 / seed scenario blockedWrites).
const writeBlockedReason = "write-blocked-read-only-mode"

// BlockedRequest records one intercepted-and-aborted request, with its URL
// redacted before it is ever held in memory or written to disk.
type BlockedRequest struct {
	Method    string `json:"method"`
	URL       string `json:"url"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// Observer receives every request the firewall sees, blocked or not, with
// the response status when one was obtained. The Evidence Bundle (C7)
// registers one of these instead of its own Network-domain subscription —
// see evidence.Bundle.StartListening for why the two CDP domains conflict.
type Observer func(method, url string, status int)

// Firewall intercepts outbound requests on a page for the lifetime of the
// run and aborts mutating verbs when enabled.
type Firewall struct {
	mu       sync.Mutex
	blocked  []BlockedRequest
	stop     func()
	observer Observer
}

// Install attaches the firewall to page. readOnly mirrors spec.md §7's
// read-only run mode; when false the firewall observes but never aborts.
// The Orchestrator always installs it with readOnly=true. observer may be
// nil. c supplies the timestamp
// stamped on every blocked request; it is never read directly from the
// system clock outside the clock package.
func Install(ctx context.Context, page *rod.Page, readOnly bool, observer Observer, c clock.Clock) (*Firewall, error) {
	f := &Firewall{observer: observer}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		method := strings.ToUpper(string(h.Request.Method()))
		url := h.Request.URL().String()

		if readOnly && mutatingMethods[method] {
			f.mu.Lock()
			f.blocked = append(f.blocked, BlockedRequest{
				Method:    method,
				URL:       redact.URL(url),
				Reason:    writeBlockedReason,
				Timestamp: c.ISO8601(c.Now()),
			})
			f.mu.Unlock()
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			f.notify(method, url, 0)
			return
		}

		status := 0
		if err := h.LoadResponse(h.Client, true); err != nil {
			h.Response.Fail(proto.NetworkErrorReasonFailed)
		} else {
			status = h.Response.Payload().ResponseCode
		}
		f.notify(method, url, status)
	})

	go router.Run()
	f.stop = func() {
		_ = router.Stop()
	}

	_ = ctx // ctx lifetime is bounded by the caller cancelling page's context; router.Stop() is explicit
	return f, nil
}

func (f *Firewall) notify(method, url string, status int) {
	f.mu.Lock()
	obs := f.observer
	f.mu.Unlock()
	if obs != nil {
		obs(method, url, status)
	}
}

// SetObserver replaces the observer callback, letting the Planner rebind it
// to each attempt's Evidence Bundle in turn.
func (f *Firewall) SetObserver(observer Observer) {
	f.mu.Lock()
	f.observer = observer
	f.mu.Unlock()
}

// Blocked returns every request aborted so far.
func (f *Firewall) Blocked() []BlockedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BlockedRequest(nil), f.blocked...)
}

// Close stops intercepting. Safe to call once; calling it twice is a
// caller bug but will not panic (rod's router.Stop is itself idempotent-safe
// against a closed connection since it only unsubscribes the CDP handler).
func (f *Firewall) Close() error {
	if f.stop == nil {
		return nil
	}
	f.stop()
	return nil
}

// Summary is the count-and-list form written to evidence.
type Summary struct {
	BlockedCount int              `json:"blocked_count"`
	Blocked      []BlockedRequest `json:"blocked,omitempty"`
}

// GetSummary reports the firewall's accumulated state.
func (f *Firewall) GetSummary() Summary {
	blocked := f.Blocked()
	return Summary{BlockedCount: len(blocked), Blocked: blocked}
}
