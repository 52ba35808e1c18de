// Package routesensor implements the Route Sensor (C6, spec.md §4.5): an
// in-page hook that records every client-side URL transition
// (history.pushState/replaceState, popstate, hashchange) as an ordered
// list the Planner reads and clears once per attempt. Grounded on the
// domwatch observer's RuntimeAddBinding + EachEvent(RuntimeBindingCalled)
// pattern (other_examples/a883819f_..._observer.go.go) for wiring a JS→Go
// binding, adapted from "mutation records" to "route transitions".
package routesensor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

//go:embed routesensor.js
var sensorJS string

const bindingName = "__verax_route_binding"

// Transition is one recorded URL change.
type Transition struct {
	Kind   string `json:"kind"`
	From   string `json:"from_url"`
	To     string `json:"to_url"`
	AtStep int    `json:"at_step"`
}

// Sensor owns the installed hook and the accumulated transitions for the
// page it is attached to.
type Sensor struct {
	mu          sync.Mutex
	transitions []Transition
	step        int
}

// Install attaches the route sensor to page. It is safe to call once per
// page per Session lifetime; the underlying JS hook is itself idempotent.
// The binding listener runs in a background goroutine for the lifetime of
// ctx, mirroring the teacher's listenBinding goroutine.
func Install(ctx context.Context, page *rod.Page) (*Sensor, error) {
	s := &Sensor{}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("routesensor: add binding: %w", err)
	}

	scoped := page.Context(ctx)
	wait := scoped.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var t Transition
		if err := json.Unmarshal([]byte(e.Payload), &t); err != nil {
			return
		}
		s.mu.Lock()
		s.step++
		t.AtStep = s.step
		s.transitions = append(s.transitions, t)
		s.mu.Unlock()
	})
	go wait()

	if _, err := scoped.Eval(sensorJS); err != nil {
		return nil, fmt.Errorf("routesensor: inject hook: %w", err)
	}
	if _, err := scoped.EvalOnNewDocument(sensorJS); err != nil {
		return nil, fmt.Errorf("routesensor: register hook for new documents: %w", err)
	}

	return s, nil
}

// ReadAndClear returns the transitions recorded since the last call (or
// since Install) and resets the accumulator, per the Planner's per-attempt
// read-and-clear contract (spec.md §4.5).
func (s *Sensor) ReadAndClear() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.transitions
	s.transitions = nil
	return out
}

// routeSignature is path+search+hash, the three components that define a
// "route" independent of origin (spec.md §4.5).
type routeSignature struct {
	Path   string
	Search string
	Hash   string
}

func signatureOf(rawURL string) (routeSignature, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return routeSignature{}, false
	}
	return routeSignature{Path: u.Path, Search: u.RawQuery, Hash: u.Fragment}, true
}

// RouteSignatureChanged reports true iff any of path, search, or hash
// differs between before and after.
func RouteSignatureChanged(before, after string) bool {
	b, bOK := signatureOf(before)
	a, aOK := signatureOf(after)
	if !bOK || !aOK {
		return before != after
	}
	return b != a
}
