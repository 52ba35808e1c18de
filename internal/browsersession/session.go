// Package browsersession implements the Browser Session (C4): scoped
// acquisition of a (browser, context, page) triple with guaranteed,
// idempotent, non-throwing teardown on every exit path. Heavily adapted
// from the teacher's internal/browser/session_manager.go (Start/Shutdown/
// CreateSession): the teacher tracks a long-lived map of many sessions
// persisted to disk across process restarts; VERAX owns exactly one page
// for exactly one run and never persists session metadata, so that
// machinery is dropped and the launch/connect/incognito/viewport logic is
// kept and simplified to a single Session value.
package browsersession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures the single browser session a run uses.
type Config struct {
	BinaryPath          string
	Headless            bool
	ViewportWidth       int
	ViewportHeight      int
	NavigationTimeout   time.Duration
	NetworkIdleTimeout  time.Duration
}

// DefaultConfig returns sensible defaults mirroring the teacher's
// browser.DefaultConfig.
func DefaultConfig() Config {
	return Config{
		Headless:           true,
		ViewportWidth:      1280,
		ViewportHeight:     900,
		NavigationTimeout:  30 * time.Second,
		NetworkIdleTimeout: 10 * time.Second,
	}
}

// Session owns a browser, an incognito context, and the single page the
// run drives. The browser context is exclusively owned by the Orchestrator
// for the run's duration (spec.md §5).
type Session struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page
	closeOnce sync.Once
}

// Open launches (or connects to) the browser and opens a blank incognito
// page, ready for Navigate. Callers must call Close on every exit path;
// Close is idempotent and never returns an error (spec.md §4.3).
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.BinaryPath == "" {
		return nil, errors.New("browsersession: BinaryPath required (call browserready.EnsureReady first)")
	}

	l := launcher.New().Bin(cfg.BinaryPath).Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportOr(cfg.ViewportWidth, 1280),
		Height:            viewportOr(cfg.ViewportHeight, 900),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		// Non-fatal: a viewport-set failure does not prevent observation.
		_ = err
	}

	return &Session{cfg: cfg, browser: browser, page: page}, nil
}

func viewportOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Page returns the single page this session owns. The Planner borrows it
// for the duration of an Attempt (spec.md §5 ownership tree) but never
// holds a long-lived reference beyond that.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Navigate navigates to url, waiting for domcontentloaded and then a
// bounded networkidle per spec.md §4.12 step 4.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait domcontentloaded for %s: %w", url, err)
	}

	idleTimeout := s.cfg.NetworkIdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Second
	}
	idleCtx := s.page.Context(ctx).Timeout(idleTimeout)
	if err := idleCtx.WaitIdle(idleTimeout); err != nil {
		// A networkidle timeout is not fatal to navigation succeeding; the
		// page has already reached domcontentloaded above, and discovery
		// operates on whatever DOM is present.
		return nil
	}
	return nil
}

// ResetToBase navigates back to the base URL, used before each runtime-nav
// attempt so every attempt starts from the same known page (spec.md §4.12
// step 6).
func (s *Session) ResetToBase(ctx context.Context, baseURL string) error {
	return s.Navigate(ctx, baseURL)
}

// Close tears down the page and browser. It is idempotent (a second call is
// a no-op) and never returns an error — failures are swallowed, matching
// spec.md §4.3's "teardown never raises" and "if a browser handle is
// already closed, cleanup swallows the error".
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
	})
}
