// Package browserready implements Browser Readiness (spec.md §4.2): detect
// or install the headless browser binary, and never let the Orchestrator
// launch a browser unless this check has passed. Grounded on the teacher's
// SessionManager.Start, which already distinguishes "reuse existing
// connection" from "launch a new one" (internal/browser/session_manager.go);
// VERAX splits that distinction out into its own pre-flight step so the
// Orchestrator can report INCOMPLETE/runtime_not_ready without ever
// attempting a launch (spec.md §4.12 step 2).
package browserready

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

// Reason is the closed set of non-ready reasons spec.md §4.2 defines.
type Reason string

const (
	ReasonNotInstalled      Reason = "not_installed"
	ReasonImportFailed      Reason = "import_failed"
	ReasonExecutableNotFound Reason = "executable_not_found"
	ReasonCheckFailed       Reason = "check_failed"
)

// Status is the result of a readiness check.
type Status struct {
	Ready      bool
	Reason     Reason
	BinaryPath string
}

// checkTimeout bounds the readiness check so it never blocks the run
// indefinitely, per spec.md §4.2 ("completes within a bounded time").
const checkTimeout = 5 * time.Second

// Check reports whether a usable browser binary is available, without any
// side effects.
func Check(ctx context.Context) Status {
	done := make(chan Status, 1)
	go func() {
		path, ok := launcher.LookPath()
		if !ok {
			done <- Status{Ready: false, Reason: ReasonExecutableNotFound}
			return
		}
		done <- Status{Ready: true, BinaryPath: path}
	}()

	select {
	case s := <-done:
		return s
	case <-time.After(checkTimeout):
		return Status{Ready: false, Reason: ReasonCheckFailed}
	case <-ctx.Done():
		return Status{Ready: false, Reason: ReasonCheckFailed}
	}
}

// EnsureReadyOptions configures EnsureReady.
type EnsureReadyOptions struct {
	Bootstrap bool
}

// ErrBootstrapFailed is returned when bootstrap is false (or the installer
// itself fails) and no browser binary was found.
var ErrBootstrapFailed = fmt.Errorf("browser_bootstrap_failed")

// EnsureReady checks readiness and, if bootstrap is requested and the
// binary is missing, invokes a single installer. It never attempts more
// than one install, and never launches a browser itself — that remains
// the Session's job (C4).
func EnsureReady(ctx context.Context, opts EnsureReadyOptions) (Status, error) {
	status := Check(ctx)
	if status.Ready {
		return status, nil
	}

	if !opts.Bootstrap {
		return status, ErrBootstrapFailed
	}

	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return Status{Ready: false, Reason: ReasonNotInstalled}, fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	return Status{Ready: true, BinaryPath: path}, nil
}
