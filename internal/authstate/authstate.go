// Package authstate applies operator-supplied credential material — a
// storage-state file, a single cookie, or extra request headers — to a
// page before the Orchestrator navigates it. Grounded on the teacher's
// session-forking code (internal/browser/session_manager.go's
// snapshotStorage/restoreStorage and its proto.NetworkCookieParam
// construction), generalized from "copy state between two sessions of the
// same process" to "load state the operator captured out-of-band".
package authstate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// StorageState is the shape written by browser automation tools' "save
// storage state" feature: cookies plus per-origin local/session storage.
type StorageState struct {
	Cookies []Cookie                    `json:"cookies"`
	Origins []StorageOrigin             `json:"origins,omitempty"`
	Storage map[string]map[string]string `json:"-"`
}

// Cookie mirrors proto.NetworkCookieParam's JSON-relevant fields.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// StorageOrigin is one origin's localStorage snapshot within a
// StorageState file.
type StorageOrigin struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"localStorage"`
}

// ApplyStorageFile reads path as a StorageState JSON document and applies
// its cookies and localStorage entries to page.
func ApplyStorageFile(page *rod.Page, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("authstate: read storage file: %w", err)
	}
	var state StorageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("authstate: parse storage file: %w", err)
	}

	if len(state.Cookies) > 0 {
		if err := page.SetCookies(toCookieParams(state.Cookies)); err != nil {
			return fmt.Errorf("authstate: set cookies: %w", err)
		}
	}

	for _, origin := range state.Origins {
		restoreLocalStorage(page, origin.LocalStorage)
	}
	return nil
}

// ApplyCookie parses value as either a single JSON cookie object or a path
// to a file containing one, and applies it to page.
func ApplyCookie(page *rod.Page, value string) error {
	raw := []byte(value)
	if data, err := os.ReadFile(value); err == nil {
		raw = data
	}
	var c Cookie
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("authstate: parse cookie: %w", err)
	}
	return page.SetCookies(toCookieParams([]Cookie{c}))
}

// ApplyHeaders installs extra headers on every subsequent request the page
// issues. headers are "Name: Value" strings, as passed on the command
// line; malformed entries are skipped rather than failing the run, since a
// header typo should not turn an otherwise-successful run into an infra
// failure.
func ApplyHeaders(page *rod.Page, headers []string) (func(), error) {
	pairs := make([]string, 0, len(headers)*2)
	for _, h := range headers {
		name, val, ok := splitHeader(h)
		if !ok {
			continue
		}
		pairs = append(pairs, name, val)
	}
	if len(pairs) == 0 {
		return func() {}, nil
	}
	return page.SetExtraHeaders(pairs...)
}

func splitHeader(h string) (name, value string, ok bool) {
	for i := 0; i < len(h); i++ {
		if h[i] == ':' {
			name = trimSpace(h[:i])
			value = trimSpace(h[i+1:])
			return name, value, name != ""
		}
	}
	return "", "", false
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func toCookieParams(cookies []Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return params
}

func restoreLocalStorage(page *rod.Page, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `(json) => {
			try {
				const entries = JSON.parse(json || "{}");
				Object.entries(entries).forEach(([k, v]) => localStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{string(raw)},
		ByValue:      true,
		AwaitPromise: true,
	})
}
