// Package staticdiscover extracts static Expectations (spec.md §4.12 step
// 5: "static expectations ∥ runtime targets") by scanning the app's source
// tree for interactive markup — anchors, buttons, and forms — without ever
// running a browser. Grounded on the file-walking and regex-extraction
// shape of internal/testgen/heal.go's FindTestFiles and
// internal/testgen/classify.go's selectorExtractPattern (both
// _examples/brennhill-gasoline-mcp-ai-devtools): walk the tree skipping
// build/vendor directories, apply a small set of line-anchored regexes per
// source kind, and turn each match into a stable-ID'd Expectation.
package staticdiscover

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"verax/internal/idstable"
	"verax/internal/model"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"vendor":       true,
	"coverage":     true,
}

var sourceExts = map[string]bool{
	".html": true,
	".htm":  true,
	".jsx":  true,
	".tsx":  true,
	".vue":  true,
	".svelte": true,
}

var (
	anchorPattern = regexp.MustCompile(`<a\b[^>]*\bhref\s*=\s*["']([^"']+)["'][^>]*>`)
	buttonPattern = regexp.MustCompile(`<button\b[^>]*>`)
	formPattern   = regexp.MustCompile(`<form\b[^>]*>`)
	idAttrPattern = regexp.MustCompile(`\bid\s*=\s*["']([^"']+)["']`)
)

// Discover walks srcDir and returns one Expectation per recognized
// interactive element, in a stable (file, line) order.
func Discover(srcDir string) ([]model.Expectation, error) {
	var out []model.Expectation

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		found, scanErr := scanFile(path)
		if scanErr != nil {
			return nil // unreadable source file is skipped, not fatal to the run
		}
		out = append(out, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source.File != out[j].Source.File {
			return out[i].Source.File < out[j].Source.File
		}
		return out[i].Source.Line < out[j].Source.Line
	})
	return out, nil
}

func scanFile(path string) ([]model.Expectation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.Expectation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if m := anchorPattern.FindStringSubmatch(text); m != nil {
			out = append(out, expectationFor(model.KindNavigation, model.OutcomeNavigation, selectorFor(text, "a"), path, line))
		}
		if buttonPattern.MatchString(text) {
			out = append(out, expectationFor(model.KindButton, model.OutcomeUIChange, selectorFor(text, "button"), path, line))
		}
		if formPattern.MatchString(text) {
			out = append(out, expectationFor(model.KindForm, model.OutcomeNetwork, selectorFor(text, "form"), path, line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func selectorFor(line, tag string) string {
	if m := idAttrPattern.FindStringSubmatch(line); m != nil {
		return "#" + m[1]
	}
	return tag
}

func expectationFor(kind model.ExpectationKind, outcome model.ExpectedOutcome, selector, file string, line int) model.Expectation {
	return model.Expectation{
		ID:              idstable.ExpectationID(string(kind), selector, file, line),
		Kind:            kind,
		Selector:        selector,
		ExpectedOutcome: outcome,
		Source: model.Source{
			File:              file,
			Line:              line,
			DiscoveredAtPhase: model.PhaseStatic,
		},
	}
}
