// Package writer implements the Deterministic Artifact Writer and exit-code
// contract (C16, spec.md §4.15): the flat `.verax/` layout, atomic
// canonical-JSON writes, and the closed exit-code decision function.
// Grounded on C1's atomic-write primitive (internal/atomicio) plus the
// teacher's persistSessions `os.MkdirAll`+write-whole-file pattern
// (internal/browser/session_manager.go), extended to temp-then-rename with
// sorted keys per spec.md §4.15/§6.
package writer

import (
	"fmt"
	"path/filepath"

	"verax/internal/atomicio"
	"verax/internal/ledger"
	"verax/internal/model"
)

// ExitCode is the closed set of process exit codes (spec.md §6, O1).
type ExitCode int

const (
	ExitSuccess            ExitCode = 0
	ExitFindings           ExitCode = 20
	ExitIncomplete         ExitCode = 30
	ExitInvariantViolation ExitCode = 50
	ExitUsageError         ExitCode = 64
)

// reportFinding is REPORT.json's per-finding shape; a deliberate subset/
// rename of model.Finding's fields so REPORT.json can never accidentally
// grow a `diagnostics`/`enforcement`/`internalErrors`/`debug` key (P9) even
// if model.Finding gains one in the future.
type reportFinding struct {
	ID                string         `json:"id"`
	Type              string         `json:"type"`
	Status            string         `json:"status"`
	Severity          string         `json:"severity"`
	Confidence        float64        `json:"confidence"`
	ConfidenceLevel   string         `json:"confidenceLevel"`
	ConfidenceReasons []string       `json:"confidenceReasons"`
	Evidence          reportEvidence `json:"evidence"`
	Policy            reportPolicy   `json:"policy"`
}

type reportEvidence struct {
	EvidenceFiles    []string `json:"evidence_files"`
	Categories       []string `json:"categories"`
	AmbiguityReasons []string `json:"ambiguity_reasons,omitempty"`
}

type reportPolicy struct {
	Suppressed bool        `json:"suppressed"`
	Downgraded bool        `json:"downgraded"`
	Rule       interface{} `json:"rule,omitempty"`
}

// Report is REPORT.json's top-level schema (spec.md §6 excerpt).
type Report struct {
	SchemaVersion int                        `json:"schemaVersion"`
	URL           string                     `json:"url"`
	DetectedAt    string                     `json:"detectedAt"`
	Findings      []reportFinding            `json:"findings"`
	CoverageGaps  []model.OutOfScopeFeedback `json:"coverageGaps"`
}

// Meta is META.json's schema (spec.md §6).
type Meta struct {
	Timestamp    string          `json:"timestamp"`
	URL          string          `json:"url"`
	Src          string          `json:"src"`
	Status       model.RunStatus `json:"status"`
	VeraxVersion string          `json:"veraxVersion"`
	Stats        model.RunStats  `json:"stats"`
}

// Input is everything the Writer needs to produce one run's artifacts.
type Input struct {
	OutDir       string
	URL          string
	SrcDir       string
	VeraxVersion string
	DetectedAt   string // ISO-8601, from the run's clock
	Findings     []model.Finding
	OutOfScope   []model.OutOfScopeFeedback
	Stats        model.RunStats
	Ledger       *ledger.Ledger
	Debug        bool
	DebugPayload interface{}
	UsageError   bool // set by the CLI edge before any artifact is written
}

// Outcome is what Write returns: the resolved exit code and the paths it
// wrote, for the CLI to report.
type Outcome struct {
	Code         ExitCode
	Status       model.RunStatus
	WrittenFiles []string
}

// Write applies the Evidence Law (via ledger.Enforce), then writes every
// artifact atomically under in.OutDir, and returns the resolved exit code.
// When in.UsageError is set, Write returns exit 64 without writing any
// artifact — spec.md §7: "Usage ... Never creates artifacts; exit 64".
func Write(in Input) (Outcome, error) {
	if in.UsageError {
		return Outcome{Code: ExitUsageError}, nil
	}

	evidenceDir := filepath.Join(in.OutDir, "EVIDENCE")
	findings := ledger.Enforce(in.Findings, evidenceDir)

	var written []string

	reportPath := filepath.Join(in.OutDir, "REPORT.json")
	report := buildReport(in, findings)
	if err := atomicio.WriteJSONAtomic(reportPath, report); err != nil {
		return Outcome{}, fmt.Errorf("writer: write REPORT.json: %w", err)
	}
	written = append(written, reportPath)

	status := resolveStatus(in.Ledger, findings)

	metaPath := filepath.Join(in.OutDir, "META.json")
	meta := Meta{
		Timestamp:    in.DetectedAt,
		URL:          in.URL,
		Src:          in.SrcDir,
		Status:       status,
		VeraxVersion: in.VeraxVersion,
		Stats:        in.Stats,
	}
	if err := atomicio.WriteJSONAtomic(metaPath, meta); err != nil {
		return Outcome{}, fmt.Errorf("writer: write META.json: %w", err)
	}
	written = append(written, metaPath)

	ledgerPath := filepath.Join(in.OutDir, "failure.ledger.json")
	ledgerReport := in.Ledger.BuildReport()
	if err := atomicio.WriteJSONAtomic(ledgerPath, ledgerReport); err != nil {
		return Outcome{}, fmt.Errorf("writer: write failure.ledger.json: %w", err)
	}
	written = append(written, ledgerPath)

	summaryPath := filepath.Join(in.OutDir, "SUMMARY.md")
	if err := atomicio.WriteFileAtomic(summaryPath, []byte(buildSummary(in, findings, status)), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writer: write SUMMARY.md: %w", err)
	}
	written = append(written, summaryPath)

	if in.Debug {
		debugPath := filepath.Join(evidenceDir, "logs", "debug.json")
		if err := atomicio.WriteJSONAtomic(debugPath, in.DebugPayload); err != nil {
			return Outcome{}, fmt.Errorf("writer: write debug.json: %w", err)
		}
		written = append(written, debugPath)
	}

	code := exitCodeFor(in.Ledger, findings)
	return Outcome{Code: code, Status: status, WrittenFiles: written}, nil
}

func buildReport(in Input, findings []model.Finding) Report {
	out := make([]reportFinding, 0, len(findings))
	for _, f := range findings {
		categories := make([]string, 0, len(f.Evidence.Categories))
		for _, c := range f.Evidence.Categories {
			categories = append(categories, string(c))
		}
		out = append(out, reportFinding{
			ID:                f.ID,
			Type:              f.Type,
			Status:            string(f.Status),
			Severity:          string(f.Severity),
			Confidence:        f.Confidence,
			ConfidenceLevel:   string(f.ConfidenceLevel),
			ConfidenceReasons: append([]string(nil), f.ConfidenceReasons...),
			Evidence: reportEvidence{
				EvidenceFiles:    append([]string(nil), f.Evidence.EvidenceFiles...),
				Categories:       categories,
				AmbiguityReasons: append([]string(nil), f.Evidence.AmbiguityReasons...),
			},
			Policy: reportPolicy{
				Suppressed: f.Policy.Suppressed,
				Downgraded: f.Policy.Downgraded,
				Rule:       f.Policy.Rule,
			},
		})
	}
	coverageGaps := in.OutOfScope
	if coverageGaps == nil {
		coverageGaps = []model.OutOfScopeFeedback{}
	}
	return Report{
		SchemaVersion: 1,
		URL:           in.URL,
		DetectedAt:    in.DetectedAt,
		Findings:      out,
		CoverageGaps:  coverageGaps,
	}
}

func resolveStatus(l *ledger.Ledger, findings []model.Finding) model.RunStatus {
	if l != nil && (l.HasSeverity(ledger.SeverityBlocking) || l.HasSeverity(ledger.SeverityDegraded)) {
		return model.RunIncomplete
	}
	if len(findings) > 0 {
		return model.RunFindings
	}
	return model.RunSuccess
}

// exitCodeFor applies the closed-set decision function in highest-precedence
// order (spec.md §4.15/§6). UsageError is handled earlier in Write and never
// reaches here.
func exitCodeFor(l *ledger.Ledger, findings []model.Finding) ExitCode {
	if l != nil && (l.HasCategory(ledger.CategoryContract) || l.HasCategory(ledger.CategoryInternal)) {
		return ExitInvariantViolation
	}
	if evidenceLawViolated(findings) {
		return ExitInvariantViolation
	}
	if l != nil && (l.HasSeverity(ledger.SeverityBlocking) || l.HasSeverity(ledger.SeverityDegraded)) {
		return ExitIncomplete
	}
	if len(findings) > 0 {
		return ExitFindings
	}
	return ExitSuccess
}

// evidenceLawViolated reports whether, after ledger.Enforce has already run,
// any CONFIRMED finding still lacks the evidence P2/P4 require. Enforce
// should make this impossible by construction; this is the writer's own
// belt-and-suspenders check before committing to SUCCESS/FINDINGS.
func evidenceLawViolated(findings []model.Finding) bool {
	for _, f := range findings {
		if f.Status != model.StatusConfirmed {
			continue
		}
		if len(f.Evidence.EvidenceFiles) == 0 || len(f.Evidence.Categories) == 0 {
			return true
		}
	}
	return false
}

func buildSummary(in Input, findings []model.Finding, status model.RunStatus) string {
	s := fmt.Sprintf("# VERAX run summary\n\nURL: %s\nStatus: %s\nTotal expectations: %d\nAttempted: %d\nObserved: %d\nFindings: %d\n",
		in.URL, status, in.Stats.TotalExpectations, in.Stats.Attempted, in.Stats.Observed, len(findings))
	if len(findings) > 0 {
		s += "\n## Findings\n\n"
		for _, f := range findings {
			s += fmt.Sprintf("- [%s] %s (%s, confidence %.2f)\n", f.Status, f.Type, f.Severity, f.Confidence)
		}
	}
	return s
}
