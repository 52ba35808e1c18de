// Package ledger implements the Failure Ledger and Evidence-Law Enforcer
// (C15, spec.md §4.14): an append-only, monotonically-sequenced log of
// infra/contract-level events, and the sole point (O2 decision, see
// DESIGN.md) that downgrades a CONFIRMED finding to SUSPECTED when its
// evidence is missing or unverifiable. Grounded on the teacher's
// AuditEvent/AuditLogger (internal/logging/audit.go) for the shape of a
// structured, append-only event record with a correlation ID and a
// category/severity pair — the Mangle-predicate generation that event type
// exists for is dropped (VERAX has no Mangle kernel to feed).
package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"verax/internal/clock"
	"verax/internal/model"
)

// Category is the closed set of ledger entry categories (spec.md §3).
type Category string

const (
	CategoryEvidence    Category = "EVIDENCE"
	CategoryDeterminism Category = "DETERMINISM"
	CategoryObserve     Category = "OBSERVE"
	CategoryDetect      Category = "DETECT"
	CategoryVerify      Category = "VERIFY"
	CategoryReport      Category = "REPORT"
	CategoryContract    Category = "CONTRACT"
	CategoryPolicy      Category = "POLICY"
	CategoryIO          Category = "IO"
	CategoryInternal    Category = "INTERNAL"
)

// Severity is the closed set of ledger entry severities.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityDegraded Severity = "DEGRADED"
	SeverityWarning  Severity = "WARNING"
)

// Phase is the closed set of run phases a ledger entry can be attributed to.
type Phase string

const (
	PhaseLearn   Phase = "LEARN"
	PhaseObserve Phase = "OBSERVE"
	PhaseDetect  Phase = "DETECT"
	PhaseWrite   Phase = "WRITE"
	PhaseVerify  Phase = "VERIFY"
	PhaseVerdict Phase = "VERDICT"
	PhaseReport  Phase = "REPORT"
)

// Entry is one append-only ledger record (spec.md §3 Failure Ledger Entry).
type Entry struct {
	Sequence     int                    `json:"sequence"`
	RelativeMS   int64                  `json:"relative_time_ms"`
	Code         string                 `json:"code"`
	Category     Category               `json:"category"`
	Severity     Severity               `json:"severity"`
	Phase        Phase                  `json:"phase"`
	IsRecoverable bool                  `json:"is_recoverable"`
	Message      string                 `json:"message"`
	Component    string                 `json:"component"`
	Context      map[string]interface{} `json:"context,omitempty"`
	Impact       string                 `json:"impact,omitempty"`
}

// Ledger is the append-only log for one run.
type Ledger struct {
	mu        sync.Mutex
	clock     clock.Clock
	runStart  int64
	runID     string
	startTime string
	entries   []Entry
	seq       int
}

// New starts a fresh ledger for one run.
func New(c clock.Clock) *Ledger {
	return &Ledger{
		clock:     c,
		runStart:  c.NowMS(),
		runID:     uuid.NewString(),
		startTime: c.ISO8601(c.Now()),
	}
}

// Append adds one entry, stamping it with the next monotonic sequence
// number and the elapsed time since the run started.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Sequence = l.seq
	e.RelativeMS = l.clock.NowMS() - l.runStart
	l.entries = append(l.entries, e)
}

// Entries returns a copy of every entry appended so far.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// HasSeverity reports whether any entry carries severity sev.
func (l *Ledger) HasSeverity(sev Severity) bool {
	for _, e := range l.Entries() {
		if e.Severity == sev {
			return true
		}
	}
	return false
}

// HasCategory reports whether any entry carries category cat.
func (l *Ledger) HasCategory(cat Category) bool {
	for _, e := range l.Entries() {
		if e.Category == cat {
			return true
		}
	}
	return false
}

// Summary is the failure.ledger.json summary block.
type Summary struct {
	Total           int              `json:"total"`
	BySeverity      map[string]int   `json:"bySeverity"`
	ByCategory      map[string]int   `json:"byCategory"`
	ByPhase         map[string]int   `json:"byPhase"`
	HighestSeverity string           `json:"highestSeverity,omitempty"`
}

// Report is the full failure.ledger.json payload.
type Report struct {
	RunID     string  `json:"runId"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Duration  int64   `json:"duration"`
	Summary   Summary `json:"summary"`
	Failures  []Entry `json:"failures"`
}

var severityRank = map[Severity]int{SeverityWarning: 1, SeverityDegraded: 2, SeverityBlocking: 3}

// BuildReport finalizes the ledger into its serializable report, stamping
// EndTime/Duration from the ledger's own clock at call time.
func (l *Ledger) BuildReport() Report {
	entries := l.Entries()

	bySeverity := map[string]int{}
	byCategory := map[string]int{}
	byPhase := map[string]int{}
	highest := ""
	highestRank := 0

	for _, e := range entries {
		bySeverity[string(e.Severity)]++
		byCategory[string(e.Category)]++
		byPhase[string(e.Phase)]++
		if r := severityRank[e.Severity]; r > highestRank {
			highestRank = r
			highest = string(e.Severity)
		}
	}

	duration := l.clock.NowMS() - l.runStart

	return Report{
		RunID:     l.runID,
		StartTime: l.startTime,
		EndTime:   l.clock.ISO8601(l.clock.Now()),
		Duration:  duration,
		Summary: Summary{
			Total:           len(entries),
			BySeverity:      bySeverity,
			ByCategory:      byCategory,
			ByPhase:         byPhase,
			HighestSeverity: highest,
		},
		Failures: entries,
	}
}

// Enforce is the Evidence Law's pure, sole enforcement point (O2): any
// finding with status=CONFIRMED whose evidence_files is empty, or whose
// evidence_files reference a path that does not exist under evidenceDir,
// is downgraded to SUSPECTED. Nothing upstream of Enforce (internal/detect
// included) may perform this downgrade — see SPEC_FULL.md's O2 entry.
func Enforce(findings []model.Finding, evidenceDir string) []model.Finding {
	out := make([]model.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		if f.Status != model.StatusConfirmed {
			continue
		}
		if len(f.Evidence.EvidenceFiles) == 0 {
			out[i] = downgrade(f, "Evidence Law enforced: no evidence files referenced")
			continue
		}
		if missing := firstMissingFile(f.Evidence.EvidenceFiles, evidenceDir); missing != "" {
			out[i] = downgrade(f, "Evidence Law enforced: referenced file not found under evidence/: "+missing)
		}
	}
	return out
}

// firstMissingFile reports the first evidence path that does not exist as
// a regular file. Paths recorded by evidence.Bundle.Finalize are already
// rooted at evidenceDir, so they are checked as given; evidenceDir is only
// consulted to reject any path that has escaped it (spec.md §4.14: "any
// referenced evidence file that does not exist under the run's evidence/
// subtree").
func firstMissingFile(files []string, evidenceDir string) string {
	for _, f := range files {
		if evidenceDir != "" && !strings.HasPrefix(filepath.Clean(f), filepath.Clean(evidenceDir)) {
			return f
		}
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			return f
		}
	}
	return ""
}

func downgrade(f model.Finding, reason string) model.Finding {
	f.Status = model.StatusSuspected
	f.Policy.Downgraded = true
	f.Policy.Reason = reason
	return f
}
