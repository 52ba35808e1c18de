package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verax/internal/clock"
	"verax/internal/model"
)

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	l := New(clock.NewFixed(time.Unix(0, 0)))
	l.Append(Entry{Code: "a", Category: CategoryObserve, Severity: SeverityWarning, Phase: PhaseObserve})
	l.Append(Entry{Code: "b", Category: CategoryObserve, Severity: SeverityWarning, Phase: PhaseObserve})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Sequence)
	assert.Equal(t, 2, entries[1].Sequence)
}

func TestHasSeverityAndCategory(t *testing.T) {
	l := New(clock.NewFixed(time.Unix(0, 0)))
	l.Append(Entry{Code: "x", Category: CategoryContract, Severity: SeverityBlocking, Phase: PhaseVerify})

	assert.True(t, l.HasSeverity(SeverityBlocking))
	assert.False(t, l.HasSeverity(SeverityWarning))
	assert.True(t, l.HasCategory(CategoryContract))
	assert.False(t, l.HasCategory(CategoryIO))
}

func TestBuildReportSummarizesBySeverityCategoryPhase(t *testing.T) {
	l := New(clock.NewFixed(time.Unix(0, 0)))
	l.Append(Entry{Code: "a", Category: CategoryObserve, Severity: SeverityWarning, Phase: PhaseObserve})
	l.Append(Entry{Code: "b", Category: CategoryContract, Severity: SeverityBlocking, Phase: PhaseVerify})

	report := l.BuildReport()
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.BySeverity["WARNING"])
	assert.Equal(t, 1, report.Summary.BySeverity["BLOCKING"])
	assert.Equal(t, "BLOCKING", report.Summary.HighestSeverity)
	assert.NotEmpty(t, report.RunID)
}

func TestEnforceDowngradesConfirmedWithoutEvidenceFiles(t *testing.T) {
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusConfirmed, Evidence: model.Evidence{}},
	}
	out := Enforce(findings, t.TempDir())
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusSuspected, out[0].Status)
	assert.True(t, out[0].Policy.Downgraded)
}

func TestEnforceDowngradesConfirmedWithMissingEvidenceFile(t *testing.T) {
	dir := t.TempDir()
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusConfirmed, Evidence: model.Evidence{EvidenceFiles: []string{filepath.Join(dir, "missing.json")}}},
	}
	out := Enforce(findings, dir)
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusSuspected, out[0].Status)
}

func TestEnforceKeepsConfirmedWhenEvidenceFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dom_digest.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	findings := []model.Finding{
		{ID: "f1", Status: model.StatusConfirmed, Evidence: model.Evidence{EvidenceFiles: []string{path}}},
	}
	out := Enforce(findings, dir)
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusConfirmed, out[0].Status)
	assert.False(t, out[0].Policy.Downgraded)
}

func TestEnforceLeavesNonConfirmedFindingsUntouched(t *testing.T) {
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusSuspected},
		{ID: "f2", Status: model.StatusInformational},
	}
	out := Enforce(findings, t.TempDir())
	require.Len(t, out, 2)
	assert.Equal(t, model.StatusSuspected, out[0].Status)
	assert.Equal(t, model.StatusInformational, out[1].Status)
}
