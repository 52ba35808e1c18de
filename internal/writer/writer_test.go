package writer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verax/internal/clock"
	"verax/internal/ledger"
	"verax/internal/model"
)

func baseInput(t *testing.T, findings []model.Finding) Input {
	t.Helper()
	return Input{
		OutDir:       t.TempDir(),
		URL:          "https://example.test",
		SrcDir:       "./src",
		VeraxVersion: "0.1.0",
		DetectedAt:   "2026-01-01T00:00:00Z",
		Findings:     findings,
		Stats:        model.RunStats{TotalExpectations: 1, Attempted: 1},
		Ledger:       ledger.New(clock.NewFixed(time.Unix(0, 0))),
	}
}

func TestWriteUsageErrorSkipsArtifacts(t *testing.T) {
	in := baseInput(t, nil)
	in.UsageError = true
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitUsageError, out.Code)
	assert.Empty(t, out.WrittenFiles)

	entries, _ := os.ReadDir(in.OutDir)
	assert.Empty(t, entries)
}

func TestWriteSuccessWithNoFindings(t *testing.T) {
	in := baseInput(t, nil)
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, out.Code)
	assert.Equal(t, model.RunSuccess, out.Status)

	raw, err := os.ReadFile(filepath.Join(in.OutDir, "REPORT.json"))
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Empty(t, report.Findings)
	assert.NotContains(t, string(raw), "diagnostics")
	assert.NotContains(t, string(raw), "internalErrors")
}

func TestWriteDowngradesUnbackedConfirmedFinding(t *testing.T) {
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusConfirmed, Evidence: model.Evidence{}},
	}
	in := baseInput(t, findings)
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitFindings, out.Code)

	raw, err := os.ReadFile(filepath.Join(in.OutDir, "REPORT.json"))
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(raw, &report))
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "SUSPECTED", report.Findings[0].Status)
}

func TestWriteKeepsConfirmedFindingWithRealEvidence(t *testing.T) {
	in := baseInput(t, nil)
	evDir := filepath.Join(in.OutDir, "EVIDENCE")
	require.NoError(t, os.MkdirAll(evDir, 0o755))
	evFile := filepath.Join(evDir, "dom_digest.json")
	require.NoError(t, os.WriteFile(evFile, []byte("{}"), 0o644))

	in.Findings = []model.Finding{
		{
			ID:     "f1",
			Status: model.StatusConfirmed,
			Evidence: model.Evidence{
				EvidenceFiles: []string{evFile},
				Categories:    []model.EvidenceCategory{model.CategoryNavigation},
			},
		},
	}
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitFindings, out.Code)
	assert.Equal(t, model.RunFindings, out.Status)
}

func TestWriteIncompleteTakesPrecedenceOverFindings(t *testing.T) {
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusInformational},
	}
	in := baseInput(t, findings)
	in.Ledger.Append(ledger.Entry{
		Code:     "runtime_not_ready",
		Category: ledger.CategoryObserve,
		Severity: ledger.SeverityBlocking,
		Phase:    ledger.PhaseObserve,
	})
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitIncomplete, out.Code)
	assert.Equal(t, model.RunIncomplete, out.Status)
}

func TestWriteInvariantViolationTakesPrecedenceOverIncomplete(t *testing.T) {
	in := baseInput(t, nil)
	in.Ledger.Append(ledger.Entry{
		Code:     "internal_panic",
		Category: ledger.CategoryInternal,
		Severity: ledger.SeverityBlocking,
		Phase:    ledger.PhaseObserve,
	})
	out, err := Write(in)
	require.NoError(t, err)
	assert.Equal(t, ExitInvariantViolation, out.Code)
}

func TestWriteDebugWritesDebugJSON(t *testing.T) {
	in := baseInput(t, nil)
	in.Debug = true
	in.DebugPayload = map[string]string{"k": "v"}
	out, err := Write(in)
	require.NoError(t, err)
	assert.Contains(t, out.WrittenFiles, filepath.Join(in.OutDir, "EVIDENCE", "logs", "debug.json"))
}

func TestWriteOmitsDebugJSONWhenNotDebug(t *testing.T) {
	in := baseInput(t, nil)
	_, err := Write(in)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(in.OutDir, "EVIDENCE", "logs", "debug.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteArtifactsAreDeterministicAcrossCalls(t *testing.T) {
	findings := []model.Finding{
		{ID: "f1", Status: model.StatusInformational, Type: "silent_failure"},
	}

	in1 := baseInput(t, findings)
	_, err := Write(in1)
	require.NoError(t, err)
	raw1, err := os.ReadFile(filepath.Join(in1.OutDir, "REPORT.json"))
	require.NoError(t, err)

	in2 := baseInput(t, findings)
	_, err = Write(in2)
	require.NoError(t, err)
	raw2, err := os.ReadFile(filepath.Join(in2.OutDir, "REPORT.json"))
	require.NoError(t, err)

	assert.Equal(t, string(raw1), string(raw2))
}
