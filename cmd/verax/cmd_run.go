package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"verax/internal/clock"
	"verax/internal/config"
	"verax/internal/detect"
	"verax/internal/ledger"
	"verax/internal/orchestrator"
	"verax/internal/writer"
)

var (
	flagURL         string
	flagSrc         string
	flagOut         string
	flagAuthStorage string
	flagAuthCookie  string
	flagAuthHeaders []string
	flagAuthMode    string
	flagJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a headless browser against --url and report silent failures",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagURL, "url", "", "URL of the running target application (required)")
	runCmd.Flags().StringVar(&flagSrc, "src", "", "path to the target's source tree (required)")
	runCmd.Flags().StringVar(&flagOut, "out", ".verax", "output directory for run artifacts")
	runCmd.Flags().StringVar(&flagAuthStorage, "auth-storage", "", "path to a saved browser storage-state file")
	runCmd.Flags().StringVar(&flagAuthCookie, "auth-cookie", "", "a cookie, as JSON or a path to a JSON file")
	runCmd.Flags().StringArrayVar(&flagAuthHeaders, "auth-header", nil, `an extra request header, "Name: Value" (repeatable)`)
	runCmd.Flags().StringVar(&flagAuthMode, "auth-mode", "auto", "authentication verification posture: strict|auto|off")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "emit the RESULT/REASON/ACTION block as JSON")
}

// result is the RESULT/REASON/ACTION block's JSON shape (spec.md §6, I7).
type result struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
	Action string `json:"action"`
	Code   int    `json:"exitCode"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := buildRunConfig()

	if err := cfg.Validate(); err != nil {
		emitResult(result{
			Result: "USAGE_ERROR",
			Reason: err.Error(),
			Action: "fix the invocation and retry; no files were written",
			Code:   int(writer.ExitUsageError),
		})
		os.Exit(int(writer.ExitUsageError))
	}

	c := clock.New()
	if cfg.TestMode {
		c = clock.NewFixed(time.Unix(0, 0))
	}

	l := ledger.New(c)
	out := orchestrator.Run(context.Background(), cfg, logger, c)

	if out.Incomplete {
		l.Append(ledger.Entry{
			Code:      string(out.Reason),
			Category:  ledger.CategoryObserve,
			Severity:  ledger.SeverityBlocking,
			Phase:     ledger.PhaseObserve,
			Message:   out.Detail,
			Component: "orchestrator",
		})
	}

	plans := make([]detect.Plan, len(out.Plans))
	for i, p := range out.Plans {
		plans[i] = detect.Plan{Expectation: p.Expectation, NavIntent: p.NavIntent}
	}
	findings, outOfScope := detect.Detect(out.Attempts, plans)

	writeIn := writer.Input{
		OutDir:       cfg.OutDir,
		URL:          cfg.URL,
		SrcDir:       cfg.SrcDir,
		VeraxVersion: veraxVersion,
		DetectedAt:   c.ISO8601(c.Now()),
		Findings:     findings,
		OutOfScope:   outOfScope,
		Stats:        out.Stats,
		Ledger:       l,
		Debug:        cfg.Debug,
		DebugPayload: debugPayload(out),
	}

	writeOut, err := writer.Write(writeIn)
	if err != nil {
		emitResult(result{
			Result: "INVARIANT_VIOLATION",
			Reason: fmt.Sprintf("failed to write artifacts: %v", err),
			Action: "check --out's filesystem permissions and retry",
			Code:   int(writer.ExitInvariantViolation),
		})
		os.Exit(int(writer.ExitInvariantViolation))
	}

	emitResult(resultFor(writeOut, out))
	os.Exit(int(writeOut.Code))
	return nil
}

const veraxVersion = "0.1.0"

func buildRunConfig() config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.URL = flagURL
	cfg.SrcDir = flagSrc
	cfg.OutDir = flagOut
	cfg.Debug = debugFlag
	cfg.JSON = flagJSON
	cfg.AuthStorage = flagAuthStorage
	cfg.AuthCookie = flagAuthCookie
	cfg.AuthHeaders = flagAuthHeaders
	cfg.AuthMode = config.AuthMode(flagAuthMode)

	cfg.TestMode = envBool("VERAX_TEST_MODE")
	cfg.ForceTimeout = envBool("VERAX_TEST_FORCE_TIMEOUT")
	cfg.FastOutcome = envBool("VERAX_TEST_FAST_OUTCOME")
	cfg.SecurityStrict = envBool("VERAX_SECURITY_STRICT")
	cfg.DeterministicOutput = envBool("VERAX_DETERMINISTIC_OUTPUT")

	return cfg
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func resultFor(writeOut writer.Outcome, out orchestrator.Result) result {
	switch writeOut.Code {
	case writer.ExitSuccess:
		return result{Result: "SUCCESS", Reason: "every attempted element produced an observable effect",
			Action: "none", Code: int(writeOut.Code)}
	case writer.ExitFindings:
		return result{Result: "FINDINGS", Reason: "one or more elements produced no observable effect",
			Action: "review REPORT.json and SUMMARY.md under " + flagOut, Code: int(writeOut.Code)}
	case writer.ExitIncomplete:
		return result{Result: "INCOMPLETE", Reason: incompleteReason(out),
			Action: "check failure.ledger.json under " + flagOut + " and retry", Code: int(writeOut.Code)}
	case writer.ExitInvariantViolation:
		return result{Result: "INVARIANT_VIOLATION", Reason: "a contract or internal invariant was violated during the run",
			Action: "check failure.ledger.json under " + flagOut, Code: int(writeOut.Code)}
	default:
		return result{Result: "USAGE_ERROR", Reason: "invalid invocation", Action: "fix the invocation and retry",
			Code: int(writeOut.Code)}
	}
}

func incompleteReason(out orchestrator.Result) string {
	if out.Detail != "" {
		return string(out.Reason) + ": " + out.Detail
	}
	return string(out.Reason)
}

func emitResult(r result) {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
		return
	}
	fmt.Printf("RESULT: %s\nREASON: %s\nACTION: %s\n", r.Result, r.Reason, r.Action)
}

func debugPayload(out orchestrator.Result) map[string]interface{} {
	return map[string]interface{}{
		"baseURL":      out.BaseURL,
		"planIDs":      out.PlanIDs,
		"runDigest":    out.RunDigest,
		"blockedCount": out.BlockedCount,
		"blocked":      out.Blocked,
	}
}
