// Package logging wires a process-wide zap.Logger the same way the teacher
// does at its CLI edge (cmd/nerd/main.go builds a *zap.Logger from
// zap.NewProductionConfig, raised to DebugLevel under --verbose). VERAX
// replaces the teacher's separate category-to-file logger (internal/logging
// in codeNERD, built to correlate lines with Mangle predicates) with zap's
// own Named() scoping, since VERAX has no Mangle correlation need — see
// DESIGN.md.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. debug raises the level and switches
// to a human-readable console encoding; otherwise JSON encoding is used,
// matching the teacher's production/verbose split.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// Component returns a child logger scoped to name, so every package
// (orchestrator, planner, discovery, writer, ...) logs under its own name.
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

// Noop returns a logger that discards everything, used by components and
// tests that don't care about log output.
func Noop() *zap.Logger {
	return zap.NewNop()
}
