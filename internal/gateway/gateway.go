// Copyright 2025 Matt Barlow
//
// Execution gateway to the macOS scripting runtime

// Package gateway provides the single execution path from tool handlers
// to the OS scripting runtime. Every tool formats a script and hands it
// to a Runner; nothing else in the bridge spawns processes.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mbarlow/macbridge/internal/transport"
)

// Language identifies the scripting runtime a script targets.
type Language string

const (
	// LangAppleScript runs via `osascript -e`.
	LangAppleScript Language = "applescript"
	// LangJXA runs via `osascript -l JavaScript -e`.
	LangJXA Language = "jxa"
	// LangShell runs via `/bin/sh -c`. Disabled unless explicitly enabled
	// in config; handlers enforce that before reaching the gateway.
	LangShell Language = "shell"
)

// DefaultTimeout is applied when a script does not specify one.
const DefaultTimeout = 30 * time.Second

// Script is a single parameterized script to execute.
type Script struct {
	Language Language
	Source   string
	Args     []string // extra argv after the script, shell only
	Timeout  time.Duration
}

// Result is the raw outcome of a script round-trip.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes scripts against the OS scripting runtime.
//
// Implementations must be safe for concurrent use: the HTTP transport
// dispatches tool calls from multiple goroutines.
type Runner interface {
	Run(ctx context.Context, script Script) (*Result, error)
}

// ErrTimeout is returned when a script exceeds its timeout.
var ErrTimeout = errors.New("script execution timed out")

// OsascriptRunner is the production Runner backed by the osascript
// subprocess (and /bin/sh for shell scripts).
type OsascriptRunner struct {
	logger  *zap.Logger
	metrics *transport.MetricsRegistry
}

// NewOsascriptRunner creates a runner that logs through the given logger.
func NewOsascriptRunner(logger *zap.Logger) *OsascriptRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OsascriptRunner{
		logger:  logger,
		metrics: transport.DefaultMetrics(),
	}
}

// commandFor maps a script to its argv.
func commandFor(script Script) (string, []string, error) {
	switch script.Language {
	case LangAppleScript:
		return "osascript", append([]string{"-e", script.Source}, script.Args...), nil
	case LangJXA:
		return "osascript", append([]string{"-l", "JavaScript", "-e", script.Source}, script.Args...), nil
	case LangShell:
		return "/bin/sh", append([]string{"-c", script.Source}, script.Args...), nil
	default:
		return "", nil, fmt.Errorf("unknown script language: %q", script.Language)
	}
}

// Run executes the script and returns its raw output. A nonzero exit
// code is reported in the Result, not as an error; errors are reserved
// for failures to execute at all (bad language, spawn failure, timeout).
func (r *OsascriptRunner) Run(ctx context.Context, script Script) (*Result, error) {
	if strings.TrimSpace(script.Source) == "" {
		return nil, fmt.Errorf("script source is empty")
	}

	timeout := script.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, args, err := commandFor(script)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:   strings.TrimRight(stdout.String(), "\n"),
		Stderr:   strings.TrimRight(stderr.String(), "\n"),
		Duration: elapsed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.metrics.RecordScriptExecution(string(script.Language), "timeout")
		r.logger.Warn("script timed out",
			zap.String("language", string(script.Language)),
			zap.Duration("timeout", timeout))
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			r.metrics.RecordScriptExecution(string(script.Language), "error")
			return nil, fmt.Errorf("failed to execute %s: %w", name, runErr)
		}
	}

	status := "ok"
	if result.ExitCode != 0 {
		status = "nonzero_exit"
	}
	r.metrics.RecordScriptExecution(string(script.Language), status)

	r.logger.Debug("script executed",
		zap.String("language", string(script.Language)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", elapsed))

	return result, nil
}

// Ensure OsascriptRunner implements Runner
var _ Runner = (*OsascriptRunner)(nil)
