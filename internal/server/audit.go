// Copyright 2025 Matt Barlow
//
// Audit logging for tool invocations

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// redactedKeys are argument names whose values never reach the audit
// log verbatim.
var redactedKeys = map[string]bool{
	"body":     true,
	"text":     true,
	"message":  true,
	"source":   true,
	"password": true,
	"token":    true,
}

// AuditLogger writes one JSON line per tool invocation. A nil path
// disables auditing entirely.
type AuditLogger struct {
	log    *slog.Logger
	closer io.Closer
}

// NewAuditLogger opens the audit log at path, creating it if needed.
// An empty path returns a logger that discards everything.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		return &AuditLogger{log: slog.New(slog.NewJSONHandler(io.Discard, nil))}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &AuditLogger{
		log:    slog.New(slog.NewJSONHandler(f, nil)),
		closer: f,
	}, nil
}

// LogToolCall records one invocation with redacted arguments.
func (a *AuditLogger) LogToolCall(tool string, args json.RawMessage, status string, elapsed time.Duration) {
	a.log.Info("tool_call",
		slog.String("tool", tool),
		slog.String("status", status),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Any("arguments", redactArguments(args)),
	)
}

// Close flushes and closes the underlying file, if any.
func (a *AuditLogger) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// redactArguments parses the raw arguments and replaces sensitive
// values. Unparseable input is reduced to its byte length.
func redactArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{"_unparsed_bytes": len(raw)}
	}
	redactMapValues(args)
	return args
}

// redactMapValues walks the argument map, replacing the value of any
// key that matches a sensitive name. Key matching is case-insensitive
// and by substring, and the walk recurses into nested maps and arrays.
func redactMapValues(m map[string]any) {
	for key, value := range m {
		if sensitiveKey(key) {
			m[key] = "[redacted]"
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			redactMapValues(v)
		case []any:
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					redactMapValues(nested)
				}
			}
		}
	}
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if redactedKeys[lower] {
		return true
	}
	for k := range redactedKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
