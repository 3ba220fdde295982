// Copyright 2025 Matt Barlow
//
// run_script tool handler

package server

import (
	"encoding/json"
	"time"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// maxScriptTimeout caps caller-supplied timeouts.
const maxScriptTimeout = 120 * time.Second

// handleRunScript handles the run_script tool
func (s *MCPServer) handleRunScript(call *ToolCall) (*ToolResult, error) {
	const op = "run_script"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Language string `json:"language"`
		Source   string `json:"source"`
		Timeout  int    `json:"timeout"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Source == "" {
		return missingParam(op, "source"), nil
	}

	var lang gateway.Language
	switch params.Language {
	case "applescript", "":
		lang = gateway.LangAppleScript
	case "jxa":
		lang = gateway.LangJXA
	case "shell":
		if !s.cfg.ShellEnabled {
			return failureResult(op, ErrCodeShellDisabled,
				"shell execution is disabled; set BRIDGE_SHELL_ENABLED=true to allow it"), nil
		}
		lang = gateway.LangShell
	default:
		return failureResultf(op, ErrCodeInvalidArgs, "unknown language %q", params.Language), nil
	}

	timeout := gateway.DefaultTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxScriptTimeout {
			timeout = maxScriptTimeout
		}
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: lang,
		Source:   params.Source,
		Timeout:  timeout,
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}

	data := map[string]any{
		"stdout":    res.Stdout,
		"exit_code": res.ExitCode,
	}
	if res.Stderr != "" {
		data["stderr"] = res.Stderr
	}
	if res.ExitCode != 0 {
		r := scriptFailure(op, res)
		return r, nil
	}
	return successResult(op, res.Duration, "script completed", data), nil
}
