// Copyright 2025 Matt Barlow
//
// MCP dispatch unit tests

package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mbarlow/macbridge/internal/config"
	"github.com/mbarlow/macbridge/internal/gateway"
	"github.com/mbarlow/macbridge/internal/transport"
)

// mockRunner is a func-field mock of gateway.Runner. It records every
// script it receives.
type mockRunner struct {
	runFunc func(ctx context.Context, script gateway.Script) (*gateway.Result, error)

	mu    sync.Mutex
	calls []gateway.Script
}

func (m *mockRunner) Run(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, script)
	m.mu.Unlock()

	if m.runFunc != nil {
		return m.runFunc(ctx, script)
	}
	return &gateway.Result{ExitCode: 0, Duration: time.Millisecond}, nil
}

func (m *mockRunner) lastCall(t *testing.T) gateway.Script {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("expected at least one script execution")
	}
	return m.calls[len(m.calls)-1]
}

// okResult builds a successful gateway result with the given stdout.
func okResult(stdout string) *gateway.Result {
	return &gateway.Result{Stdout: stdout, ExitCode: 0, Duration: 2 * time.Millisecond}
}

func testConfig() *config.Config {
	return &config.Config{
		Transport:       config.TransportStdio,
		RequestTimeout:  5,
		WindowSize:      16,
		MonitorInterval: time.Second,
		CPUThreshold:    90,
		MemoryThreshold: 85,
		DiskThreshold:   90,
	}
}

func newTestServer(t *testing.T, runner gateway.Runner) *MCPServer {
	t.Helper()
	s, err := NewMCPServer(testConfig(), Deps{Runner: runner})
	if err != nil {
		t.Fatalf("NewMCPServer: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

// callTool invokes one registered tool handler directly.
func callTool(t *testing.T, s *MCPServer, name string, args string) *ToolResult {
	t.Helper()
	tool, ok := s.tools[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	result, err := tool.Handler(&ToolCall{Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		t.Fatalf("handler returned transport error: %v", err)
	}
	if result == nil {
		t.Fatal("handler returned nil result")
	}
	return result
}

// decodeRecord parses the structured record out of a tool result.
func decodeRecord(t *testing.T, result *ToolResult) record {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	var r record
	if err := json.Unmarshal([]byte(result.Content[0].Text), &r); err != nil {
		t.Fatalf("result text is not a valid record: %v\n%s", err, result.Content[0].Text)
	}
	return r
}

// expectSuccess decodes and asserts a success record for op.
func expectSuccess(t *testing.T, result *ToolResult, op string) record {
	t.Helper()
	r := decodeRecord(t, result)
	if !r.Success || result.IsError {
		t.Fatalf("expected success for %s, got record %+v", op, r)
	}
	if r.Operation != op {
		t.Errorf("expected operation %q, got %q", op, r.Operation)
	}
	return r
}

// expectFailure decodes and asserts a failure record with an error code.
func expectFailure(t *testing.T, result *ToolResult, op, code string) record {
	t.Helper()
	r := decodeRecord(t, result)
	if r.Success || !result.IsError {
		t.Fatalf("expected failure for %s, got record %+v", op, r)
	}
	if r.Operation != op {
		t.Errorf("expected operation %q, got %q", op, r.Operation)
	}
	if r.ErrorCode != code {
		t.Errorf("expected error code %q, got %q (%s)", code, r.ErrorCode, r.Message)
	}
	return r
}

// ============================================================================
// JSON-RPC dispatch
// ============================================================================

func TestHandleMessage_Initialize(t *testing.T) {
	s := newTestServer(t, &mockRunner{})

	resp := s.handleMessage(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("unexpected protocol version %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != serverName {
		t.Errorf("expected server name %q, got %q", serverName, result.ServerInfo.Name)
	}
}

func TestHandleMessage_InitializedNotification(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	if resp := s.handleMessage(&transport.Message{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	}); resp != nil {
		t.Fatalf("notifications must not produce a response, got %+v", resp)
	}
}

func TestHandleMessage_ToolsList(t *testing.T) {
	s := newTestServer(t, &mockRunner{})

	resp := s.handleMessage(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}

	want := []string{
		"play_audio", "stop_audio", "set_volume", "get_volume", "set_muted",
		"speak", "list_voices", "save_speech", "stop_speech",
		"send_email", "list_mail_accounts",
		"send_message", "list_message_services",
		"send_notification", "run_script",
		"health_check", "system_info",
		"performance_report", "set_thresholds", "optimization_report",
	}
	got := make(map[string]bool, len(result.Tools))
	for _, tool := range result.Tools {
		got[tool.Name] = true
		if tool.InputSchema["type"] != "object" {
			t.Errorf("tool %s: input schema is not an object", tool.Name)
		}
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("tool %s missing from tools/list", name)
		}
	}
	if len(result.Tools) != len(want) {
		t.Errorf("expected %d tools, got %d", len(want), len(result.Tools))
	}
}

func TestHandleMessage_MethodNotFound(t *testing.T) {
	s := newTestServer(t, &mockRunner{})

	resp := s.handleMessage(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "bogus/method",
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != transport.ErrCodeMethodNotFound {
		t.Errorf("expected code %d, got %d", transport.ErrCodeMethodNotFound, resp.Error.Code)
	}
}

func TestHandleToolCall_UnknownTool(t *testing.T) {
	s := newTestServer(t, &mockRunner{})

	params, _ := json.Marshal(map[string]any{"name": "does_not_exist"})
	resp := s.handleToolCall(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`4`),
		Params:  params,
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != transport.ErrCodeMethodNotFound {
		t.Errorf("expected code %d, got %d", transport.ErrCodeMethodNotFound, resp.Error.Code)
	}
}

func TestHandleToolCall_SchemaValidation_MissingRequired(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	// speak requires text; schema validation must reject before the
	// handler (and thus the runner) is reached.
	params, _ := json.Marshal(map[string]any{
		"name":      "speak",
		"arguments": map[string]any{},
	})
	resp := s.handleToolCall(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`5`),
		Params:  params,
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != transport.ErrCodeInvalidParams {
		t.Errorf("expected code %d, got %d", transport.ErrCodeInvalidParams, resp.Error.Code)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner must not be invoked on validation failure, got %d calls", len(runner.calls))
	}
}

func TestHandleToolCall_SchemaValidation_BadEnum(t *testing.T) {
	s := newTestServer(t, &mockRunner{})

	params, _ := json.Marshal(map[string]any{
		"name": "send_message",
		"arguments": map[string]any{
			"recipient": "+15551234567",
			"body":      "hi",
			"service":   "carrier-pigeon",
		},
	})
	resp := s.handleToolCall(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`6`),
		Params:  params,
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != transport.ErrCodeInvalidParams {
		t.Errorf("expected code %d, got %d", transport.ErrCodeInvalidParams, resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "service") {
		t.Errorf("error should name the offending field, got %q", resp.Error.Message)
	}
}

func TestHandleToolCall_Success(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return okResult(""), nil
		},
	}
	s := newTestServer(t, runner)

	params, _ := json.Marshal(map[string]any{
		"name":      "set_volume",
		"arguments": map[string]any{"level": 40},
	})
	resp := s.handleToolCall(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`7`),
		Params:  params,
	})
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result ToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	r := expectSuccess(t, &result, "set_volume")
	if r.Data["level"] != float64(40) {
		t.Errorf("expected level 40 in data, got %v", r.Data["level"])
	}
}

func TestHandleToolCall_RunnerError_IsToolError(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return nil, errors.New("osascript: no such binary")
		},
	}
	s := newTestServer(t, runner)

	result := callTool(t, s, "stop_audio", `{}`)
	expectFailure(t, result, "stop_audio", ErrCodeExecFailed)
}

func TestNewMCPServer_RequiresRunner(t *testing.T) {
	if _, err := NewMCPServer(testConfig(), Deps{}); err == nil {
		t.Fatal("expected an error when no runner is provided")
	}
}

// ============================================================================
// Full dispatch with documented argument names
// ============================================================================

// dispatchTool routes a call through the complete tools/call path,
// including input schema validation, and returns the tool result.
func dispatchTool(t *testing.T, s *MCPServer, name string, args map[string]any) *ToolResult {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal arguments: %v", err)
	}
	resp := s.handleToolCall(&transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Params:  params,
	})
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Error != nil {
		t.Fatalf("dispatch rejected the call: %+v", resp.Error)
	}
	var result ToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	return &result
}

// Each tool family invoked with exactly the argument names its
// registered schema declares. Every call must clear validation and
// reach its handler successfully.
func TestHandleToolCall_SchemaArgumentNamesReachHandlers(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
	}{
		{"set_muted", map[string]any{"muted": true}},
		{"speak", map[string]any{"text": "hello", "rate": 180}},
		{"send_email", map[string]any{
			"to": []string{"a@example.com"}, "subject": "hi",
			"body": "yo", "format": "html",
		}},
		{"send_message", map[string]any{"recipient": "+15551234567", "body": "hello"}},
		{"send_notification", map[string]any{"title": "ping", "message": "pong"}},
		{"run_script", map[string]any{"language": "applescript", "source": "return 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			s := newTestServer(t, &mockRunner{})
			result := dispatchTool(t, s, tt.tool, tt.args)
			expectSuccess(t, result, tt.tool)
		})
	}
}

func TestHandleToolCall_SendMessageBodyArgument(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	result := dispatchTool(t, s, "send_message", map[string]any{
		"recipient": "+15551234567",
		"body":      "running late",
	})
	expectSuccess(t, result, "send_message")

	if script := runner.lastCall(t); !strings.Contains(script.Source, `send "running late"`) {
		t.Errorf("body argument did not reach the script:\n%s", script.Source)
	}
}

func TestHandleToolCall_RunScriptTimeoutArgument(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	result := dispatchTool(t, s, "run_script", map[string]any{
		"language": "applescript",
		"source":   "delay 1",
		"timeout":  5,
	})
	expectSuccess(t, result, "run_script")

	if script := runner.lastCall(t); script.Timeout != 5*time.Second {
		t.Errorf("timeout argument ignored: got %s", script.Timeout)
	}
}

func TestHandleToolCall_SetThresholdsArguments(t *testing.T) {
	s, mon := newMonitoringServer(t, &mockRunner{}, &fakeSampler{}, 1)

	result := dispatchTool(t, s, "set_thresholds", map[string]any{"cpu": 50})
	expectSuccess(t, result, "set_thresholds")

	if th := mon.Thresholds(); th.CPU != 50 {
		t.Errorf("cpu argument did not update the threshold, got %g", th.CPU)
	}
}
