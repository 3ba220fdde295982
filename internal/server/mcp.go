// Copyright 2025 Matt Barlow
//
// MCP server implementation

// Package server implements the bridge's MCP surface: a registry of
// named tools, JSON-RPC dispatch, and per-call instrumentation. Each
// tool validates its arguments, formats a script, and forwards it
// through the execution gateway.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbarlow/macbridge/internal/config"
	"github.com/mbarlow/macbridge/internal/gateway"
	"github.com/mbarlow/macbridge/internal/monitor"
	"github.com/mbarlow/macbridge/internal/transport"
)

// serverName and serverVersion identify the bridge in the MCP
// initialize handshake.
const (
	serverName    = "macbridge"
	serverVersion = "0.1.0"
)

// MCPServer represents the bridge MCP server
type MCPServer struct {
	runner    gateway.Runner
	sampler   monitor.Sampler
	monitor   *monitor.Monitor
	optimizer *monitor.Optimizer
	ctx       context.Context
	cfg       *config.Config
	logger    *zap.Logger
	audit     *AuditLogger
	metrics   *transport.MetricsRegistry
	tools     map[string]*Tool
	cancel    context.CancelFunc
	mu        sync.RWMutex
}

// Tool represents an MCP tool
type Tool struct {
	Handler     func(*ToolCall) (*ToolResult, error)
	InputSchema map[string]interface{}
	Name        string
	Description string
}

// ToolCall represents a tool call request
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult represents a tool call result
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents a content item in a tool result
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Deps carries the collaborators an MCPServer needs.
type Deps struct {
	Runner    gateway.Runner
	Sampler   monitor.Sampler
	Monitor   *monitor.Monitor
	Optimizer *monitor.Optimizer
	Logger    *zap.Logger
}

// NewMCPServer creates a new MCP server
func NewMCPServer(cfg *config.Config, deps Deps) (*MCPServer, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("gateway runner is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	audit, err := NewAuditLogger(cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &MCPServer{
		runner:    deps.Runner,
		sampler:   deps.Sampler,
		monitor:   deps.Monitor,
		optimizer: deps.Optimizer,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		audit:     audit,
		metrics:   transport.DefaultMetrics(),
		tools:     make(map[string]*Tool),
	}

	s.registerTools()

	return s, nil
}

// callContext returns a context bounded by the configured request timeout.
func (s *MCPServer) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, time.Duration(s.cfg.RequestTimeout)*time.Second)
}

// Shutdown gracefully shuts down the server
func (s *MCPServer) Shutdown() {
	s.cancel()
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("failed to close audit log", zap.Error(err))
	}
	s.logger.Info("shutting down bridge server")
}

// Serve reads MCP requests from the stdio transport until EOF or shutdown.
func (s *MCPServer) Serve(tr *transport.StdioTransport) error {
	s.logger.Info("bridge server starting", zap.String("transport", "stdio"))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("bridge server stopping (context cancelled)")
			return nil
		default:
			msg, err := tr.ReadMessage()
			if err != nil {
				if err == io.EOF || err.Error() == "stdin closed" {
					s.logger.Info("bridge server stopping (EOF)")
					return nil
				}
				s.logger.Warn("error reading message", zap.Error(err))
				continue
			}

			go func() {
				response := s.handleMessage(msg)
				if response == nil {
					return
				}
				if err := tr.WriteMessage(response); err != nil {
					s.logger.Warn("error writing response", zap.Error(err))
				}
			}()
		}
	}
}

// ServeHTTP serves MCP requests over the HTTP/SSE transport.
func (s *MCPServer) ServeHTTP(tr *transport.HTTPTransport) error {
	s.logger.Info("bridge server starting", zap.String("transport", "sse"))
	return tr.Serve(func(msg *transport.Message) (*transport.Message, error) {
		return s.handleMessage(msg), nil
	})
}

// handleMessage dispatches a single JSON-RPC message and returns the
// response, or nil for notifications that produce none.
func (s *MCPServer) handleMessage(msg *transport.Message) *transport.Message {
	switch msg.Method {
	case "initialize":
		result, _ := json.Marshal(map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": serverVersion,
			},
		})
		return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: result}

	case "notifications/initialized":
		return nil

	case "tools/list":
		s.mu.RLock()
		tools := make([]map[string]interface{}, 0, len(s.tools))
		for _, tool := range s.tools {
			tools = append(tools, map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"inputSchema": tool.InputSchema,
			})
		}
		s.mu.RUnlock()

		result, _ := json.Marshal(map[string]interface{}{"tools": tools})
		return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: result}

	case "tools/call":
		return s.handleToolCall(msg)

	default:
		return &transport.Message{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Error: &transport.ErrorObj{
				Code:    transport.ErrCodeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", msg.Method),
			},
		}
	}
}

// handleToolCall validates, dispatches, and instruments one tool call.
func (s *MCPServer) handleToolCall(msg *transport.Message) *transport.Message {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return &transport.Message{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Error: &transport.ErrorObj{
				Code:    transport.ErrCodeInvalidRequest,
				Message: fmt.Sprintf("Invalid request: %v", err),
			},
		}
	}

	s.mu.RLock()
	tool, exists := s.tools[params.Name]
	s.mu.RUnlock()

	if !exists {
		return &transport.Message{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Error: &transport.ErrorObj{
				Code:    transport.ErrCodeMethodNotFound,
				Message: fmt.Sprintf("Tool not found: %s", params.Name),
			},
		}
	}

	// Schema validation before the handler runs
	if len(params.Arguments) > 0 {
		var args map[string]any
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return &transport.Message{
				JSONRPC: "2.0",
				ID:      msg.ID,
				Error: &transport.ErrorObj{
					Code:    transport.ErrCodeInvalidParams,
					Message: fmt.Sprintf("Invalid arguments: %v", err),
				},
			}
		}
		if errMsg := validateToolInput(tool, args); errMsg != nil {
			errMsg.ID = msg.ID
			return errMsg
		}
	} else if errMsg := validateToolInput(tool, map[string]any{}); errMsg != nil {
		errMsg.ID = msg.ID
		return errMsg
	}

	start := time.Now()
	result, err := tool.Handler(&ToolCall{
		Name:      params.Name,
		Arguments: params.Arguments,
	})
	elapsed := time.Since(start)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case result != nil && result.IsError:
		status = "tool_error"
	}
	s.metrics.RecordRequest(params.Name, status, elapsed)
	s.audit.LogToolCall(params.Name, params.Arguments, status, elapsed)
	s.logger.Debug("tool call",
		zap.String("tool", params.Name),
		zap.String("status", status),
		zap.Duration("duration", elapsed))

	if err != nil {
		return &transport.Message{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Error: &transport.ErrorObj{
				Code:    transport.ErrCodeInternalError,
				Message: err.Error(),
			},
		}
	}

	resultMap := map[string]interface{}{
		"content": result.Content,
	}
	if result.IsError {
		resultMap["isError"] = true
	}

	resultBytes, _ := json.Marshal(resultMap)
	return &transport.Message{JSONRPC: "2.0", ID: msg.ID, Result: resultBytes}
}
