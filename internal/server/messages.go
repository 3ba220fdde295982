// Copyright 2025 Matt Barlow
//
// Messages (iMessage/SMS) tool handlers

package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// validPhone reports whether s looks like a phone number: digits plus
// an optional leading + and common separators.
func validPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 3
}

// validMessageRecipient accepts either a phone number or an email-style
// Apple ID.
func validMessageRecipient(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return validPhone(s) || strings.Contains(s, "@")
}

// serviceTypeFor maps the tool's service argument to the AppleScript
// service type constant.
func serviceTypeFor(service string) string {
	if service == "sms" {
		return "SMS"
	}
	return "iMessage"
}

// buildSendMessageScript formats the Messages.app send script.
func buildSendMessageScript(recipient, body, service string) string {
	var b strings.Builder
	b.WriteString("tell application \"Messages\"\n")
	fmt.Fprintf(&b, "\tset targetService to 1st account whose service type = %s\n", serviceTypeFor(service))
	fmt.Fprintf(&b, "\tset targetBuddy to participant \"%s\" of targetService\n",
		gateway.QuoteAppleScript(recipient))
	fmt.Fprintf(&b, "\tsend \"%s\" to targetBuddy\n", gateway.QuoteAppleScript(body))
	b.WriteString("end tell")
	return b.String()
}

// handleSendMessage handles the send_message tool
func (s *MCPServer) handleSendMessage(call *ToolCall) (*ToolResult, error) {
	const op = "send_message"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Recipient string `json:"recipient"`
		Body      string `json:"body"`
		Service   string `json:"service"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Body == "" {
		return missingParam(op, "body"), nil
	}
	if !validMessageRecipient(params.Recipient) {
		return failureResultf(op, ErrCodeInvalidRecipient,
			"recipient must be a phone number or an Apple ID email, got %q", params.Recipient), nil
	}
	if params.Service == "" {
		params.Service = "imessage"
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   buildSendMessageScript(params.Recipient, params.Body, params.Service),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration,
		fmt.Sprintf("message sent to %s via %s", params.Recipient, params.Service),
		map[string]any{"service": params.Service}), nil
}

// handleListMessageServices handles the list_message_services tool
func (s *MCPServer) handleListMessageServices(call *ToolCall) (*ToolResult, error) {
	const op = "list_message_services"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   `tell application "Messages" to get service type of every account`,
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	services := parseScriptList(res.Stdout)
	return successResult(op, res.Duration, fmt.Sprintf("%d services", len(services)), map[string]any{
		"services": services,
	}), nil
}
