// Copyright 2025 Matt Barlow
//
// Notification tool handler

package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// buildNotificationScript formats a display notification command.
// All user-supplied text is quoted before interpolation.
func buildNotificationScript(title, message, subtitle, sound string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "display notification \"%s\" with title \"%s\"",
		gateway.QuoteAppleScript(message), gateway.QuoteAppleScript(title))
	if subtitle != "" {
		fmt.Fprintf(&b, " subtitle \"%s\"", gateway.QuoteAppleScript(subtitle))
	}
	if sound != "" {
		fmt.Fprintf(&b, " sound name \"%s\"", gateway.QuoteAppleScript(sound))
	}
	return b.String()
}

// handleSendNotification handles the send_notification tool
func (s *MCPServer) handleSendNotification(call *ToolCall) (*ToolResult, error) {
	const op = "send_notification"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Title    string `json:"title"`
		Message  string `json:"message"`
		Subtitle string `json:"subtitle"`
		Sound    string `json:"sound"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Title == "" {
		return missingParam(op, "title"), nil
	}
	if params.Message == "" {
		return missingParam(op, "message"), nil
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   buildNotificationScript(params.Title, params.Message, params.Subtitle, params.Sound),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, "notification posted", nil), nil
}
