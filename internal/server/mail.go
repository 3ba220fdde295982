// Copyright 2025 Matt Barlow
//
// Mail tool handlers

package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbarlow/macbridge/internal/gateway"
)

const (
	formatPlain = "plain"
	formatHTML  = "html"
)

// emailParams are the send_email arguments.
type emailParams struct {
	To      []string `json:"to"`
	CC      []string `json:"cc"`
	BCC     []string `json:"bcc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Format  string   `json:"format"`
}

// validateAddresses applies the rudimentary address check to every
// recipient list. Returns the offending address, or "".
func validateAddresses(lists ...[]string) string {
	for _, list := range lists {
		for _, addr := range list {
			if !strings.Contains(addr, "@") || strings.TrimSpace(addr) == "" {
				return addr
			}
		}
	}
	return ""
}

// buildSendEmailScript formats the Mail.app script for one outgoing
// message. HTML bodies go through the html content property instead of
// the plain content property.
func buildSendEmailScript(p emailParams) string {
	var b strings.Builder
	b.WriteString("tell application \"Mail\"\n")
	if p.Format == formatHTML {
		fmt.Fprintf(&b, "\tset newMessage to make new outgoing message with properties {subject:\"%s\", visible:false}\n",
			gateway.QuoteAppleScript(p.Subject))
		fmt.Fprintf(&b, "\tset html content of newMessage to \"%s\"\n",
			gateway.QuoteAppleScript(p.Body))
	} else {
		fmt.Fprintf(&b, "\tset newMessage to make new outgoing message with properties {subject:\"%s\", content:\"%s\", visible:false}\n",
			gateway.QuoteAppleScript(p.Subject), gateway.QuoteAppleScript(p.Body))
	}
	b.WriteString("\ttell newMessage\n")
	for _, addr := range p.To {
		fmt.Fprintf(&b, "\t\tmake new to recipient at end of to recipients with properties {address:\"%s\"}\n",
			gateway.QuoteAppleScript(addr))
	}
	for _, addr := range p.CC {
		fmt.Fprintf(&b, "\t\tmake new cc recipient at end of cc recipients with properties {address:\"%s\"}\n",
			gateway.QuoteAppleScript(addr))
	}
	for _, addr := range p.BCC {
		fmt.Fprintf(&b, "\t\tmake new bcc recipient at end of bcc recipients with properties {address:\"%s\"}\n",
			gateway.QuoteAppleScript(addr))
	}
	b.WriteString("\tend tell\n")
	b.WriteString("\tsend newMessage\n")
	b.WriteString("end tell")
	return b.String()
}

// handleSendEmail handles the send_email tool
func (s *MCPServer) handleSendEmail(call *ToolCall) (*ToolResult, error) {
	const op = "send_email"
	ctx, cancel := s.callContext()
	defer cancel()

	var params emailParams
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if len(params.To) == 0 {
		return failureResult(op, ErrCodeMissingParam, "at least one recipient is required"), nil
	}
	if params.Subject == "" {
		return missingParam(op, "subject"), nil
	}
	if bad := validateAddresses(params.To, params.CC, params.BCC); bad != "" {
		return failureResultf(op, ErrCodeInvalidRecipient, "invalid email address: %q", bad), nil
	}
	if params.Format == "" {
		params.Format = formatPlain
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   buildSendEmailScript(params),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration,
		fmt.Sprintf("email sent to %s", strings.Join(params.To, ", ")),
		map[string]any{
			"recipients": len(params.To) + len(params.CC) + len(params.BCC),
			"format":     params.Format,
		}), nil
}

// handleListMailAccounts handles the list_mail_accounts tool
func (s *MCPServer) handleListMailAccounts(call *ToolCall) (*ToolResult, error) {
	const op = "list_mail_accounts"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   `tell application "Mail" to get name of every account`,
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	accounts := parseScriptList(res.Stdout)
	return successResult(op, res.Duration, fmt.Sprintf("%d accounts", len(accounts)), map[string]any{
		"accounts": accounts,
	}), nil
}

// parseScriptList splits osascript's rendering of an AppleScript list
// ("a, b, c") into items. An empty output yields an empty slice.
func parseScriptList(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return []string{}
	}
	parts := strings.Split(out, ", ")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
