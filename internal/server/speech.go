// Copyright 2025 Matt Barlow
//
// Text-to-speech tool handlers

package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// Speech rate bounds in words per minute.
const (
	minSpeechRate = 120
	maxSpeechRate = 300
)

// speechParams are the shared arguments of speak and save_speech.
type speechParams struct {
	Text  string `json:"text"`
	Path  string `json:"path"`
	Voice string `json:"voice"`
	Rate  *int   `json:"rate"`
}

// validateSpeech checks the shared speech arguments, returning a failure
// record or nil.
func validateSpeech(op string, params speechParams) *ToolResult {
	if strings.TrimSpace(params.Text) == "" {
		return missingParam(op, "text")
	}
	if params.Rate != nil && (*params.Rate < minSpeechRate || *params.Rate > maxSpeechRate) {
		return failureResultf(op, ErrCodeInvalidRate,
			"speech rate must be between %d and %d words per minute, got %d",
			minSpeechRate, maxSpeechRate, *params.Rate)
	}
	return nil
}

// buildSpeakScript formats the `say` command line. An empty outputFile
// speaks aloud; otherwise speech is rendered to the file. The say
// process is a direct child of the shell, so stop_speech can signal it.
func buildSpeakScript(params speechParams, outputFile string) string {
	var b strings.Builder
	b.WriteString("say")
	if params.Voice != "" {
		b.WriteString(" -v ")
		b.WriteString(gateway.QuotePOSIX(params.Voice))
	}
	if params.Rate != nil {
		fmt.Fprintf(&b, " -r %d", *params.Rate)
	}
	if outputFile != "" {
		b.WriteString(" -o ")
		b.WriteString(gateway.QuotePOSIX(outputFile))
	}
	b.WriteString(" -- ")
	b.WriteString(gateway.QuotePOSIX(params.Text))
	return b.String()
}

// handleSpeak handles the speak tool
func (s *MCPServer) handleSpeak(call *ToolCall) (*ToolResult, error) {
	const op = "speak"
	ctx, cancel := s.callContext()
	defer cancel()

	var params speechParams
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if failure := validateSpeech(op, params); failure != nil {
		return failure, nil
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangShell,
		Source:   buildSpeakScript(params, ""),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, "spoken", nil), nil
}

// handleSaveSpeech handles the save_speech tool
func (s *MCPServer) handleSaveSpeech(call *ToolCall) (*ToolResult, error) {
	const op = "save_speech"
	ctx, cancel := s.callContext()
	defer cancel()

	var params speechParams
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if failure := validateSpeech(op, params); failure != nil {
		return failure, nil
	}
	if params.Path == "" {
		return missingParam(op, "path"), nil
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangShell,
		Source:   buildSpeakScript(params, params.Path),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, fmt.Sprintf("speech saved to %s", params.Path), map[string]any{
		"path": params.Path,
	}), nil
}

// handleListVoices handles the list_voices tool
func (s *MCPServer) handleListVoices(call *ToolCall) (*ToolResult, error) {
	const op = "list_voices"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangShell,
		Source:   "say -v '?'",
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	voices := parseVoices(res.Stdout)
	return successResult(op, res.Duration, fmt.Sprintf("%d voices installed", len(voices)), map[string]any{
		"voices": voices,
	}), nil
}

// voiceInfo is one installed text-to-speech voice.
type voiceInfo struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
	Sample string `json:"sample,omitempty"`
}

// parseVoices parses `say -v ?` output. Each line looks like:
//
//	Alex                en_US    # Most people recognize me by my voice.
//
// Voice names may contain spaces; the locale is the last field before
// the "#" delimiter.
func parseVoices(out string) []voiceInfo {
	var voices []voiceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		head, sample, _ := strings.Cut(line, "#")
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}

		voices = append(voices, voiceInfo{
			Name:   strings.Join(fields[:len(fields)-1], " "),
			Locale: fields[len(fields)-1],
			Sample: strings.TrimSpace(sample),
		})
	}
	return voices
}

// handleStopSpeech handles the stop_speech tool
func (s *MCPServer) handleStopSpeech(call *ToolCall) (*ToolResult, error) {
	const op = "stop_speech"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangShell,
		Source:   "pkill -x say",
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}

	if res.ExitCode == 1 {
		return successResult(op, res.Duration, "no speech in progress", nil), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, "speech stopped", nil), nil
}
