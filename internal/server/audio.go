// Copyright 2025 Matt Barlow
//
// Audio tool handlers

package server

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// handlePlayAudio handles the play_audio tool
func (s *MCPServer) handlePlayAudio(call *ToolCall) (*ToolResult, error) {
	const op = "play_audio"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Path   string   `json:"path"`
		Volume *float64 `json:"volume"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Path == "" {
		return missingParam(op, "path"), nil
	}
	if _, err := os.Stat(params.Path); err != nil {
		return failureResultf(op, ErrCodeNotFound, "audio file not found: %s", params.Path), nil
	}

	volumeFlag := ""
	if params.Volume != nil {
		if *params.Volume < 0 || *params.Volume > 100 {
			return failureResultf(op, ErrCodeInvalidVolume, "volume must be between 0 and 100, got %g", *params.Volume), nil
		}
		// afplay volume is 0.0-1.0 with 1.0 as normal gain
		volumeFlag = fmt.Sprintf("-v %.2f ", *params.Volume/100)
	}

	// Backgrounded so the call returns while playback continues
	source := fmt.Sprintf("nohup afplay %s%s >/dev/null 2>&1 &",
		volumeFlag, gateway.QuotePOSIX(params.Path))

	res, err := s.runner.Run(ctx, gateway.Script{Language: gateway.LangShell, Source: source})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, fmt.Sprintf("playing %s", params.Path), nil), nil
}

// handleStopAudio handles the stop_audio tool
func (s *MCPServer) handleStopAudio(call *ToolCall) (*ToolResult, error) {
	const op = "stop_audio"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangShell,
		Source:   "pkill -x afplay",
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}

	// pkill exits 1 when nothing matched
	if res.ExitCode == 1 {
		return successResult(op, res.Duration, "no audio was playing", nil), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, "audio playback stopped", nil), nil
}

// handleSetVolume handles the set_volume tool
func (s *MCPServer) handleSetVolume(call *ToolCall) (*ToolResult, error) {
	const op = "set_volume"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Level *int `json:"level"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Level == nil {
		return missingParam(op, "level"), nil
	}
	if *params.Level < 0 || *params.Level > 100 {
		return failureResultf(op, ErrCodeInvalidVolume, "volume must be between 0 and 100, got %d", *params.Level), nil
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   fmt.Sprintf("set volume output volume %d", *params.Level),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	return successResult(op, res.Duration, fmt.Sprintf("volume set to %d", *params.Level), map[string]any{
		"level": *params.Level,
	}), nil
}

// getVolumeScript returns the output volume and mute flag as "NN,bool".
const getVolumeScript = `set s to get volume settings
return (output volume of s as text) & "," & (output muted of s as text)`

// handleGetVolume handles the get_volume tool
func (s *MCPServer) handleGetVolume(call *ToolCall) (*ToolResult, error) {
	const op = "get_volume"
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   getVolumeScript,
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	level, muted, err := parseVolumeOutput(res.Stdout)
	if err != nil {
		return failureResultf(op, ErrCodeScriptError, "unexpected volume output %q: %v", res.Stdout, err), nil
	}

	return successResult(op, res.Duration, "", map[string]any{
		"level": level,
		"muted": muted,
	}), nil
}

// parseVolumeOutput parses "65,false" into its parts.
func parseVolumeOutput(out string) (int, bool, error) {
	parts := strings.SplitN(strings.TrimSpace(out), ",", 2)
	if len(parts) != 2 {
		return 0, false, fmt.Errorf("expected two comma-separated fields")
	}
	level, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false, fmt.Errorf("bad volume level: %w", err)
	}
	muted, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false, fmt.Errorf("bad mute flag: %w", err)
	}
	return level, muted, nil
}

// handleSetMuted handles the set_muted tool
func (s *MCPServer) handleSetMuted(call *ToolCall) (*ToolResult, error) {
	const op = "set_muted"
	ctx, cancel := s.callContext()
	defer cancel()

	var params struct {
		Muted *bool `json:"muted"`
	}
	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return invalidArgs(op, err), nil
	}
	if params.Muted == nil {
		return missingParam(op, "muted"), nil
	}

	res, err := s.runner.Run(ctx, gateway.Script{
		Language: gateway.LangAppleScript,
		Source:   fmt.Sprintf("set volume output muted %t", *params.Muted),
	})
	if err != nil {
		return gatewayFailure(op, err), nil
	}
	if res.ExitCode != 0 {
		return scriptFailure(op, res), nil
	}

	state := "unmuted"
	if *params.Muted {
		state = "muted"
	}
	return successResult(op, res.Duration, "output "+state, nil), nil
}
