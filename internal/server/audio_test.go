// Copyright 2025 Matt Barlow
//
// Audio handler unit tests

package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// tempAudioFile creates a placeholder file standing in for an audio asset.
func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chime.aiff")
	if err := os.WriteFile(path, []byte("riff"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// ============================================================================
// handlePlayAudio
// ============================================================================

func TestHandlePlayAudio_Success(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)
	path := tempAudioFile(t)

	result := callTool(t, s, "play_audio", fmt.Sprintf(`{"path":%q}`, path))
	expectSuccess(t, result, "play_audio")

	script := runner.lastCall(t)
	if script.Language != gateway.LangShell {
		t.Errorf("expected shell script, got %s", script.Language)
	}
	if !strings.Contains(script.Source, "afplay") {
		t.Errorf("script should invoke afplay: %s", script.Source)
	}
	if !strings.Contains(script.Source, gateway.QuotePOSIX(path)) {
		t.Errorf("path must be quoted in script: %s", script.Source)
	}
	if !strings.HasSuffix(script.Source, "&") {
		t.Errorf("playback must be backgrounded: %s", script.Source)
	}
}

func TestHandlePlayAudio_WithVolume(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)
	path := tempAudioFile(t)

	result := callTool(t, s, "play_audio", fmt.Sprintf(`{"path":%q,"volume":50}`, path))
	expectSuccess(t, result, "play_audio")

	if script := runner.lastCall(t); !strings.Contains(script.Source, "-v 0.50") {
		t.Errorf("expected scaled -v flag in script: %s", script.Source)
	}
}

func TestHandlePlayAudio_VolumeOutOfRange(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)
	path := tempAudioFile(t)

	for _, vol := range []float64{-1, 101} {
		result := callTool(t, s, "play_audio", fmt.Sprintf(`{"path":%q,"volume":%g}`, path, vol))
		expectFailure(t, result, "play_audio", ErrCodeInvalidVolume)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner must not run for invalid volume, got %d calls", len(runner.calls))
	}
}

func TestHandlePlayAudio_FileNotFound(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "play_audio", `{"path":"/nonexistent/chime.aiff"}`)
	expectFailure(t, result, "play_audio", ErrCodeNotFound)
}

func TestHandlePlayAudio_MissingPath(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "play_audio", `{}`)
	expectFailure(t, result, "play_audio", ErrCodeMissingParam)
}

// ============================================================================
// handleStopAudio
// ============================================================================

func TestHandleStopAudio_NothingPlaying(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return &gateway.Result{ExitCode: 1}, nil
		},
	}
	s := newTestServer(t, runner)

	// pkill exit 1 means no process matched, which is still a success.
	result := callTool(t, s, "stop_audio", `{}`)
	r := expectSuccess(t, result, "stop_audio")
	if !strings.Contains(r.Message, "no audio") {
		t.Errorf("unexpected message %q", r.Message)
	}
}

func TestHandleStopAudio_Stopped(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "stop_audio", `{}`)
	expectSuccess(t, result, "stop_audio")
}

// ============================================================================
// Volume tools
// ============================================================================

func TestHandleSetVolume_OutOfRange(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	for _, level := range []int{-5, 150} {
		result := callTool(t, s, "set_volume", fmt.Sprintf(`{"level":%d}`, level))
		expectFailure(t, result, "set_volume", ErrCodeInvalidVolume)
	}
}

func TestHandleSetVolume_ScriptContent(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	callTool(t, s, "set_volume", `{"level":65}`)

	script := runner.lastCall(t)
	if script.Language != gateway.LangAppleScript {
		t.Errorf("expected applescript, got %s", script.Language)
	}
	if script.Source != "set volume output volume 65" {
		t.Errorf("unexpected script %q", script.Source)
	}
}

func TestHandleGetVolume_ParsesOutput(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return okResult("65,false"), nil
		},
	}
	s := newTestServer(t, runner)

	result := callTool(t, s, "get_volume", `{}`)
	r := expectSuccess(t, result, "get_volume")
	if r.Data["level"] != float64(65) {
		t.Errorf("expected level 65, got %v", r.Data["level"])
	}
	if r.Data["muted"] != false {
		t.Errorf("expected muted false, got %v", r.Data["muted"])
	}
}

func TestHandleGetVolume_BadOutput(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return okResult("garbage"), nil
		},
	}
	s := newTestServer(t, runner)

	result := callTool(t, s, "get_volume", `{}`)
	expectFailure(t, result, "get_volume", ErrCodeScriptError)
}

func TestParseVolumeOutput(t *testing.T) {
	tests := []struct {
		in      string
		level   int
		muted   bool
		wantErr bool
	}{
		{"65,false", 65, false, false},
		{"0,true", 0, true, false},
		{" 100 , true \n", 100, true, false},
		{"65", 0, false, true},
		{"abc,false", 0, false, true},
		{"65,maybe", 0, false, true},
		{"", 0, false, true},
	}
	for _, tt := range tests {
		level, muted, err := parseVolumeOutput(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVolumeOutput(%q) error = %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if level != tt.level || muted != tt.muted {
			t.Errorf("parseVolumeOutput(%q) = (%d, %t), want (%d, %t)", tt.in, level, muted, tt.level, tt.muted)
		}
	}
}

func TestHandleSetMuted(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	result := callTool(t, s, "set_muted", `{"muted":true}`)
	r := expectSuccess(t, result, "set_muted")
	if !strings.Contains(r.Message, "muted") {
		t.Errorf("unexpected message %q", r.Message)
	}
	if script := runner.lastCall(t); script.Source != "set volume output muted true" {
		t.Errorf("unexpected script %q", script.Source)
	}
}

func TestHandleSetMuted_MissingFlag(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "set_muted", `{}`)
	expectFailure(t, result, "set_muted", ErrCodeMissingParam)
}
