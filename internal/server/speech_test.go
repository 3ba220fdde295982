// Copyright 2025 Matt Barlow
//
// Text-to-speech handler unit tests

package server

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mbarlow/macbridge/internal/gateway"
)

// ============================================================================
// buildSpeakScript
// ============================================================================

func TestBuildSpeakScript(t *testing.T) {
	rate := 200
	tests := []struct {
		name   string
		params speechParams
		output string
		want   string
	}{
		{
			name:   "plain text",
			params: speechParams{Text: "hello"},
			want:   "say -- 'hello'",
		},
		{
			name:   "voice and rate",
			params: speechParams{Text: "hello", Voice: "Samantha", Rate: &rate},
			want:   "say -v 'Samantha' -r 200 -- 'hello'",
		},
		{
			name:   "output file",
			params: speechParams{Text: "hello"},
			output: "/tmp/out.aiff",
			want:   "say -o '/tmp/out.aiff' -- 'hello'",
		},
		{
			name:   "single quote in text",
			params: speechParams{Text: "it's done"},
			want:   `say -- 'it'\''s done'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSpeakScript(tt.params, tt.output); got != tt.want {
				t.Errorf("buildSpeakScript = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================================
// handleSpeak / handleSaveSpeech
// ============================================================================

func TestHandleSpeak_Success(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	result := callTool(t, s, "speak", `{"text":"status nominal","voice":"Samantha","rate":180}`)
	expectSuccess(t, result, "speak")

	script := runner.lastCall(t)
	if script.Language != gateway.LangShell {
		t.Errorf("expected shell script, got %s", script.Language)
	}
	for _, fragment := range []string{"say", "-v 'Samantha'", "-r 180", "'status nominal'"} {
		if !strings.Contains(script.Source, fragment) {
			t.Errorf("script missing %q: %s", fragment, script.Source)
		}
	}
}

func TestHandleSpeak_RateOutOfBounds(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	for _, rate := range []int{119, 301} {
		result := callTool(t, s, "speak", fmt.Sprintf(`{"text":"hi","rate":%d}`, rate))
		expectFailure(t, result, "speak", ErrCodeInvalidRate)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner must not run for invalid rate, got %d calls", len(runner.calls))
	}
}

func TestHandleSpeak_BlankText(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "speak", `{"text":"   "}`)
	expectFailure(t, result, "speak", ErrCodeMissingParam)
}

func TestHandleSaveSpeech_Success(t *testing.T) {
	runner := &mockRunner{}
	s := newTestServer(t, runner)

	result := callTool(t, s, "save_speech", `{"text":"archived","path":"/tmp/out.aiff"}`)
	r := expectSuccess(t, result, "save_speech")
	if r.Data["path"] != "/tmp/out.aiff" {
		t.Errorf("expected path in data, got %v", r.Data["path"])
	}
	if script := runner.lastCall(t); !strings.Contains(script.Source, "-o '/tmp/out.aiff'") {
		t.Errorf("script missing output flag: %s", script.Source)
	}
}

func TestHandleSaveSpeech_MissingPath(t *testing.T) {
	s := newTestServer(t, &mockRunner{})
	result := callTool(t, s, "save_speech", `{"text":"archived"}`)
	expectFailure(t, result, "save_speech", ErrCodeMissingParam)
}

// ============================================================================
// handleListVoices
// ============================================================================

const sampleVoicesOutput = `Alex                en_US    # Most people recognize me by my voice.
Eddy (German (Germany)) de_DE    # Hallo! Mein Name ist Eddy.
Samantha            en_US    # Hello! My name is Samantha.

`

func TestHandleListVoices(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return okResult(sampleVoicesOutput), nil
		},
	}
	s := newTestServer(t, runner)

	result := callTool(t, s, "list_voices", `{}`)
	r := expectSuccess(t, result, "list_voices")

	voices, ok := r.Data["voices"].([]any)
	if !ok {
		t.Fatalf("expected voices list in data, got %T", r.Data["voices"])
	}
	if len(voices) != 3 {
		t.Fatalf("expected 3 voices, got %d", len(voices))
	}
}

func TestParseVoices(t *testing.T) {
	voices := parseVoices(sampleVoicesOutput)
	if len(voices) != 3 {
		t.Fatalf("expected 3 voices, got %d", len(voices))
	}

	if voices[0].Name != "Alex" || voices[0].Locale != "en_US" {
		t.Errorf("unexpected first voice: %+v", voices[0])
	}
	if voices[0].Sample != "Most people recognize me by my voice." {
		t.Errorf("unexpected sample: %q", voices[0].Sample)
	}

	// Names containing spaces keep everything before the locale field.
	if voices[1].Name != "Eddy (German (Germany))" || voices[1].Locale != "de_DE" {
		t.Errorf("unexpected second voice: %+v", voices[1])
	}
}

func TestParseVoices_Empty(t *testing.T) {
	if voices := parseVoices(""); len(voices) != 0 {
		t.Errorf("expected no voices, got %d", len(voices))
	}
}

// ============================================================================
// handleStopSpeech
// ============================================================================

func TestHandleStopSpeech_NothingSpeaking(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(ctx context.Context, script gateway.Script) (*gateway.Result, error) {
			return &gateway.Result{ExitCode: 1}, nil
		},
	}
	s := newTestServer(t, runner)

	result := callTool(t, s, "stop_speech", `{}`)
	r := expectSuccess(t, result, "stop_speech")
	if !strings.Contains(r.Message, "no speech") {
		t.Errorf("unexpected message %q", r.Message)
	}
}
