// Copyright 2025 Matt Barlow
//
// Gateway unit tests

package gateway

import (
	"context"
	"testing"
)

func TestCommandFor(t *testing.T) {
	tests := []struct {
		name     string
		script   Script
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{
			name:     "applescript",
			script:   Script{Language: LangAppleScript, Source: `return "pong"`},
			wantName: "osascript",
			wantArgs: []string{"-e", `return "pong"`},
		},
		{
			name:     "jxa",
			script:   Script{Language: LangJXA, Source: "1+1"},
			wantName: "osascript",
			wantArgs: []string{"-l", "JavaScript", "-e", "1+1"},
		},
		{
			name:     "shell",
			script:   Script{Language: LangShell, Source: "uname -a"},
			wantName: "/bin/sh",
			wantArgs: []string{"-c", "uname -a"},
		},
		{
			name:     "shell with args",
			script:   Script{Language: LangShell, Source: "echo $0", Args: []string{"first"}},
			wantName: "/bin/sh",
			wantArgs: []string{"-c", "echo $0", "first"},
		},
		{
			name:    "unknown language",
			script:  Script{Language: "ruby", Source: "puts 1"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := commandFor(tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("commandFor error = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %q, want %q", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestOsascriptRunner_EmptySource(t *testing.T) {
	r := NewOsascriptRunner(nil)
	if _, err := r.Run(context.Background(), Script{Language: LangShell, Source: "  \n"}); err == nil {
		t.Fatal("expected an error for empty script source")
	}
}

func TestOsascriptRunner_UnknownLanguage(t *testing.T) {
	r := NewOsascriptRunner(nil)
	if _, err := r.Run(context.Background(), Script{Language: "ruby", Source: "puts 1"}); err == nil {
		t.Fatal("expected an error for unknown language")
	}
}
