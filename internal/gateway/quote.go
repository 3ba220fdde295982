// Copyright 2025 Matt Barlow
//
// AppleScript string escaping

package gateway

import "strings"

// appleScriptReplacer escapes characters that would otherwise terminate
// or alter an AppleScript string literal. Backslash must be first.
var appleScriptReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// QuoteAppleScript escapes s for safe interpolation inside a
// double-quoted AppleScript string literal. All user-supplied text must
// pass through here before being embedded in a generated script.
func QuoteAppleScript(s string) string {
	return appleScriptReplacer.Replace(s)
}

// QuotePOSIX single-quotes s for safe use as one word in a /bin/sh
// command line. Embedded single quotes are closed, escaped, reopened.
func QuotePOSIX(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
