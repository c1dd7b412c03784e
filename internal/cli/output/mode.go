// Package output renders command results for terminals, scripts and agents.
//
// Text mode is styled with lipgloss and meant for a human at a TTY. Markdown
// is the default when output is piped. JSON and YAML are machine readable.
package output

import "strings"

// OutputMode selects how results are rendered.
type OutputMode string

// Supported output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
	ModeYAML     OutputMode = "yaml"
)

// Modes lists every accepted mode, for flag completion and validation.
var Modes = []OutputMode{ModeAuto, ModeText, ModeMarkdown, ModeJSON, ModeYAML}

// Mode parses a mode name. Unknown and empty names fall back to ModeAuto.
func Mode(s string) OutputMode {
	switch m := OutputMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeText, ModeMarkdown, ModeJSON, ModeYAML:
		return m
	case "md":
		return ModeMarkdown
	case "yml":
		return ModeYAML
	default:
		return ModeAuto
	}
}

// IsValidMode reports whether s names a supported mode.
func IsValidMode(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "auto", "text", "markdown", "md", "json", "yaml", "yml":
		return true
	}
	return false
}

// ModeNames returns the mode names as strings.
func ModeNames() []string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return names
}
