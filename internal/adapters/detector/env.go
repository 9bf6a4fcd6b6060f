// Package detector selects the log format from the environment.
package detector

import (
	"os"

	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// LogFormat is the rendering format of log output.
type LogFormat int

const (
	// FormatPretty renders colored human-readable lines.
	FormatPretty LogFormat = iota
	// FormatJSON renders one JSON object per line.
	FormatJSON
)

// ErrInvalidLogFormat is returned for an unknown --log-format value.
var ErrInvalidLogFormat = zerr.New("invalid log format, expected 'auto', 'pretty' or 'json'")

// IsCI reports whether a CI environment variable is set.
func IsCI() bool {
	ci := os.Getenv("CI")
	return ci == "true" || ci == "1"
}

// DetectFormat returns JSON when stderr is not a terminal or CI is set.
func DetectFormat() LogFormat {
	if !term.IsTerminal(int(os.Stderr.Fd())) || IsCI() {
		return FormatJSON
	}
	return FormatPretty
}

// ResolveFormat applies the user flag to the detected format.
// flag is one of "auto", "pretty", "json" or empty.
func ResolveFormat(detected LogFormat, flag string) (LogFormat, error) {
	switch flag {
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	case "auto", "":
		return detected, nil
	default:
		return detected, zerr.With(ErrInvalidLogFormat, "format", flag)
	}
}
