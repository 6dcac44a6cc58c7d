// Package sysutil wires process-wide runtime knobs, currently just the
// global zerolog level.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps a configuration string to a zerolog level. Unknown or
// empty values fall back to info so a typo in LOG_LEVEL never silences the
// process.
func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel applies the configured level globally.
func SetLogLevel(lvl string) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
}
