// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package logging wraps the application logger. Everything in Wireline logs
// through the package-level helpers so the sink and level can be switched in
// one place (the TUI redirects logs away from the screen, the CLI keeps
// stderr).
package logging

import (
	"fmt"
	"io"
	"os"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Callers should use the helper functions
// below for compatibility with existing calls.
var L = clog.NewWithOptions(os.Stderr, clog.Options{
	ReportTimestamp: true,
})

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...interface{}) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...interface{}) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...interface{}) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...interface{}) {
	L.Error(fmt.Sprintf(format, v...))
}

// SetLevel applies a textual level ("debug", "info", "warn", "error").
// Unknown values leave the current level untouched and are reported back.
func SetLevel(level string) error {
	lv, err := clog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}
	L.SetLevel(lv)
	return nil
}

// SetOutput redirects the logger to w. Passing io.Discard silences it, which
// is what the TUI does while it owns the terminal.
func SetOutput(w io.Writer) {
	L.SetOutput(w)
}
