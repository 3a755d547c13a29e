// Package ui prints user-facing messages. Diagnostics go through
// internal/log; this package is for what a person at the terminal reads.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

var writer io.Writer = os.Stderr

// SetWriter overrides the stderr writer. nil restores os.Stderr.
func SetWriter(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	writer = w
}

var stdoutColor = detectColor(os.Stdout)
var stderrColor = detectColor(os.Stderr)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection (for testing).
func SetColorEnabled(enabled bool) {
	stdoutColor = enabled
	stderrColor = enabled
}

func ansi(enabled bool, code, s string) string {
	if !enabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Bold wraps s in bold (stdout).
func Bold(s string) string { return ansi(stdoutColor, "1", s) }

// Green wraps s in green (stdout).
func Green(s string) string { return ansi(stdoutColor, "32", s) }

// Red wraps s in red (stdout).
func Red(s string) string { return ansi(stdoutColor, "31", s) }

// OKTag returns a green check mark for stderr lines.
func OKTag() string { return ansi(stderrColor, "32", "✓") }

// FailTag returns a red cross for stderr lines.
func FailTag() string { return ansi(stderrColor, "31", "✗") }

// Warn prints a warning to stderr.
func Warn(msg string) {
	fmt.Fprintf(writer, "%s %s\n", ansi(stderrColor, "33", "Warning:"), msg)
}

// Warnf prints a formatted warning to stderr.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// Error prints an error to stderr.
func Error(msg string) {
	fmt.Fprintf(writer, "%s %s\n", ansi(stderrColor, "31", "Error:"), msg)
}

// Info prints a plain line to stderr.
func Info(msg string) {
	fmt.Fprintln(writer, msg)
}

// Infof prints a formatted plain line to stderr.
func Infof(format string, args ...any) {
	fmt.Fprintf(writer, format+"\n", args...)
}
