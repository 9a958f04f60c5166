package monitoring

import (
	"io"
	"log"
	"strings"
)

// Logf is the package-level lifecycle logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or
// mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the io.Writers for each logging stream. A nil writer
// disables that stream.
//
//   - Ops: actionable warnings, errors, lifecycle events
//   - Diag: day-to-day diagnostics and tuning context
//   - Trace: per-frame telemetry (high volume)
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// WritersForLevel routes the streams enabled by level to w. Levels are
// cumulative: "ops" < "diag" < "trace". An unknown level enables ops only.
func WritersForLevel(level string, w io.Writer) LogWriters {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LogWriters{Ops: w, Diag: w, Trace: w}
	case "diag":
		return LogWriters{Ops: w, Diag: w}
	case "off", "none":
		return LogWriters{}
	default:
		return LogWriters{Ops: w}
	}
}

// NewStreamLogger creates a *log.Logger for w with the given prefix, or
// returns nil if w is nil.
func NewStreamLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
