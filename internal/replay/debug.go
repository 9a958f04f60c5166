package replay

import (
	"log"

	"github.com/banshee-data/tldetector/internal/monitoring"
)

var (
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the replay logging streams. Replay has no
// actionable warnings of its own; errors are returned to the caller.
func SetLogWriters(w monitoring.LogWriters) {
	diagLogger = monitoring.NewStreamLogger("[replay] ", w.Diag)
	traceLogger = monitoring.NewStreamLogger("[replay] ", w.Trace)
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
