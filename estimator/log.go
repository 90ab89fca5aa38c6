package estimator

import (
	"io"
	"log"
	"os"
)

const logPrefix = "[estimator] "

// ops warnings reach stderr until SetLogWriters redirects them
var (
	opsLogger   = newLogger(logPrefix, os.Stderr)
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the estimator package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger(logPrefix, ops)
	diagLogger = newLogger(logPrefix, diag)
	traceLogger = newLogger(logPrefix, trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (filter resets, malformed input).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (skipped corrections).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per cycle state and commands).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

func traceEnabled() bool {
	return traceLogger != nil
}
