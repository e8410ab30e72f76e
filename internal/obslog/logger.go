// Package obslog backs every structured log record across the pipeline
// runtime with go.uber.org/zap, giving every component the same
// leveled, field-structured logging surface.
package obslog

import "go.uber.org/zap"

// New builds a production zap logger. Callers that need a silent logger for
// tests should use zap.NewNop() directly rather than going through here.
func New() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder config; fall
		// back to a minimal logger rather than letting bootstrap panic.
		logger = zap.NewExample()
	}
	return logger
}

// Nop returns a logger that discards everything, for unit tests that do not
// want production log noise.
func Nop() *zap.Logger { return zap.NewNop() }
