package logging

import "go.uber.org/zap"

// NewNop returns a Logger that discards everything. It is the default for
// components constructed without an explicit logger, and useful in tests.
func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop()}
}
