// Package indicator is the miner's status side-channel: a blink pattern on
// connect and a searching flag around each proof-of-work search.
package indicator

import (
	"go.uber.org/zap"
)

// BlinkClientConnect is the blink count for a fresh coordinator connection.
const BlinkClientConnect = 3

// Indicator receives status signals from all workers concurrently.
type Indicator interface {
	Blink(count int, id string)
	Searching(core int, on bool)
}

// Nop discards every signal.
type Nop struct{}

func (Nop) Blink(int, string)   {}
func (Nop) Searching(int, bool) {}

// Logger reports signals as debug log entries.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a log-backed indicator.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Blink(count int, id string) {
	l.logger.Debug("indicator blink", zap.Int("count", count), zap.String("id", id))
}

func (l *Logger) Searching(core int, on bool) {
	l.logger.Debug("indicator searching", zap.Int("core", core), zap.Bool("on", on))
}
