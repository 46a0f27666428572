package client

import (
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// newLeveledLogger adapts a charm logger to retryablehttp. Per-attempt
// chatter is demoted to debug so only retries show up at normal levels.
func newLeveledLogger(l *log.Logger) retryablehttp.LeveledLogger {
	return &leveledLogger{log: l}
}

type leveledLogger struct {
	log *log.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	if msg == "performing request" {
		return
	}
	l.log.Debug(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, keysAndValues...)
}
