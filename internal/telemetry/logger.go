package telemetry

import "log"

// Logger exposes the logging capabilities required by components that report
// free-form operational messages rather than structured events.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger. A nil logger discards output.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// StandardLogger exposes the wrapped logger.
func (l *loggerAdapter) StandardLogger() *log.Logger {
	return l.logger
}

// Discard drops every message.
var Discard Logger = LoggerFunc(func(string, ...any) {})
