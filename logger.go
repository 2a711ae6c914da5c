package stun

import "github.com/sirupsen/logrus"

// Logger is threaded through every long-lived component (Channel,
// retransmit.Transport, agent.Client, agent.Server) instead of a
// package-level logger. ChildLogger derives a logger carrying additional
// fields (e.g. the peer address) without mutating the parent.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	ChildLogger(fields map[string]interface{}) Logger
}

// logrusLogger adapts a *logrus.Entry to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger wraps l (typically logrus.StandardLogger() or a dedicated
// instance) as a Logger.
func NewLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) ChildLogger(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}

// NopLogger discards everything. Useful as a default for tests and for
// callers that have not wired a Logger.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(args ...interface{})                 {}
func (nopLogger) Debugf(format string, args ...interface{}) {}
func (nopLogger) Info(args ...interface{})                  {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Error(args ...interface{})                 {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) ChildLogger(map[string]interface{}) Logger { return nopLogger{} }
