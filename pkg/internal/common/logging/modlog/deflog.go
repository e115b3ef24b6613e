/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const moduleField = "module"

// NewDefLog returns new DefLog instance based on given module.
// Output goes to stderr so that command output on stdout stays machine readable.
func NewDefLog(module string) *DefLog {
	return NewDefLogWith(NewLogrus(), module)
}

// NewLogrus returns the logrus logger behind DefLog: RFC3339 text lines on stderr.
func NewLogrus() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	// level gating happens in ModLog, logrus lets everything through.
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})

	return logger
}

// NewDefLogWith returns a DefLog for module writing through logger. Loggers sharing one logrus
// logger share its output.
func NewDefLogWith(logger *logrus.Logger, module string) *DefLog {
	return &DefLog{logger: logger, entry: logger.WithField(moduleField, module)}
}

// DefLog is the default logger implementation built on top of logrus.
// Log Format : time=<RFC3339> level=<level> msg=<text> module=<MODULE NAME>.
type DefLog struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// Fatalf logs at fatal level followed by a call to os.Exit(1).
func (l *DefLog) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// Panicf logs at panic level followed by a call to panic().
func (l *DefLog) Panicf(format string, args ...interface{}) {
	l.entry.Panicf(format, args...)
}

// Debugf logs verbose messages.
func (l *DefLog) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Infof logs general information messages.
func (l *DefLog) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warnf logs possible errors.
func (l *DefLog) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Errorf logs errors.
func (l *DefLog) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// SetOutput sets the output destination for the logger.
func (l *DefLog) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}
