package logging

import (
	"github.com/sirupsen/logrus"
)

// BadgerLogger adapts logrus to BadgerDB's logger interface
type BadgerLogger struct {
	logger *logrus.Logger
}

// NewBadgerLogger wraps logger for badger.Options.WithLogger
func NewBadgerLogger(logger *logrus.Logger) *BadgerLogger {
	return &BadgerLogger{logger: logger}
}

func (l *BadgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *BadgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *BadgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *BadgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Tracef("[BadgerDB] "+format, args...)
}

// PebbleLogger adapts logrus to pebble's Logger interface
type PebbleLogger struct {
	logger *logrus.Logger
}

// NewPebbleLogger wraps logger for pebble.Options.Logger
func NewPebbleLogger(logger *logrus.Logger) *PebbleLogger {
	return &PebbleLogger{logger: logger}
}

func (l *PebbleLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[Pebble] "+format, args...)
}

func (l *PebbleLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[Pebble] "+format, args...)
}

func (l *PebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf("[Pebble] "+format, args...)
}
