// Package log is the process-wide logger. Packet output goes to stdout, so
// log lines always go to stderr and, optionally, a rotating file.
package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
	output *MultiWriter
)

func init() {
	logger, output = newDefault()
}

// GetLogger returns the current logger. Before Init it logs at info level
// to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger according to cfg.
func Init(cfg *LoggerConfig) error {
	l, w, err := initByConfig(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := output
	logger, output = l, w
	mu.Unlock()

	return prev.Close()
}

// Close releases the file appender, if any.
func Close() error {
	mu.RLock()
	defer mu.RUnlock()
	return output.Close()
}
