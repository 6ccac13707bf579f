// Package util provides shared logging and traffic statistics.
package util

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/pterm/pterm"
)

var logger atomic.Pointer[pterm.Logger]

func init() {
	logger.Store(pterm.DefaultLogger.
		WithTime(true).
		WithTimeFormat("02 Jan 15:04:05").
		WithMaxWidth(1000).
		WithWriter(os.Stderr))
}

// logAt formats only when level is enabled; drop paths log per frame.
func logAt(level pterm.LogLevel, format string, args []interface{}) {
	l := logger.Load()
	if !l.CanPrint(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case pterm.LogLevelDebug:
		l.Debug(msg)
	case pterm.LogLevelWarn:
		l.Warn(msg)
	case pterm.LogLevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

func LogDebug(format string, args ...interface{})   { logAt(pterm.LogLevelDebug, format, args) }
func LogInfo(format string, args ...interface{})    { logAt(pterm.LogLevelInfo, format, args) }
func LogSuccess(format string, args ...interface{}) { logAt(pterm.LogLevelInfo, format, args) }
func LogWarning(format string, args ...interface{}) { logAt(pterm.LogLevelWarn, format, args) }
func LogError(format string, args ...interface{})   { logAt(pterm.LogLevelError, format, args) }

// EnableDebug shows debug messages from here on.
func EnableDebug() {
	logger.Store(logger.Load().WithLevel(pterm.LogLevelDebug))
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logger.Store(logger.Load().WithWriter(w))
}
