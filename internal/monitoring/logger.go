package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Tracef receives high-frequency per-frame telemetry. It is a no-op until
// SetTraceLogger installs a destination.
var Tracef func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetTraceLogger replaces the per-frame trace logger. Passing nil disables it.
func SetTraceLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Tracef = func(string, ...interface{}) {}
		return
	}
	Tracef = f
}
