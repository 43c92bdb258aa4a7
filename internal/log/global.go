package log

import "sync/atomic"

// current is the logger handed to components built without WithLogger
// options: the gateway, session manager, storage, cache and config loader.
var current atomic.Pointer[Logger]

// SetDefaultLogger installs logger for components created afterwards and
// returns the one it replaces. Passing nil restores the built-in default.
// Each schoolctl invocation installs the logger of its profile.
func SetDefaultLogger(logger *Logger) *Logger {
	return current.Swap(logger)
}

// DefaultLogger returns the installed logger, creating a warn-level text
// logger on stderr the first time none is installed.
func DefaultLogger() *Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := Default()
	if current.CompareAndSwap(nil, l) {
		return l
	}
	return current.Load()
}
