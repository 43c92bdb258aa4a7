package log

import (
	"testing"
)

func TestSetDefaultLogger(t *testing.T) {
	previous := SetDefaultLogger(nil)
	defer SetDefaultLogger(previous)

	custom := New(DebugConfig())
	if replaced := SetDefaultLogger(custom); replaced != nil {
		t.Errorf("expected no installed logger, got %v", replaced)
	}
	if DefaultLogger() != custom {
		t.Error("DefaultLogger did not return the installed logger")
	}
	if replaced := SetDefaultLogger(nil); replaced != custom {
		t.Error("SetDefaultLogger should return the logger it replaces")
	}
}

func TestDefaultLoggerLazyInit(t *testing.T) {
	previous := SetDefaultLogger(nil)
	defer SetDefaultLogger(previous)

	logger := DefaultLogger()
	if logger == nil {
		t.Fatal("expected lazily created logger")
	}
	if logger.Config().Level != LevelWarn {
		t.Errorf("expected warn level, got %v", logger.Config().Level)
	}
	if DefaultLogger() != logger {
		t.Error("the lazily created logger should be kept")
	}
}
