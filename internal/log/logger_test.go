package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "debug config", config: DebugConfig()},
		{
			name: "custom json",
			config: Config{
				Level:  LevelInfo,
				Format: FormatJSON,
				Output: OutputStderr(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.config)
			if logger == nil || logger.slog == nil {
				t.Fatal("expected logger, got nil")
			}
			if logger.Config().Level != tt.config.Level {
				t.Errorf("expected level %v, got %v", tt.config.Level, logger.Config().Level)
			}
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Output: NewOutput(&buf)})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() > 0 {
		t.Errorf("expected no output for debug/info at warn level, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if buf.Len() == 0 {
		t.Error("expected output for warn message")
	}
}

func TestJSONFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      NewOutput(&buf),
		ServiceName: "schoolctl",
	})

	logger.Info("request completed", "status", 200)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, buf.String())
	}
	if entry["msg"] != "request completed" {
		t.Errorf("expected msg 'request completed', got %v", entry["msg"])
	}
	if entry["service"] != "schoolctl" {
		t.Errorf("expected service 'schoolctl', got %v", entry["service"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: NewOutput(&buf)})

	logger.Info("role selected", "role", "TEACHER")

	output := buf.String()
	if !strings.Contains(output, "role selected") || !strings.Contains(output, "role=TEACHER") {
		t.Errorf("unexpected text output: %s", output)
	}
}

func TestWithErrorCoded(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&buf)})

	err := errors.Wrap(errors.ErrCodeStorageRead, "read failed", fmt.Errorf("disk gone")).
		WithSuggestion("check permissions")
	logger.WithError(err).Error("restore failed")

	var entry map[string]interface{}
	if jsonErr := json.Unmarshal(buf.Bytes(), &entry); jsonErr != nil {
		t.Fatalf("failed to parse JSON output: %v", jsonErr)
	}
	if entry["error_code"] != "STORAGE-001" {
		t.Errorf("expected error_code STORAGE-001, got %v", entry["error_code"])
	}
	if entry["cause"] != "disk gone" {
		t.Errorf("expected cause 'disk gone', got %v", entry["cause"])
	}
}

func TestWithErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&buf)})

	logger.LogErrorContext(context.Background(), "call failed", fmt.Errorf("boom"))

	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("expected plain error field, got: %s", buf.String())
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Discard()
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelWarn, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("json") != FormatJSON {
		t.Error("expected json format")
	}
	if ParseFormat("console") != FormatText {
		t.Error("expected text fallback")
	}
}

func TestSensitiveAttributesAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.Format = FormatJSON
	cfg.Output = NewOutput(&buf)
	logger := New(cfg)

	logger.WithGroup("request").Debug("login", "Authorization", "Bearer abc", "identifier", "A001", "password", "secret")

	line := buf.String()
	if strings.Contains(line, "secret") || strings.Contains(line, "Bearer abc") {
		t.Fatalf("credentials leaked: %s", line)
	}
	if !strings.Contains(line, `"identifier":"A001"`) {
		t.Errorf("expected identifier to be kept: %s", line)
	}
	if strings.Count(line, Redacted) != 2 {
		t.Errorf("expected two redacted values: %s", line)
	}
}
