package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "default config", config: DefaultConfig()},
		{
			name: "custom config json",
			config: Config{
				Level:     LevelDebug,
				Format:    FormatJSON,
				Output:    &bytes.Buffer{},
				AddSource: true,
			},
		},
		{
			name:   "nil output falls back to stderr",
			config: Config{Level: LevelWarn, Format: FormatText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.config)
			if logger == nil || logger.slog == nil {
				t.Fatal("expected logger, got nil")
			}
			if !logger.Enabled(context.Background(), tt.config.Level) {
				t.Errorf("expected level %v to be enabled", tt.config.Level)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.WithRun("run-1").WithStep("css-compile:[main.css]").WithTool("css").Info("executed", "duration_ms", 12)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log entry: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "executed" {
		t.Errorf("msg = %v, want executed", entry["msg"])
	}
	if entry["step"] != "css-compile:[main.css]" {
		t.Errorf("step = %v", entry["step"])
	}
	if entry["run_id"] != "run-1" || entry["tool"] != "css" {
		t.Errorf("run_id = %v, tool = %v", entry["run_id"], entry["tool"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN should be filtered: %s", out)
	}
	if !strings.Contains(out, "visible warn") {
		t.Errorf("expected warn message in output: %s", out)
	}
	if logger.Enabled(context.Background(), LevelInfo) {
		t.Error("INFO should not be enabled at WARN level")
	}
}

func TestWithErrorBuildError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	err := errors.Wrap(errors.ErrCodeHashStoreMalformed, "malformed hash store", fmt.Errorf("duplicate key")).
		WithSuggestion("delete the hash store to force a rebuild")
	logger.WithError(fmt.Errorf("load: %w", err)).Warn("ignoring hash store")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log entry: %v", err)
	}
	if entry["error_code"] != "FORMAT-002" {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["cause"] != "duplicate key" {
		t.Errorf("cause = %v", entry["cause"])
	}
}

func TestWithErrorPlainAndNil(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
	logger.WithError(fmt.Errorf("plain failure")).Error("failed")
	if !strings.Contains(buf.String(), "plain failure") {
		t.Errorf("expected plain error text, got %s", buf.String())
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	tests := []struct {
		in        string
		wantLevel Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.wantLevel {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.wantLevel)
		}
	}

	if ParseFormat("JSON") != FormatJSON {
		t.Error("ParseFormat(JSON) should be FormatJSON")
	}
	if ParseFormat("console") != FormatText {
		t.Error("unknown formats should fall back to text")
	}
	if FormatJSON.String() != "json" || FormatText.String() != "text" {
		t.Error("unexpected format strings")
	}
}

func TestDefaultLogger(t *testing.T) {
	custom := Discard()
	SetDefaultLogger(custom)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	if DefaultLogger() != custom {
		t.Error("DefaultLogger should return the configured logger")
	}

	SetDefaultLogger(nil)
	if DefaultLogger() == nil || DefaultLogger() == custom {
		t.Error("clearing the default should fall back to a fresh logger")
	}
}
