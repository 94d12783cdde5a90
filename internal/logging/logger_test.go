package logging_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zxing/internal/config"
	"zxing/internal/logging"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestConsoleLoggerRendersComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "supervisor").Info("decoder server ready",
		logging.Int(logging.FieldPort, 4123),
		logging.String("binary", "/opt/zxing bin/zxingd"),
	)

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO supervisor: decoder server ready") {
		t.Fatalf("expected component prefix, got %q", content)
	}
	if !strings.Contains(content, "port=4123") {
		t.Fatalf("expected port attribute, got %q", content)
	}
	if !strings.Contains(content, `binary="/opt/zxing bin/zxingd"`) {
		t.Fatalf("expected quoted value with spaces, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("probe")

	if content := readLog(t, logPath); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerInjectsSessionID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	base, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger := logging.NewComponentLogger(logging.WithSessionID(base, "abc-123"), "session")

	logger.Warn("decode failed", logging.Error(errors.New("boom")))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldSessionID] != "abc-123" {
		t.Fatalf("expected session id, got %#v", record)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %#v", record["level"])
	}
	if record["error"] != "boom" {
		t.Fatalf("expected error attribute, got %#v", record["error"])
	}
	if record[logging.FieldComponent] != "session" {
		t.Fatalf("expected component attribute, got %#v", record)
	}
	ts, ok := record["ts"].(string)
	if !ok || !strings.HasSuffix(ts, "Z") || !strings.Contains(ts, ".") {
		t.Fatalf("expected UTC millisecond ts, got %#v", record["ts"])
	}
}

func TestWithSessionIDIgnoresEmpty(t *testing.T) {
	base := logging.NewNop()
	if logging.WithSessionID(base, "") != base {
		t.Fatal("expected empty session id to return the logger unchanged")
	}
	if logging.WithSessionID(nil, "abc") == nil {
		t.Fatal("expected a usable logger for nil input")
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "filtered.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.WarnWithContext(logger, "visible", "probe_failed")

	content := readLog(t, logPath)
	if strings.Contains(content, "hidden") {
		t.Fatalf("expected info to be filtered, got %q", content)
	}
	for _, want := range []string{"visible", "event_type=probe_failed", "error_hint=", "impact="} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("ignored")
	if logger.Enabled(t.Context(), 0) {
		t.Fatal("expected nop logger to be disabled")
	}
}
