package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Debug("test", "debug message should be suppressed")
	Info("test", "info message should appear")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Errorf("expected debug message to be filtered, got output: %s", out)
	}
	if !strings.Contains(out, "info message should appear") {
		t.Errorf("expected info message in output, got: %s", out)
	}
}

func TestSubsystemAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Info("catalog", "discovered %d types", 3)

	out := buf.String()
	if !strings.Contains(out, "subsystem=catalog") {
		t.Errorf("expected subsystem attribute in output, got: %s", out)
	}
	if !strings.Contains(out, "discovered 3 types") {
		t.Errorf("expected formatted message in output, got: %s", out)
	}
}

func TestErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("supervisor", errTest, "spawn failed for %s", "inst-1")

	out := buf.String()
	if !strings.Contains(out, "error=") {
		t.Errorf("expected error attribute in output, got: %s", out)
	}
}

var errTest = errFixed("boom")

type errFixed string

func (e errFixed) Error() string { return string(e) }
