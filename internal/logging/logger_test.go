package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNilLoggerIsSafe(t *testing.T) {
	prev := Logger
	Logger = nil
	defer func() { Logger = prev }()

	Info("info")
	Debug("debug")
	Warn("warn")
	Error("error")
	if WithPrefix("x") == nil {
		t.Error("WithPrefix should never return nil")
	}
}

func TestSetOutputLevels(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	var buf bytes.Buffer
	SetOutput(&buf, log.InfoLevel)

	Debug("hidden debug")
	Info("search complete", "results", 12)

	out := buf.String()
	if strings.Contains(out, "hidden debug") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "search complete") || !strings.Contains(out, "results=12") {
		t.Errorf("info line missing or malformed: %q", out)
	}
}

func TestInitCreatesLogFile(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info("hello from test")
	Close()

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "rabbitbrain-*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing message: %q", string(data))
	}
}
