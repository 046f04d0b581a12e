package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, slog.LevelInfo, true).Debug("hidden")
	newLogger(&buf, slog.LevelInfo, true).Info("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line logged at info level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected a JSON line, got %s", out)
	}

	buf.Reset()
	newLogger(&buf, slog.LevelDebug, false).Debug("text line")
	if !strings.Contains(buf.String(), "msg=\"text line\"") {
		t.Errorf("expected a text line, got %s", buf.String())
	}
}
