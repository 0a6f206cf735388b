// v0
// internal/app/logger_test.go
package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLineRingKeepsNewest(t *testing.T) {
	r := newLineRing(3)
	for _, s := range []string{"a\n", "b\n", "c\n", "d\n"} {
		if _, err := r.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got := strings.Join(r.Lines(), ",")
	if got != "b,c,d" {
		t.Fatalf("expected b,c,d, got %s", got)
	}

	short := newLineRing(5)
	_, _ = short.Write([]byte("only\n"))
	if lines := short.Lines(); len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestTeeLoggerFansOut(t *testing.T) {
	var stdout, file bytes.Buffer
	tail := newLineRing(10)
	logger := newLogger(&stdout, &file, tail).With(slog.String("component", "test"))
	logger.Info("mqtt_connected", slog.Int("topics", 3))
	logger.Debug("hidden")

	for name, out := range map[string]string{"stdout": stdout.String(), "file": file.String()} {
		if !strings.Contains(out, "msg=mqtt_connected") || !strings.Contains(out, "component=test") {
			t.Fatalf("%s missing record: %q", name, out)
		}
		if strings.Contains(out, "hidden") {
			t.Fatalf("%s must not contain debug records", name)
		}
	}
	lines := tail.Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "topics=3") {
		t.Fatalf("unexpected tail %v", lines)
	}
}
