// v0
// cmd/fuzzydash/main_test.go
package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"nrgchamp/fuzzydash/internal/config"
)

func TestCheckReportsResolvedSetup(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	cfg := config.Default()
	if code := check(cfg, logger); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	for _, want := range []string{"msg=config_check_ok", "curves_path=builtin", "archive_topic=disabled", "rules=25"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in %s", want, out.String())
		}
	}

	out.Reset()
	cfg.CurvesPath = filepath.Join(t.TempDir(), "missing.yaml")
	if code := check(cfg, logger); code != 1 {
		t.Fatalf("expected exit 1 for a missing curves file, got %d", code)
	}
	if !strings.Contains(out.String(), "msg=config_check_failed") {
		t.Fatalf("expected failure record, got %s", out.String())
	}
}
