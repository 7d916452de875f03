package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	rw, err := OpenRotating(path, 16)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("0123456789abcdefXYZ")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected backup file after rotation: %v", err)
	}

	if _, err := rw.Write([]byte("after")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "after" {
		t.Fatalf("expected fresh log to hold only new writes, got %q", data)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("cycle", "abc").Msg("shown")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", out, err)
	}
	if entry["message"] != "shown" || entry["cycle"] != "abc" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected timestamp field in %v", entry)
	}
}

func TestNew_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "loud")
	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	if strings.Contains(buf.String(), `"message":"debug"`) {
		t.Fatalf("debug should be filtered at default info level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Fatalf("expected info line, got %s", buf.String())
	}
}
