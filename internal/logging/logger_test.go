package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "json", "info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "job-1").Msg("polling started")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "cloudtran" || entry["job_id"] != "job-1" || entry["message"] != "polling started" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "console", "DEBUG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug().Msg("status check")
	if !strings.Contains(buf.String(), "status check") {
		t.Errorf("expected message in console output, got %q", buf.String())
	}
}

func TestNewWithWriter_Errors(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "json", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewWithWriter(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Error("expected error for unknown format")
	}
}
