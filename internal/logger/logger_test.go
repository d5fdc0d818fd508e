package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("request_id", "abc").Msg("created")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (debug suppressed)", len(lines))
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("production output is not json: %v", err)
	}
	if entry["service"] != "dispatch-core" || entry["request_id"] != "abc" || entry["message"] != "created" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWithWriterDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)
	log.Debug().Msg("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing in development output: %q", buf.String())
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("development output should be console formatted")
	}
}
