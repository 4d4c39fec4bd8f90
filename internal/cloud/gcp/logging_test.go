package gcp

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func TestFallbackLogger_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFallbackLogger(&buf, "run-1")

	fl.Info("session starting", map[string]interface{}{"session": 1})
	fl.Error("engine failed", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var entry fallbackEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if entry.Severity != "INFO" || entry.Message != "session starting" || entry.RunID != "run-1" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["session"] != float64(1) {
		t.Errorf("fields not carried: %v", entry.Fields)
	}

	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("second line is not JSON: %v", err)
	}
	if entry.Severity != "ERROR" {
		t.Errorf("unexpected severity: %s", entry.Severity)
	}
}

func TestSinkWriter_BridgesStdlibLogger(t *testing.T) {
	var buf bytes.Buffer
	sink := NewFallbackLogger(&buf, "run-2")
	logger := log.New(NewSinkWriter(sink), "", 0)

	logger.Println("action 3: write_file success=true")

	var entry fallbackEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("bridged line is not JSON: %v", err)
	}
	if entry.Message != "action 3: write_file success=true" {
		t.Errorf("trailing newline not stripped: %q", entry.Message)
	}
}

func TestSecureSink_SanitizesMessagesAndFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSecureSink(NewFallbackLogger(&buf, "run-3"))

	sink.Info("auth header was Bearer abc.def.secret-token", map[string]interface{}{
		"detail": "api_key=sk-live-0123456789abcdef",
		"count":  7,
	})

	out := buf.String()
	if strings.Contains(out, "abc.def.secret-token") {
		t.Error("bearer token leaked into log output")
	}
	if strings.Contains(out, "sk-live-0123456789abcdef") {
		t.Error("api key leaked into log field")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("no redaction marker in output: %s", out)
	}
	if !strings.Contains(out, `"count":7`) {
		t.Errorf("non-string field dropped: %s", out)
	}
}
