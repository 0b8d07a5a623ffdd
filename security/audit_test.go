package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAuditorHashesPrincipal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	auditor := NewAuditor(logger, true)

	auditor.LogEvent(Event{
		Type:      "token_issued",
		Principal: "alice@example.com",
		ClientID:  "client-1",
	})

	out := buf.String()
	if !strings.Contains(out, "security_audit") {
		t.Fatalf("expected audit entry, got %q", out)
	}
	if strings.Contains(out, "alice@example.com") {
		t.Error("principal identifier must not appear in plaintext")
	}
	if !strings.Contains(out, "client-1") {
		t.Error("client ID should be logged as-is")
	}
}

func TestAuditorDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	auditor := NewAuditor(logger, false)

	auditor.LogEvent(Event{Type: "token_issued", Principal: "alice"})
	auditor.LogGrantStarted("client-1", "calendar.read")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor must not log, got %q", buf.String())
	}
}

func TestHashForLoggingIsStableAndShort(t *testing.T) {
	first := hashForLogging("alice")
	second := hashForLogging("alice")
	if first != second {
		t.Error("hash must be stable for the same input")
	}
	if len(first) != 16 {
		t.Errorf("hash length = %d, want 16", len(first))
	}
	if hashForLogging("bob") == first {
		t.Error("different inputs must hash differently")
	}
}
