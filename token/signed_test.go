package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentauth/delegate"
)

var testKey = []byte("test-signing-key-for-hmac-sha256")

func testClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func TestSignedCodecRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	codec, err := NewSignedCodec(testKey, testClock(now))
	if err != nil {
		t.Fatalf("NewSignedCodec: %v", err)
	}

	issued := &Claims{
		Type:      TypeDelegation,
		Principal: "alice",
		AgentID:   "agent-1",
		Scopes:    []string{"calendar.read", "mail.read"},
		Issuer:    "https://auth.example.com",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	tokenString, err := codec.Issue(context.Background(), issued)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parsed, err := codec.Parse(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.Type != issued.Type {
		t.Errorf("Type = %q, want %q", parsed.Type, issued.Type)
	}
	if parsed.Principal != issued.Principal {
		t.Errorf("Principal = %q, want %q", parsed.Principal, issued.Principal)
	}
	if parsed.AgentID != issued.AgentID {
		t.Errorf("AgentID = %q, want %q", parsed.AgentID, issued.AgentID)
	}
	if parsed.Issuer != issued.Issuer {
		t.Errorf("Issuer = %q, want %q", parsed.Issuer, issued.Issuer)
	}
	if !parsed.HasAllScopes(issued.Scopes) {
		t.Errorf("Scopes = %v, want %v", parsed.Scopes, issued.Scopes)
	}
	if !parsed.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", parsed.ExpiresAt, issued.ExpiresAt)
	}
}

func TestSignedCodecIssueValidation(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	codec, _ := NewSignedCodec(testKey, testClock(now))

	tests := []struct {
		name   string
		claims *Claims
	}{
		{name: "nil claims", claims: nil},
		{
			name:   "missing type",
			claims: &Claims{Principal: "alice", ExpiresAt: now.Add(time.Hour)},
		},
		{
			name:   "missing expiry",
			claims: &Claims{Type: TypeAccess, Principal: "alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Issue(context.Background(), tt.claims); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSignedCodecTamperedToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	codec, _ := NewSignedCodec(testKey, testClock(now))

	first, err := codec.Issue(context.Background(), &Claims{
		Type:      TypeAccess,
		Principal: "alice",
		Scopes:    []string{"calendar.read"},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := codec.Issue(context.Background(), &Claims{
		Type:      TypeAccess,
		Principal: "mallory",
		Scopes:    []string{"calendar.read", "calendar.write"},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Splice mallory's claims onto alice's signature
	firstParts := strings.Split(first, ".")
	secondParts := strings.Split(second, ".")
	forged := secondParts[0] + "." + secondParts[1] + "." + firstParts[2]

	_, err = codec.Parse(context.Background(), forged)
	if !errors.Is(err, delegate.ErrInvalidSignature("")) {
		t.Errorf("expected invalid_signature, got %v", err)
	}
}

func TestSignedCodecWrongKey(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	issuing, _ := NewSignedCodec(testKey, testClock(now))
	verifying, _ := NewSignedCodec([]byte("a-completely-different-key"), testClock(now))

	tokenString, err := issuing.Issue(context.Background(), &Claims{
		Type:      TypeAccess,
		Principal: "alice",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = verifying.Parse(context.Background(), tokenString)
	if !errors.Is(err, delegate.ErrInvalidSignature("")) {
		t.Errorf("expected invalid_signature, got %v", err)
	}
}

func TestSignedCodecMalformedToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	codec, _ := NewSignedCodec(testKey, testClock(now))

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := codec.Parse(context.Background(), input); !errors.Is(err, delegate.ErrMalformedToken("")) {
			t.Errorf("Parse(%q): expected malformed_token, got %v", input, err)
		}
	}
}

func TestSignedCodecExpiry(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	current := now
	codec, _ := NewSignedCodec(testKey, ClockFunc(func() time.Time { return current }))

	tokenString, err := codec.Issue(context.Background(), &Claims{
		Type:      TypeAccess,
		Principal: "alice",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Valid before expiry
	if _, err := codec.Parse(context.Background(), tokenString); err != nil {
		t.Fatalf("Parse before expiry: %v", err)
	}

	// Expired after the clock advances past the TTL
	current = now.Add(time.Hour + time.Second)
	_, err = codec.Parse(context.Background(), tokenString)
	if !errors.Is(err, delegate.ErrTokenExpired("")) {
		t.Errorf("expected token_expired, got %v", err)
	}
}

func TestSignedCodecLeeway(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	current := now
	codec, _ := NewSignedCodec(testKey, ClockFunc(func() time.Time { return current }))
	codec.SetLeeway(5 * time.Second)

	tokenString, _ := codec.Issue(context.Background(), &Claims{
		Type:      TypeAccess,
		Principal: "alice",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})

	// Just past expiry but inside the grace period
	current = now.Add(time.Hour + 3*time.Second)
	if _, err := codec.Parse(context.Background(), tokenString); err != nil {
		t.Errorf("expected token inside leeway to verify, got %v", err)
	}

	// Beyond the grace period
	current = now.Add(time.Hour + 10*time.Second)
	if _, err := codec.Parse(context.Background(), tokenString); !errors.Is(err, delegate.ErrTokenExpired("")) {
		t.Errorf("expected token_expired beyond leeway, got %v", err)
	}
}

func TestSignedCodecDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	codec, _ := NewSignedCodec(testKey, testClock(now))

	claims := &Claims{
		Type:      TypeAccess,
		Principal: "alice",
		Scopes:    []string{"calendar.read"},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	first, err := codec.Issue(context.Background(), claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := codec.Issue(context.Background(), claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if first != second {
		t.Error("identical claims and key must produce identical tokens")
	}
}
