// Package security provides cross-cutting security features for the
// delegation engine: audit logging with PII protection, rate limiting,
// clock-skew handling, and encryption at rest.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Principal
// identifiers are hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Principal string
	ClientID  string
	AgentID   string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"principal_hash", hashForLogging(event.Principal),
		"client_id", event.ClientID,
		"agent_id", event.AgentID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogGrantStarted logs the start of an authorization grant attempt
func (a *Auditor) LogGrantStarted(clientID, scope string) {
	a.LogEvent(Event{
		Type:     "grant_started",
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(principal, clientID, reason string) {
	a.LogEvent(Event{
		Type:      "auth_failure",
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogConsentDecision logs the principal's consent decision for a grant
func (a *Auditor) LogConsentDecision(principal, clientID string, approved bool) {
	a.LogEvent(Event{
		Type:      "consent_decision",
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"approved": approved,
		},
	})
}

// LogCodeIssued logs the minting of a single-use authorization code
func (a *Auditor) LogCodeIssued(principal, clientID, scope string) {
	a.LogEvent(Event{
		Type:      "code_issued",
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenIssued logs when a token is minted
func (a *Auditor) LogTokenIssued(principal, clientID, tokenType, scope string) {
	a.LogEvent(Event{
		Type:      "token_issued",
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"token_type": tokenType,
			"scope":      scope,
		},
	})
}

// LogDelegationIssued logs when a delegation token or credential is minted
// for an agent acting on a principal's behalf
func (a *Auditor) LogDelegationIssued(principal, agentID, scope string) {
	a.LogEvent(Event{
		Type:      "delegation_issued",
		Principal: principal,
		AgentID:   agentID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogRedemptionFailure logs a failed authorization code redemption
func (a *Auditor) LogRedemptionFailure(clientID, reason string) {
	a.LogEvent(Event{
		Type:     "redemption_failure",
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogVerificationFailure logs a rejected token presentation
func (a *Auditor) LogVerificationFailure(reason, requiredScope, expectedType string) {
	a.LogEvent(Event{
		Type: "verification_failure",
		Details: map[string]any{
			"reason":         reason,
			"required_scope": requiredScope,
			"expected_type":  expectedType,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
