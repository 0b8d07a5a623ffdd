package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/instrumentation"
	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/token"
)

// Verifier checks presented tokens against a required type and scope.
// It only needs a codec, so resource servers can verify tokens offline
// without reaching the engine that issued them.
//
// Verification separates authentication from authorization: a token that
// fails to decode, verify, or is expired yields a 401-class error
// (malformed_token, invalid_signature, token_expired), while a valid token
// of the wrong type or missing a scope yields a 403-class error
// (wrong_token_type, insufficient_scope).
type Verifier struct {
	codec           token.Codec
	auditor         *security.Auditor
	instrumentation *instrumentation.Instrumentation
}

// NewVerifier creates a verifier over the given codec
func NewVerifier(codec token.Codec) (*Verifier, error) {
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	return &Verifier{
		codec:   codec,
		auditor: security.NewAuditor(slog.Default(), true),
	}, nil
}

// SetLogger replaces the logger behind the verifier's audit trail
func (v *Verifier) SetLogger(logger *slog.Logger) {
	if logger != nil {
		v.auditor = security.NewAuditor(logger, true)
	}
}

// SetInstrumentation wires OpenTelemetry metrics into the verifier
func (v *Verifier) SetInstrumentation(inst *instrumentation.Instrumentation) {
	v.instrumentation = inst
}

// Verify checks a presented token. The token must decode and verify, be
// unexpired, carry the required type, and include every required scope.
// Returns the token claims on success.
func (v *Verifier) Verify(ctx context.Context, tokenString, requiredType string, requiredScopes ...string) (*token.Claims, error) {
	claims, err := v.codec.Parse(ctx, tokenString)
	if err != nil {
		v.record(ctx, delegate.ErrorCode(err), requiredType, requiredScopes)
		return nil, err
	}

	if requiredType != "" && claims.Type != requiredType {
		v.record(ctx, delegate.ErrorCodeWrongTokenType, requiredType, requiredScopes)
		return nil, delegate.ErrWrongTokenType("token type does not match the verification context")
	}

	for _, scope := range requiredScopes {
		if !claims.HasScope(scope) {
			v.record(ctx, delegate.ErrorCodeInsufficientScope, requiredType, requiredScopes)
			return nil, delegate.ErrInsufficientScope("token does not carry the required scope")
		}
	}

	if v.instrumentation != nil {
		v.instrumentation.Metrics().RecordVerification(ctx, "success")
	}
	return claims, nil
}

func (v *Verifier) record(ctx context.Context, outcome, requiredType string, requiredScopes []string) {
	v.auditor.LogVerificationFailure(outcome, token.JoinScopes(requiredScopes), requiredType)
	if v.instrumentation != nil {
		if outcome == "" {
			outcome = "error"
		}
		v.instrumentation.Metrics().RecordVerification(ctx, outcome)
	}
}

// Verify checks a presented token against the engine's primary codec.
// See Verifier.Verify for the verification rules.
func (e *Engine) Verify(ctx context.Context, tokenString, requiredType string, requiredScopes ...string) (*token.Claims, error) {
	v := &Verifier{
		codec:           e.codec,
		auditor:         e.auditor,
		instrumentation: e.instrumentation,
	}
	return v.Verify(ctx, tokenString, requiredType, requiredScopes...)
}
