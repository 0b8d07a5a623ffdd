package engine

import (
	"context"
	"time"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/token"
)

// Delegate narrows a principal's authority onto an agent. The granting
// token must be a valid access or delegation token, and the requested
// scopes must be a subset of the scopes it carries; delegation never
// widens authority. The returned delegation token names the agent and
// expires no later than the granting token.
func (e *Engine) Delegate(ctx context.Context, grantingToken, agentID string, scopes []string) (string, error) {
	if agentID == "" {
		return "", delegate.ErrInvalidRequest("agent ID is required")
	}
	if len(scopes) == 0 {
		return "", delegate.ErrInvalidScope("at least one scope is required")
	}

	granting, err := e.codec.Parse(ctx, grantingToken)
	if err != nil {
		return "", err
	}

	if granting.Type != token.TypeAccess && granting.Type != token.TypeDelegation {
		return "", delegate.ErrWrongTokenType("delegation requires an access or delegation token")
	}

	if !token.SubsetOf(scopes, granting.Scopes) {
		return "", delegate.ErrInvalidScope("requested scope exceeds the granting token")
	}

	now := e.clock.Now()
	expiresAt := now.Add(time.Duration(e.config.DelegationTokenTTL) * time.Second)
	if !granting.ExpiresAt.IsZero() && granting.ExpiresAt.Before(expiresAt) {
		expiresAt = granting.ExpiresAt
	}

	delegationToken, err := e.codec.Issue(ctx, &token.Claims{
		Type:      token.TypeDelegation,
		Principal: granting.Principal,
		AgentID:   agentID,
		Scopes:    scopes,
		Issuer:    e.config.Issuer,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", delegate.ErrServerError("failed to issue delegation token")
	}

	e.auditor.LogDelegationIssued(granting.Principal, agentID, token.JoinScopes(scopes))
	if e.instrumentation != nil {
		e.instrumentation.Metrics().DelegationsIssued.Add(ctx, 1)
		e.instrumentation.Metrics().RecordTokenIssued(ctx, token.TypeDelegation)
	}

	return delegationToken, nil
}

// IssueCredential re-expresses a delegation token as a verifiable
// credential that agents can present to offline verifiers. Requires a
// credential codec to be wired via SetCredentialCodec.
func (e *Engine) IssueCredential(ctx context.Context, delegationToken string) (string, error) {
	if e.credentialCodec == nil {
		return "", delegate.ErrServerError("no credential codec configured")
	}

	claims, err := e.codec.Parse(ctx, delegationToken)
	if err != nil {
		return "", err
	}
	if claims.Type != token.TypeDelegation {
		return "", delegate.ErrWrongTokenType("credentials can only be issued from delegation tokens")
	}

	credential, err := e.credentialCodec.Issue(ctx, &token.Claims{
		Type:      token.TypeCredential,
		Principal: claims.Principal,
		AgentID:   claims.AgentID,
		Scopes:    claims.Scopes,
		Issuer:    e.config.Issuer,
		IssuedAt:  e.clock.Now(),
		ExpiresAt: claims.ExpiresAt,
	})
	if err != nil {
		return "", delegate.ErrServerError("failed to issue credential")
	}

	e.auditor.LogTokenIssued(claims.Principal, "", token.TypeCredential, token.JoinScopes(claims.Scopes))
	if e.instrumentation != nil {
		e.instrumentation.Metrics().CredentialsIssued.Add(ctx, 1)
		e.instrumentation.Metrics().RecordTokenIssued(ctx, token.TypeCredential)
	}

	return credential, nil
}
