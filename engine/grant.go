package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/storage"
	"github.com/agentauth/delegate/token"
)

// BeginResult is returned when an authorization attempt is opened
type BeginResult struct {
	// GrantID identifies the pending attempt through login and consent
	GrantID string

	// Scopes is the validated, normalized scope set being requested
	Scopes []string

	// ClientName is the display name of the requesting client, for
	// rendering login and consent prompts
	ClientName string
}

// AuthenticateResult is returned after a successful principal login
type AuthenticateResult struct {
	GrantID   string
	Principal string

	// SessionToken proves the principal's login for the lifetime of the
	// session; it carries no delegated scopes
	SessionToken string
}

// ConsentResult is returned when the principal approves the request
type ConsentResult struct {
	// Code is the single-use authorization code to hand to the client
	Code string

	// RedirectURI and State echo the original request so a front end can
	// construct the redirect
	RedirectURI string
	State       string
}

// Begin opens an authorization attempt for a client. The request is
// validated against the client registration; on success a grant in the
// login-pending state is persisted and its handle returned.
func (e *Engine) Begin(ctx context.Context, req *delegate.AuthorizeRequest) (*BeginResult, error) {
	client, scopes, err := e.validateAuthorizeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	grant := &storage.Grant{
		ID:          uuid.NewString(),
		State:       storage.GrantStateLoginPending,
		ClientID:    client.ClientID,
		RedirectURI: req.RedirectURI,
		Scopes:      scopes,
		ClientState: req.State,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(e.config.GrantTTL) * time.Second),
	}

	if err := e.flowStore.SaveGrant(ctx, grant); err != nil {
		return nil, delegate.ErrServerError("failed to save grant")
	}

	e.auditor.LogGrantStarted(client.ClientID, token.JoinScopes(scopes))
	if e.instrumentation != nil {
		e.instrumentation.Metrics().GrantsStarted.Add(ctx, 1)
	}

	return &BeginResult{
		GrantID:    grant.ID,
		Scopes:     scopes,
		ClientName: client.ClientName,
	}, nil
}

// Authenticate validates the principal's credentials for a pending grant.
// On success the grant advances to awaiting-consent and a session token is
// minted for the principal. A failed login leaves the grant in the
// login-pending state so the principal can retry.
func (e *Engine) Authenticate(ctx context.Context, grantID, username, password string) (*AuthenticateResult, error) {
	grant, err := e.getGrantInState(ctx, grantID, storage.GrantStateLoginPending, "grant is not awaiting login")
	if err != nil {
		return nil, err
	}

	principal, err := e.identity.CheckCredentials(ctx, username, password)
	if err != nil {
		if e.auditRateLimiter.Allow(grant.ClientID) {
			e.auditor.LogAuthFailure(username, grant.ClientID, "credential check failed")
		}
		if e.instrumentation != nil {
			e.instrumentation.Metrics().AuthFailures.Add(ctx, 1)
		}
		return nil, err
	}

	now := e.clock.Now()
	grant.Principal = principal
	grant.State = storage.GrantStateAwaitingConsent
	if err := e.flowStore.SaveGrant(ctx, grant); err != nil {
		return nil, delegate.ErrServerError("failed to update grant")
	}

	sessionToken, err := e.codec.Issue(ctx, &token.Claims{
		Type:      token.TypeSession,
		Principal: principal,
		Issuer:    e.config.Issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(e.config.SessionTokenTTL) * time.Second),
	})
	if err != nil {
		return nil, delegate.ErrServerError("failed to issue session token")
	}

	e.auditor.LogTokenIssued(principal, grant.ClientID, token.TypeSession, "")
	if e.instrumentation != nil {
		e.instrumentation.Metrics().RecordTokenIssued(ctx, token.TypeSession)
	}

	return &AuthenticateResult{
		GrantID:      grant.ID,
		Principal:    principal,
		SessionToken: sessionToken,
	}, nil
}

// Consent records the principal's decision for an authenticated grant.
// Approval mints a single-use authorization code and advances the grant to
// code-issued. Denial is terminal and reported as access_denied.
func (e *Engine) Consent(ctx context.Context, grantID string, approved bool) (*ConsentResult, error) {
	grant, err := e.getGrantInState(ctx, grantID, storage.GrantStateAwaitingConsent, "grant is not awaiting consent")
	if err != nil {
		return nil, err
	}

	e.auditor.LogConsentDecision(grant.Principal, grant.ClientID, approved)

	if !approved {
		grant.State = storage.GrantStateDenied
		if err := e.flowStore.SaveGrant(ctx, grant); err != nil {
			return nil, delegate.ErrServerError("failed to update grant")
		}
		if e.instrumentation != nil {
			e.instrumentation.Metrics().GrantsDenied.Add(ctx, 1)
		}
		return nil, delegate.ErrAccessDenied("the principal denied the request")
	}

	now := e.clock.Now()
	authCode := &storage.AuthorizationCode{
		Code:        oauth2.GenerateVerifier(),
		GrantID:     grant.ID,
		ClientID:    grant.ClientID,
		RedirectURI: grant.RedirectURI,
		Scopes:      grant.Scopes,
		Principal:   grant.Principal,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(e.config.AuthorizationCodeTTL) * time.Second),
	}

	if err := e.flowStore.SaveAuthorizationCode(ctx, authCode); err != nil {
		return nil, delegate.ErrServerError("failed to save authorization code")
	}

	grant.State = storage.GrantStateCodeIssued
	if err := e.flowStore.SaveGrant(ctx, grant); err != nil {
		return nil, delegate.ErrServerError("failed to update grant")
	}

	e.auditor.LogCodeIssued(grant.Principal, grant.ClientID, token.JoinScopes(grant.Scopes))
	if e.instrumentation != nil {
		e.instrumentation.Metrics().CodesIssued.Add(ctx, 1)
	}

	return &ConsentResult{
		Code:        authCode.Code,
		RedirectURI: grant.RedirectURI,
		State:       grant.ClientState,
	}, nil
}

// Redeem exchanges an authorization code for an access token. The client
// must authenticate with its secret, and the code, client, and redirect
// URI must all match the original grant. Codes are consumed atomically:
// under concurrent redemption exactly one caller receives a token and
// every other caller receives invalid_grant.
func (e *Engine) Redeem(ctx context.Context, req *delegate.TokenRequest) (*delegate.TokenResponse, error) {
	if req == nil {
		return nil, delegate.ErrInvalidRequest("request is required")
	}
	if req.GrantType != delegate.GrantTypeAuthorizationCode {
		return nil, delegate.ErrUnsupportedGrantType("only the \"authorization_code\" grant type is supported")
	}
	if req.Code == "" {
		return nil, delegate.ErrInvalidRequest("code is required")
	}

	if err := e.clientStore.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		e.recordRedemptionFailure(ctx, req.ClientID, "client authentication failed")
		return nil, delegate.ErrInvalidClient("client authentication failed")
	}

	authCode, err := e.flowStore.RedeemAuthorizationCode(ctx, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrCodeExpired):
			e.recordRedemptionFailure(ctx, req.ClientID, "code expired")
			return nil, delegate.ErrInvalidGrant("authorization code expired")
		case errors.Is(err, storage.ErrCodeNotFound):
			e.recordRedemptionFailure(ctx, req.ClientID, "code unknown or already redeemed")
			return nil, delegate.ErrInvalidGrant("authorization code is invalid or already redeemed")
		default:
			return nil, delegate.ErrServerError("failed to redeem authorization code")
		}
	}

	// The code is consumed at this point. A mismatched client or redirect
	// URI burns it rather than leaving it redeemable.
	if authCode.ClientID != req.ClientID {
		e.recordRedemptionFailure(ctx, req.ClientID, "code issued to a different client")
		return nil, delegate.ErrInvalidGrant("authorization code was issued to a different client")
	}
	if authCode.RedirectURI != req.RedirectURI {
		e.recordRedemptionFailure(ctx, req.ClientID, "redirect_uri mismatch")
		return nil, delegate.ErrInvalidGrant("redirect_uri does not match the authorization request")
	}

	// Best effort; the code deletion above is what enforces single use
	if grant, gerr := e.flowStore.GetGrant(ctx, authCode.GrantID); gerr == nil {
		grant.State = storage.GrantStateRedeemed
		if serr := e.flowStore.SaveGrant(ctx, grant); serr != nil {
			e.logger.Warn("Failed to mark grant redeemed", "grant_id", grant.ID, "error", serr)
		}
	}

	now := e.clock.Now()
	expiresIn := time.Duration(e.config.AccessTokenTTL) * time.Second
	accessToken, err := e.codec.Issue(ctx, &token.Claims{
		Type:      token.TypeAccess,
		Principal: authCode.Principal,
		Scopes:    authCode.Scopes,
		Issuer:    e.config.Issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
	})
	if err != nil {
		return nil, delegate.ErrServerError("failed to issue access token")
	}

	scope := token.JoinScopes(authCode.Scopes)
	e.auditor.LogTokenIssued(authCode.Principal, req.ClientID, token.TypeAccess, scope)
	if e.instrumentation != nil {
		e.instrumentation.Metrics().CodesRedeemed.Add(ctx, 1)
		e.instrumentation.Metrics().RecordTokenIssued(ctx, token.TypeAccess)
	}

	return &delegate.TokenResponse{
		AccessToken: accessToken,
		TokenType:   delegate.TokenTypeBearer,
		Scope:       scope,
		ExpiresIn:   int64(expiresIn.Seconds()),
	}, nil
}

// getGrantInState loads a grant and checks it is in the expected state.
// Expired and missing grants surface as invalid_grant.
func (e *Engine) getGrantInState(ctx context.Context, grantID string, want storage.GrantState, wrongStateDesc string) (*storage.Grant, error) {
	if grantID == "" {
		return nil, delegate.ErrInvalidRequest("grant ID is required")
	}

	grant, err := e.flowStore.GetGrant(ctx, grantID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrGrantExpired):
			return nil, delegate.ErrInvalidGrant("grant expired")
		case errors.Is(err, storage.ErrGrantNotFound):
			return nil, delegate.ErrInvalidGrant("unknown grant")
		default:
			return nil, delegate.ErrServerError("failed to load grant")
		}
	}

	if grant.State != want {
		return nil, delegate.ErrInvalidGrant(wrongStateDesc)
	}
	return grant, nil
}

func (e *Engine) recordRedemptionFailure(ctx context.Context, clientID, reason string) {
	if e.auditRateLimiter.Allow(clientID) {
		e.auditor.LogRedemptionFailure(clientID, reason)
	}
	if e.instrumentation != nil {
		e.instrumentation.Metrics().RedemptionFailures.Add(ctx, 1)
	}
}
