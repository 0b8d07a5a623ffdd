// Package engine implements the delegated authorization engine.
//
// The engine drives the authorization-code grant for human principals,
// issues delegation tokens that narrow a principal's authority onto an
// agent, and verifies presented tokens against a required type and scope.
// It speaks typed requests and results rather than HTTP; transports are
// layered on top by the host application.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/identity"
	"github.com/agentauth/delegate/instrumentation"
	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/storage"
	"github.com/agentauth/delegate/token"
)

// Engine is the delegated authorization engine
type Engine struct {
	identity    identity.Authenticator
	clientStore storage.ClientStore
	flowStore   storage.FlowStore

	// codec mints and parses session, access, and delegation tokens
	codec token.Codec

	// credentialCodec mints and parses verifiable credentials. Optional;
	// IssueCredential fails when unset.
	credentialCodec token.Codec

	clock  token.Clock
	config *Config
	logger *slog.Logger

	auditor          *security.Auditor
	auditRateLimiter *security.RateLimiter
	instrumentation  *instrumentation.Instrumentation
}

// New creates a delegation engine. The authenticator, stores, and codec
// are required; everything else has secure defaults.
func New(auth identity.Authenticator, clients storage.ClientStore, flows storage.FlowStore, codec token.Codec, config *Config) (*Engine, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if flows == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if config == nil {
		config = &Config{}
	}

	logger := slog.Default()
	config = applySecureDefaults(config, logger)

	e := &Engine{
		identity:    auth,
		clientStore: clients,
		flowStore:   flows,
		codec:       codec,
		clock:       token.SystemClock(),
		config:      config,
		logger:      logger,
		auditor:     security.NewAuditor(logger, !config.DisableAuditLogging),
		// Throttles repeated audit noise from the same client, not logins
		auditRateLimiter: security.NewRateLimiter(10, 20, logger),
	}
	e.applyLeeway(codec)

	return e, nil
}

// leewaySetter is implemented by codecs that support a clock-skew grace
// period on expiry checks.
type leewaySetter interface {
	SetLeeway(time.Duration)
}

// applyLeeway forwards the configured clock-skew grace period to a codec
func (e *Engine) applyLeeway(codec token.Codec) {
	if ls, ok := codec.(leewaySetter); ok {
		ls.SetLeeway(time.Duration(e.config.ClockSkewGracePeriod) * time.Second)
	}
}

// SetLogger replaces the engine logger and the auditor attached to it
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.logger = logger
	e.auditor = security.NewAuditor(logger, !e.config.DisableAuditLogging)
}

// SetClock sets the time source used for TTLs and expiry checks.
// Call before the engine is shared between goroutines.
func (e *Engine) SetClock(clock token.Clock) {
	if clock != nil {
		e.clock = clock
	}
}

// SetCredentialCodec wires a codec for issuing verifiable credentials
func (e *Engine) SetCredentialCodec(codec token.Codec) {
	e.credentialCodec = codec
	if codec != nil {
		e.applyLeeway(codec)
	}
}

// SetInstrumentation wires OpenTelemetry metrics into the engine
func (e *Engine) SetInstrumentation(inst *instrumentation.Instrumentation) {
	e.instrumentation = inst
}

// Config returns the engine configuration after defaults were applied
func (e *Engine) Config() *Config {
	return e.config
}

// Close releases engine resources
func (e *Engine) Close() {
	e.auditRateLimiter.Stop()
}

// RegisterClient registers a client application and returns the generated
// plaintext secret. Only the bcrypt hash of the secret is stored.
func (e *Engine) RegisterClient(ctx context.Context, clientID, clientName string, redirectURIs, scopes []string) (string, error) {
	if clientID == "" {
		return "", delegate.ErrInvalidRequest("client_id is required")
	}
	if len(redirectURIs) == 0 {
		return "", delegate.ErrInvalidRequest("at least one redirect_uri is required")
	}

	secret := oauth2.GenerateVerifier()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", delegate.ErrServerError("failed to hash client secret")
	}

	client := &storage.Client{
		ClientID:         clientID,
		ClientSecretHash: string(hash),
		ClientName:       clientName,
		RedirectURIs:     redirectURIs,
		Scopes:           scopes,
		CreatedAt:        e.clock.Now(),
	}

	if err := e.clientStore.SaveClient(ctx, client); err != nil {
		return "", delegate.ErrServerError("failed to save client")
	}

	e.logger.Info("Registered client",
		"client_id", clientID,
		"client_name", clientName,
		"scopes", scopes)
	return secret, nil
}
