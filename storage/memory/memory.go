// Package memory provides an in-memory implementation of all storage interfaces.
// It is suitable for development, testing, and single-instance deployments.
//
// Grants, authorization codes, and token records live in striped maps so
// redemption of one code never contends with unrelated keys. Code redemption
// is a single critical section per stripe: lookup, expiry check, and delete
// happen under one lock, so a code can be redeemed at most once no matter
// how many goroutines race on it.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentauth/delegate/instrumentation"
	"github.com/agentauth/delegate/internal/util"
	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/storage"
	"github.com/agentauth/delegate/token"
)

const (
	// numStripes is the number of lock stripes for grants, codes, and
	// token records. Must be a power of two.
	numStripes = 32

	// keyLogLength is the number of characters to include when logging
	// codes and handles
	keyLogLength = 8
)

type grantStripe struct {
	mu     sync.Mutex
	grants map[string]*storage.Grant
}

type codeStripe struct {
	mu    sync.Mutex
	codes map[string]*storage.AuthorizationCode
}

type tokenStripe struct {
	mu     sync.Mutex
	tokens map[string]*storage.TokenRecord
}

// Store is an in-memory implementation of all storage interfaces.
// It implements ClientStore, FlowStore, and TokenStore.
type Store struct {
	// Client storage (low write rate, single lock is fine)
	clientsMu sync.RWMutex
	clients   map[string]*storage.Client

	// Striped flow and token storage
	grantStripes [numStripes]grantStripe
	codeStripes  [numStripes]codeStripe
	tokenStripes [numStripes]tokenStripe

	// Security
	encryptor *security.Encryptor // principal encryption at rest (optional)

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	clientsCountAtomic atomic.Int64
	grantsCountAtomic  atomic.Int64
	codesCountAtomic   atomic.Int64
	tokensCountAtomic  atomic.Int64

	// Cleanup
	clock           token.Clock
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.FlowStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates a new in-memory store with default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		clock:           token.SystemClock(),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	for i := range s.grantStripes {
		s.grantStripes[i].grants = make(map[string]*storage.Grant)
	}
	for i := range s.codeStripes {
		s.codeStripes[i].codes = make(map[string]*storage.AuthorizationCode)
	}
	for i := range s.tokenStripes {
		s.tokenStripes[i].tokens = make(map[string]*storage.TokenRecord)
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets the logger for the store
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock sets the time source used for expiry checks and cleanup.
// Call before the store is shared between goroutines.
func (s *Store) SetClock(clock token.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// SetEncryptor enables encryption of principal identifiers inside persisted
// token records. Call before any tokens are saved; records written without
// encryption cannot be read back once it is enabled.
func (s *Store) SetEncryptor(encryptor *security.Encryptor) {
	s.encryptor = encryptor
}

// SetInstrumentation wires OpenTelemetry tracing and metrics into the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	s.instrumentation = inst
	s.tracer = inst.Tracer("storage")

	err := inst.RegisterStorageSizeCallbacks(
		s.tokensCountAtomic.Load,
		s.clientsCountAtomic.Load,
		s.grantsCountAtomic.Load,
		s.codesCountAtomic.Load,
	)
	if err != nil {
		s.logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// Stop terminates the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func stripeIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() & (numStripes - 1))
}

// ============================================================
// ClientStore
// ============================================================

// SaveClient stores a client registration
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "save_client")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", "client", err, startTime)
		span.End()
	}()

	if client == nil {
		err = fmt.Errorf("client cannot be nil")
		return err
	}
	if client.ClientID == "" {
		err = fmt.Errorf("client ID cannot be empty")
		return err
	}
	if len(client.RedirectURIs) == 0 {
		err = fmt.Errorf("client must register at least one redirect URI")
		return err
	}

	s.clientsMu.Lock()
	_, existed := s.clients[client.ClientID]
	s.clients[client.ClientID] = client
	s.clientsMu.Unlock()

	if !existed {
		s.clientsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved client",
		"client_id", client.ClientID,
		"redirect_uris", len(client.RedirectURIs))
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "get_client")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", "client", err, startTime)
		span.End()
	}()

	s.clientsMu.RLock()
	client, ok := s.clients[clientID]
	s.clientsMu.RUnlock()

	if !ok {
		err = storage.ErrClientNotFound
		return nil, err
	}
	return client, nil
}

// ValidateClientSecret checks a client secret against the stored bcrypt
// hash. A bcrypt comparison is always performed, even for unknown clients,
// so the response time does not reveal whether the client exists.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "validate_client_secret")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "validate_client_secret", "client", err, startTime)
		span.End()
	}()

	// bcrypt hash of "test", compared for unknown clients
	dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	s.clientsMu.RLock()
	client, ok := s.clients[clientID]
	s.clientsMu.RUnlock()

	hashToCompare := dummyHash
	if ok && client.ClientSecretHash != "" {
		hashToCompare = client.ClientSecretHash
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	if !ok {
		err = storage.ErrClientNotFound
		return err
	}
	if bcryptErr != nil {
		err = storage.ErrInvalidClientSecret
		return err
	}
	return nil
}

// ListClients returns all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients, nil
}

// ============================================================
// FlowStore
// ============================================================

// SaveGrant stores a grant attempt
func (s *Store) SaveGrant(ctx context.Context, grant *storage.Grant) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "save_grant")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_grant", "grant", err, startTime)
		span.End()
	}()

	if grant == nil {
		err = fmt.Errorf("grant cannot be nil")
		return err
	}
	if grant.ID == "" {
		err = fmt.Errorf("grant ID cannot be empty")
		return err
	}

	stripe := &s.grantStripes[stripeIndex(grant.ID)]
	stripe.mu.Lock()
	_, existed := stripe.grants[grant.ID]
	stripe.grants[grant.ID] = grant
	stripe.mu.Unlock()

	if !existed {
		s.grantsCountAtomic.Add(1)
	}
	return nil
}

// GetGrant retrieves a grant by ID. Expired grants are removed and reported
// as ErrGrantExpired.
func (s *Store) GetGrant(ctx context.Context, grantID string) (*storage.Grant, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "get_grant")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_grant", "grant", err, startTime)
		span.End()
	}()

	stripe := &s.grantStripes[stripeIndex(grantID)]
	stripe.mu.Lock()
	grant, ok := stripe.grants[grantID]
	if ok && security.IsExpired(grant.ExpiresAt, s.clock.Now()) {
		delete(stripe.grants, grantID)
		stripe.mu.Unlock()
		s.grantsCountAtomic.Add(-1)
		err = storage.ErrGrantExpired
		return nil, err
	}
	stripe.mu.Unlock()

	if !ok {
		err = storage.ErrGrantNotFound
		return nil, err
	}
	return grant, nil
}

// DeleteGrant removes a grant. Deleting a missing grant is not an error.
func (s *Store) DeleteGrant(ctx context.Context, grantID string) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "delete_grant")
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_grant", "grant", nil, startTime)
		span.End()
	}()

	stripe := &s.grantStripes[stripeIndex(grantID)]
	stripe.mu.Lock()
	_, existed := stripe.grants[grantID]
	delete(stripe.grants, grantID)
	stripe.mu.Unlock()

	if existed {
		s.grantsCountAtomic.Add(-1)
	}
	return nil
}

// SaveAuthorizationCode stores a single-use authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", "code", err, startTime)
		span.End()
	}()

	if code == nil {
		err = fmt.Errorf("authorization code cannot be nil")
		return err
	}
	if code.Code == "" {
		err = fmt.Errorf("code value cannot be empty")
		return err
	}

	stripe := &s.codeStripes[stripeIndex(code.Code)]
	stripe.mu.Lock()
	_, existed := stripe.codes[code.Code]
	stripe.codes[code.Code] = code
	stripe.mu.Unlock()

	if !existed {
		s.codesCountAtomic.Add(1)
	}

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Code, keyLogLength),
		"client_id", code.ClientID)
	return nil
}

// RedeemAuthorizationCode atomically consumes an authorization code.
// Lookup, expiry check, and deletion happen under one stripe lock, so
// concurrent redemptions of the same code yield exactly one success; the
// rest observe ErrCodeNotFound. Expired codes are deleted and reported as
// ErrCodeExpired.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "redeem_authorization_code")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "redeem_authorization_code", "code", err, startTime)
		span.End()
	}()

	stripe := &s.codeStripes[stripeIndex(code)]
	stripe.mu.Lock()
	authCode, ok := stripe.codes[code]
	if ok {
		delete(stripe.codes, code)
	}
	stripe.mu.Unlock()

	if !ok {
		err = storage.ErrCodeNotFound
		return nil, err
	}

	s.codesCountAtomic.Add(-1)

	if security.IsExpired(authCode.ExpiresAt, s.clock.Now()) {
		err = storage.ErrCodeExpired
		return nil, err
	}

	s.logger.Debug("Redeemed authorization code",
		"code_prefix", util.SafeTruncate(code, keyLogLength),
		"client_id", authCode.ClientID)
	return authCode, nil
}

// ============================================================
// TokenStore
// ============================================================

// SaveToken stores a token record keyed by its opaque handle.
// Principal identifiers are encrypted at rest when an encryptor is set.
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "save_token")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_token", "token", err, startTime)
		span.End()
	}()

	if record == nil {
		err = fmt.Errorf("token record cannot be nil")
		return err
	}
	if record.Handle == "" {
		err = fmt.Errorf("token handle cannot be empty")
		return err
	}

	stored := *record
	if s.encryptor != nil && s.encryptor.IsEnabled() {
		if stored.Principal, err = s.encryptor.Encrypt(stored.Principal); err != nil {
			return fmt.Errorf("failed to encrypt principal: %w", err)
		}
		if stored.AgentID != "" {
			if stored.AgentID, err = s.encryptor.Encrypt(stored.AgentID); err != nil {
				return fmt.Errorf("failed to encrypt agent ID: %w", err)
			}
		}
	}

	stripe := &s.tokenStripes[stripeIndex(record.Handle)]
	stripe.mu.Lock()
	_, existed := stripe.tokens[record.Handle]
	stripe.tokens[record.Handle] = &stored
	stripe.mu.Unlock()

	if !existed {
		s.tokensCountAtomic.Add(1)
	}

	s.logger.Debug("Saved token record",
		"handle_prefix", util.SafeTruncate(record.Handle, keyLogLength),
		"token_type", record.Type)
	return nil
}

// GetToken retrieves a token record by handle. Expired records are removed
// and reported as ErrTokenExpired.
func (s *Store) GetToken(ctx context.Context, handle string) (*storage.TokenRecord, error) {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "get_token")
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_token", "token", err, startTime)
		span.End()
	}()

	stripe := &s.tokenStripes[stripeIndex(handle)]
	stripe.mu.Lock()
	record, ok := stripe.tokens[handle]
	if ok && security.IsExpired(record.ExpiresAt, s.clock.Now()) {
		delete(stripe.tokens, handle)
		stripe.mu.Unlock()
		s.tokensCountAtomic.Add(-1)
		err = storage.ErrTokenExpired
		return nil, err
	}
	stripe.mu.Unlock()

	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}

	result := *record
	if s.encryptor != nil && s.encryptor.IsEnabled() {
		if result.Principal, err = s.encryptor.Decrypt(result.Principal); err != nil {
			return nil, fmt.Errorf("failed to decrypt principal: %w", err)
		}
		if result.AgentID != "" {
			if result.AgentID, err = s.encryptor.Decrypt(result.AgentID); err != nil {
				return nil, fmt.Errorf("failed to decrypt agent ID: %w", err)
			}
		}
	}
	return &result, nil
}

// DeleteToken removes a token record. Deleting a missing record is not an error.
func (s *Store) DeleteToken(ctx context.Context, handle string) error {
	startTime := time.Now()
	ctx, span := s.startStorageSpan(ctx, "delete_token")
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_token", "token", nil, startTime)
		span.End()
	}()

	stripe := &s.tokenStripes[stripeIndex(handle)]
	stripe.mu.Lock()
	_, existed := stripe.tokens[handle]
	delete(stripe.tokens, handle)
	stripe.mu.Unlock()

	if existed {
		s.tokensCountAtomic.Add(-1)
	}
	return nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanupExpired removes expired grants, codes, and token records.
// Each stripe is swept under its own lock so cleanup never blocks the
// whole store.
func (s *Store) cleanupExpired() {
	now := s.clock.Now()
	var grants, codes, tokens int64

	for i := range s.grantStripes {
		stripe := &s.grantStripes[i]
		stripe.mu.Lock()
		for id, grant := range stripe.grants {
			if security.IsExpired(grant.ExpiresAt, now) {
				delete(stripe.grants, id)
				grants++
			}
		}
		stripe.mu.Unlock()
	}

	for i := range s.codeStripes {
		stripe := &s.codeStripes[i]
		stripe.mu.Lock()
		for code, authCode := range stripe.codes {
			if security.IsExpired(authCode.ExpiresAt, now) {
				delete(stripe.codes, code)
				codes++
			}
		}
		stripe.mu.Unlock()
	}

	for i := range s.tokenStripes {
		stripe := &s.tokenStripes[i]
		stripe.mu.Lock()
		for handle, record := range stripe.tokens {
			if security.IsExpired(record.ExpiresAt, now) {
				delete(stripe.tokens, handle)
				tokens++
			}
		}
		stripe.mu.Unlock()
	}

	s.grantsCountAtomic.Add(-grants)
	s.codesCountAtomic.Add(-codes)
	s.tokensCountAtomic.Add(-tokens)

	if grants > 0 || codes > 0 || tokens > 0 {
		s.logger.Debug("Cleaned up expired entries",
			"grants", grants,
			"codes", codes,
			"tokens", tokens)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation, entity string, err error, startTime time.Time) {
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if s.instrumentation == nil {
		return
	}
	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, entity, time.Since(startTime), err)
}
