package valkey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agentauth/delegate/internal/testutil"
	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/storage"
)

// testStore creates a test store connected to a local Valkey instance.
// Tests are skipped if VALKEY_TEST_ADDR is not set and localhost:6379 is
// unreachable. Each test gets a unique prefix for isolation.
func testStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	prefix := fmt.Sprintf("delegatetest:%s:", t.Name())

	store, err := New(Config{
		Address:   addr,
		KeyPrefix: prefix,
	})
	if err != nil {
		t.Skipf("Skipping test: could not connect to Valkey at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		cleanupTestKeys(t, store)
		store.Close()
	})

	cleanupTestKeys(t, store)
	return store
}

// cleanupTestKeys removes all keys under the store's test prefix
func cleanupTestKeys(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	var cursor uint64
	for {
		result, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(s.prefix+"*").Count(scanBatchSize).Build(),
		).AsScanEntry()
		if err != nil {
			t.Logf("cleanup scan failed: %v", err)
			return
		}
		for _, key := range result.Elements {
			if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
				t.Logf("cleanup delete failed for %s: %v", key, err)
			}
		}
		cursor = result.Cursor
		if cursor == 0 {
			return
		}
	}
}

func TestValkeyClientLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient: %v", err)
	}

	got, err := store.GetClient(ctx, client.ClientID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.ClientID != client.ClientID || got.ClientName != client.ClientName {
		t.Errorf("got %+v, want %+v", got, client)
	}

	if _, err := store.GetClient(ctx, "unknown"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}

	clients, err := store.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("ListClients returned %d clients, want 1", len(clients))
	}
}

func TestValkeyValidateClientSecret(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	client := testutil.GenerateTestClient()
	client.ClientSecretHash = string(hash)
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient: %v", err)
	}

	if err := store.ValidateClientSecret(ctx, client.ClientID, "s3cret"); err != nil {
		t.Errorf("expected correct secret to validate, got %v", err)
	}
	if err := store.ValidateClientSecret(ctx, client.ClientID, "wrong"); !errors.Is(err, storage.ErrInvalidClientSecret) {
		t.Errorf("expected ErrInvalidClientSecret, got %v", err)
	}
	if err := store.ValidateClientSecret(ctx, "unknown", "s3cret"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestValkeyGrantLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	grant := testutil.GenerateTestGrant()
	grant.ExpiresAt = time.Now().Add(10 * time.Minute)
	if err := store.SaveGrant(ctx, grant); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}

	got, err := store.GetGrant(ctx, grant.ID)
	if err != nil {
		t.Fatalf("GetGrant: %v", err)
	}
	if got.State != storage.GrantStateLoginPending {
		t.Errorf("State = %q, want %q", got.State, storage.GrantStateLoginPending)
	}

	got.State = storage.GrantStateAwaitingConsent
	if err := store.SaveGrant(ctx, got); err != nil {
		t.Fatalf("SaveGrant update: %v", err)
	}
	updated, _ := store.GetGrant(ctx, grant.ID)
	if updated.State != storage.GrantStateAwaitingConsent {
		t.Errorf("State = %q, want %q", updated.State, storage.GrantStateAwaitingConsent)
	}

	if err := store.DeleteGrant(ctx, grant.ID); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}
	if _, err := store.GetGrant(ctx, grant.ID); !errors.Is(err, storage.ErrGrantNotFound) {
		t.Errorf("expected ErrGrantNotFound after delete, got %v", err)
	}
}

func TestValkeyRedeemAuthorizationCode(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	code.ExpiresAt = time.Now().Add(5 * time.Minute)
	if err := store.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode: %v", err)
	}

	got, err := store.RedeemAuthorizationCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("RedeemAuthorizationCode: %v", err)
	}
	if got.Principal != code.Principal {
		t.Errorf("Principal = %q, want %q", got.Principal, code.Principal)
	}

	if _, err := store.RedeemAuthorizationCode(ctx, code.Code); !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("expected ErrCodeNotFound on second redemption, got %v", err)
	}
}

func TestValkeyConcurrentRedemptionExactlyOneSuccess(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	code.ExpiresAt = time.Now().Add(5 * time.Minute)
	if err := store.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RedeemAuthorizationCode(ctx, code.Code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, storage.ErrCodeNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("got %d successful redemptions, want exactly 1", successes)
	}
}

func TestValkeyTokenRecordLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	record := &storage.TokenRecord{
		Handle:    "handle-1",
		Type:      "access",
		Principal: "alice",
		Scopes:    []string{"calendar.read"},
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.SaveToken(ctx, record); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	got, err := store.GetToken(ctx, record.Handle)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Principal != "alice" || got.Type != "access" {
		t.Errorf("got %+v, want access token for alice", got)
	}

	if err := store.DeleteToken(ctx, record.Handle); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := store.GetToken(ctx, record.Handle); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

func TestValkeyTokenEncryptionAtRest(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	key, _ := security.GenerateKey()
	encryptor, _ := security.NewEncryptor(key)
	store.SetEncryptor(encryptor)

	record := &storage.TokenRecord{
		Handle:    "handle-enc",
		Type:      "delegation",
		Principal: "alice",
		AgentID:   "agent-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.SaveToken(ctx, record); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	// The raw stored value must not contain the plaintext principal
	raw, err := store.client.Do(ctx, store.client.B().Get().Key(store.tokenKey(record.Handle)).Build()).ToString()
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if strings.Contains(raw, `"alice"`) {
		t.Error("principal stored in plaintext despite encryption being enabled")
	}

	got, err := store.GetToken(ctx, record.Handle)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Principal != "alice" || got.AgentID != "agent-1" {
		t.Errorf("got %+v, want decrypted principal and agent", got)
	}
}
