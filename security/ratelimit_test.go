package security

import (
	"fmt"
	"testing"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(1, 3, nil)
	defer rl.Stop()

	// Burst of 3 is admitted, the 4th is throttled
	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d should be within burst", i)
		}
	}
	if rl.Allow("client-a") {
		t.Error("request beyond burst should be throttled")
	}
}

func TestRateLimiterIsolatesIdentifiers(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()

	if !rl.Allow("client-a") {
		t.Fatal("first request for client-a should pass")
	}
	if rl.Allow("client-a") {
		t.Error("second request for client-a should be throttled")
	}
	if !rl.Allow("client-b") {
		t.Error("client-b has its own budget")
	}
}

func TestRateLimiterLRUEviction(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1, 5, nil)
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}

	if rl.Len() > 5 {
		t.Errorf("tracked identifiers = %d, want at most 5", rl.Len())
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	rl.Stop()
}
