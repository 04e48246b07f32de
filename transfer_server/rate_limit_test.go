package main

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesInterval(t *testing.T) {
	limiter := NewRateLimiter()
	current := time.Unix(1000, 0)
	limiter.now = func() time.Time { return current }

	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("first call should be accepted")
	}
	if limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("immediate repeat should be rejected")
	}

	current = current.Add(rateLimitInterval - time.Millisecond)
	if limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("call inside the interval should be rejected")
	}

	current = current.Add(2 * time.Millisecond)
	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("call after the interval should be accepted")
	}
}

func TestRateLimiterRejectionDoesNotExtendWindow(t *testing.T) {
	limiter := NewRateLimiter()
	current := time.Unix(1000, 0)
	limiter.now = func() time.Time { return current }

	limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom")

	// Hammering during the window must not push the window forward.
	for i := 0; i < 5; i++ {
		current = current.Add(500 * time.Millisecond)
		limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom")
	}

	current = time.Unix(1000, 0).Add(rateLimitInterval)
	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("window should be measured from the last accepted call")
	}
}

func TestRateLimiterWhitelistBypass(t *testing.T) {
	limiter := NewRateLimiter()
	for method := range rateLimitWhitelist {
		for i := 0; i < 10; i++ {
			if !limiter.CheckAndRecord("socket-1", "e2ee-request", method) {
				t.Fatalf("whitelisted method %s should never be limited", method)
			}
		}
	}
	if len(limiter.lastAccepted) != 0 {
		t.Fatalf("whitelisted calls should not be recorded, got %d entries", len(limiter.lastAccepted))
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter()
	current := time.Unix(1000, 0)
	limiter.now = func() time.Time { return current }

	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("first call should be accepted")
	}
	if !limiter.CheckAndRecord("socket-2", "e2ee-request", "createRoom") {
		t.Fatalf("different caller should not share the window")
	}
	if !limiter.CheckAndRecord("socket-1", "e2ee-c2c-request", "createRoom") {
		t.Fatalf("different channel should not share the window")
	}
	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "joinRoom") {
		t.Fatalf("different method should not share the window")
	}
}

func TestRateLimiterForget(t *testing.T) {
	limiter := NewRateLimiter()
	current := time.Unix(1000, 0)
	limiter.now = func() time.Time { return current }

	limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom")
	limiter.CheckAndRecord("socket-1", "e2ee-c2c-request", "sendData")
	limiter.CheckAndRecord("socket-2", "e2ee-request", "createRoom")

	limiter.Forget("socket-1")

	if len(limiter.lastAccepted) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(limiter.lastAccepted))
	}
	if !limiter.CheckAndRecord("socket-1", "e2ee-request", "createRoom") {
		t.Fatalf("forgotten caller should be accepted again")
	}
	if limiter.CheckAndRecord("socket-2", "e2ee-request", "createRoom") {
		t.Fatalf("other caller's window must survive Forget")
	}
}
