package main

import (
	"strings"
	"sync"
	"time"
)

const rateLimitInterval = 3000 * time.Millisecond

// PeerRelayRateLimitErrorCode is the reserved code returned when a
// client-to-client relay message is throttled. It sits outside the 1000s
// taxonomy so clients can special-case it.
const PeerRelayRateLimitErrorCode = -387_155_488

// Room-query and low-risk mutation methods bypass the limiter entirely.
var rateLimitWhitelist = map[string]struct{}{
	"changeTransferDirection": {},
	"getRoomUsers":            {},
	"leaveRoom":               {},
	"cancelTransfer":          {},
}

// RateLimiter enforces a minimum interval between accepted calls per
// (caller, channel, method) key. Timestamps are recorded only on
// acceptance; rejected calls leave the table untouched.
type RateLimiter struct {
	mu           sync.Mutex
	lastAccepted map[string]time.Time
	now          func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastAccepted: make(map[string]time.Time),
		now:          time.Now,
	}
}

func rateLimitKey(callerID, channel, method string) string {
	return callerID + ":" + channel + ":" + method
}

// CheckAndRecord reports whether the call is allowed and, if so, records
// its timestamp. Whitelisted methods are always allowed and never touch
// the table.
func (l *RateLimiter) CheckAndRecord(callerID, channel, method string) bool {
	if _, ok := rateLimitWhitelist[method]; ok {
		return true
	}

	key := rateLimitKey(callerID, channel, method)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastAccepted[key]; ok && now.Sub(last) < rateLimitInterval {
		return false
	}
	l.lastAccepted[key] = now
	return true
}

// Forget drops all entries belonging to a disconnected caller. The source
// implementation never evicts; this sweep keeps the table bounded by the
// set of live connections.
func (l *RateLimiter) Forget(callerID string) {
	prefix := callerID + ":"
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.lastAccepted {
		if strings.HasPrefix(key, prefix) {
			delete(l.lastAccepted, key)
		}
	}
}
