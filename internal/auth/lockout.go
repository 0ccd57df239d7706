package auth

import (
	"sync"
	"time"

	"sitepulse/internal/config"
)

// lockoutTracker counts failed logins per username and source IP and
// blocks further attempts after the threshold. Keying on the pair keeps
// one address from locking an account for everyone else. State is
// in-memory; a restart clears it, which is acceptable for a single-node
// deployment.
type lockoutTracker struct {
	mu       sync.Mutex
	failures map[lockoutKey]*failureRecord
	max      int
	window   time.Duration
	clock    func() time.Time
}

type lockoutKey struct {
	username string
	ip       string
}

type failureRecord struct {
	count     int
	first     time.Time
	blockedAt time.Time
}

func newLockoutTracker() *lockoutTracker {
	return &lockoutTracker{
		failures: make(map[lockoutKey]*failureRecord),
		max:      config.MaxLoginAttempts,
		window:   config.LoginBlockDuration,
		clock:    time.Now,
	}
}

// Blocked reports whether the username is currently locked out for this
// source address, and if so, how long until it unlocks.
func (t *lockoutTracker) Blocked(username, ip string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := lockoutKey{username: username, ip: ip}
	rec, ok := t.failures[key]
	if !ok || rec.blockedAt.IsZero() {
		return false, 0
	}
	remaining := t.window - t.clock().Sub(rec.blockedAt)
	if remaining <= 0 {
		delete(t.failures, key)
		return false, 0
	}
	return true, remaining
}

// RecordFailure registers a failed attempt and returns true if the
// username+IP pair is now locked.
func (t *lockoutTracker) RecordFailure(username, ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	key := lockoutKey{username: username, ip: ip}
	rec, ok := t.failures[key]
	if !ok || now.Sub(rec.first) > t.window {
		rec = &failureRecord{first: now}
		t.failures[key] = rec
	}
	rec.count++
	if rec.count >= t.max {
		rec.blockedAt = now
		return true
	}
	return false
}

// Reset clears failure state for every address after a successful login.
func (t *lockoutTracker) Reset(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.failures {
		if key.username == username {
			delete(t.failures, key)
		}
	}
}
