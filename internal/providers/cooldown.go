package providers

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a provider stays unavailable after signalling
// a rate limit.
const DefaultCooldown = 120 * time.Second

// CooldownTracker records per-provider "unavailable until" timestamps.
//
// It is the only state shared between concurrent resolution attempts and is
// guarded accordingly. State is process-local and resets on restart.
type CooldownTracker struct {
	mu    sync.Mutex
	until map[ID]time.Time
	now   func() time.Time
}

// NewCooldownTracker creates a tracker with every provider available.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{until: make(map[ID]time.Time), now: time.Now}
}

// Available reports whether the provider is currently dispatchable. A
// provider with no recorded cooldown is always available.
func (t *CooldownTracker) Available(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().After(t.until[id])
}

// MarkLimited puts the provider on cooldown for the given duration,
// replacing any earlier window.
func (t *CooldownTracker) MarkLimited(id ID, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.until[id] = t.now().Add(d)
}

// Remaining returns how long until the provider becomes available again,
// zero when it already is.
func (t *CooldownTracker) Remaining(id ID) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.until[id].Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
