package payflow

import (
	"sync"
	"time"
)

// BroadcastClaims enforces at-most-one network submission per record id
// by tracking in-flight broadcasts and caching accepted responses.
// A concurrent attempt for an id that is already in flight fails fast
// rather than double-submitting; a repeat attempt shortly after
// acceptance gets the cached response back.
type BroadcastClaims struct {
	mu       sync.Mutex
	accepted map[string]*BroadcastResponse
	expiry   map[string]time.Time
	inFlight map[string]struct{}
	ttl      time.Duration
}

// NewBroadcastClaims creates a claim registry whose accepted responses
// expire after ttl.
func NewBroadcastClaims(ttl time.Duration) *BroadcastClaims {
	return &BroadcastClaims{
		accepted: make(map[string]*BroadcastResponse),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
	}
}

// ClaimStatus is the result of attempting to acquire a broadcast claim.
type ClaimStatus int

const (
	// ClaimAcquired means this caller owns the exclusive claim and must
	// later call Complete or Release.
	ClaimAcquired ClaimStatus = iota
	// ClaimHeld means another broadcast for the same id is in flight.
	ClaimHeld
	// ClaimSettled means a recent broadcast for this id was accepted.
	ClaimSettled
)

// Acquire atomically checks for a cached acceptance or an in-flight
// broadcast and otherwise marks the id as in flight.
func (c *BroadcastClaims) Acquire(id string) (ClaimStatus, *BroadcastResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[id]; exists {
		if time.Now().Before(expiry) {
			if resp, ok := c.accepted[id]; ok {
				return ClaimSettled, resp
			}
		}
		// Expired - clean it up
		delete(c.accepted, id)
		delete(c.expiry, id)
	}

	if _, exists := c.inFlight[id]; exists {
		return ClaimHeld, nil
	}

	c.inFlight[id] = struct{}{}
	return ClaimAcquired, nil
}

// Complete records an accepted response and releases the claim.
func (c *BroadcastClaims) Complete(id string, response *BroadcastResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accepted[id] = response
	c.expiry[id] = time.Now().Add(c.ttl)
	delete(c.inFlight, id)

	c.cleanupExpiredLocked()
}

// Release drops the in-flight marker without caching a result, allowing
// the broadcast to be re-confirmed by the operator.
func (c *BroadcastClaims) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, id)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (c *BroadcastClaims) cleanupExpiredLocked() {
	now := time.Now()
	for id, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.accepted, id)
			delete(c.expiry, id)
		}
	}
}
