package auth

import (
	"sync"
	"time"
)

// Revocations remembers signed-out token ids until they would have expired anyway.
type Revocations struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

// NewRevocations constructs an empty revocation list.
func NewRevocations() *Revocations {
	return &Revocations{now: time.Now, revoked: make(map[string]time.Time)}
}

// Revoke marks tokenID revoked until expiresAt.
func (r *Revocations) Revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.revoked[tokenID] = expiresAt
}

// IsRevoked implements the platform RevocationChecker.
func (r *Revocations) IsRevoked(tokenID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.revoked[tokenID]
	return ok && r.now().Before(expiresAt)
}

func (r *Revocations) prune() {
	now := r.now()
	for id, expiresAt := range r.revoked {
		if !now.Before(expiresAt) {
			delete(r.revoked, id)
		}
	}
}
