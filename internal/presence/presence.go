// Package presence tracks which users are reachable and over which
// live connections. A user is online while at least one connection has
// been seen within the TTL window.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultTTL = 90 * time.Second

type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]int64 // userID -> connID -> last seen unix

	ttl time.Duration
	now func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		users: make(map[string]map[string]int64),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Register records connID as a live connection of userID, refreshing
// its liveness stamp. Idempotent.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]int64)
		r.users[userID] = conns
	}
	conns[connID] = r.now().Unix()
}

// Refresh updates the liveness stamp of an already registered
// connection. A heartbeat from an unknown connection changes nothing:
// registration belongs to the connect path.
func (r *Registry) Refresh(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	if _, ok := conns[connID]; ok {
		conns[connID] = r.now().Unix()
	}
}

// Deregister removes the connection and reports whether the user has
// no live connections left, i.e. just went offline.
func (r *Registry) Deregister(userID, connID string) (offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return true
	}
	delete(conns, connID)
	r.purgeLocked(userID)
	if len(conns) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one non-expired
// connection. Expired entries are dropped on the way, but the read
// never refreshes a live one.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(userID)
	return len(r.users[userID]) > 0
}

// LiveConnections returns the non-expired connection IDs of a user,
// for targeted delivery.
func (r *Registry) LiveConnections(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(userID)
	return lo.Keys(r.users[userID])
}

// Run sweeps expired entries periodically until ctx is cancelled. The
// lazy purge on reads already keeps answers correct; the sweep only
// bounds memory for users nobody asks about.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID := range r.users {
		r.purgeLocked(userID)
		if len(r.users[userID]) == 0 {
			delete(r.users, userID)
		}
	}
}

func (r *Registry) purgeLocked(userID string) {
	deadline := r.now().Add(-r.ttl).Unix()
	for connID, lastSeen := range r.users[userID] {
		if lastSeen < deadline {
			delete(r.users[userID], connID)
		}
	}
}
