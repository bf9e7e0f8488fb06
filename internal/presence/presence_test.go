package presence

import (
	"testing"
	"time"
)

func TestRegistry_RegisterDeregister(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Register("u1", "c1")
	r.Register("u1", "c2")
	r.Register("u1", "c2") // idempotent

	if !r.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}
	if got := len(r.LiveConnections("u1")); got != 2 {
		t.Errorf("expected 2 live connections, got %d", got)
	}

	if offline := r.Deregister("u1", "c1"); offline {
		t.Error("u1 still has c2, should not be offline")
	}
	if offline := r.Deregister("u1", "c2"); !offline {
		t.Error("last deregister should report offline")
	}
	if r.IsOnline("u1") {
		t.Error("u1 should be offline")
	}
}

func TestRegistry_ConnectionOwnership(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Register("u1", "c1")
	r.Register("u2", "c2")

	for _, id := range r.LiveConnections("u1") {
		if id == "c2" {
			t.Error("c2 leaked into u1's connection set")
		}
	}
}

func TestRegistry_Expiry(t *testing.T) {
	r := NewRegistry(time.Minute)
	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	r.Register("u1", "c1")
	r.Register("u1", "c2")

	// c1 heartbeats, c2 goes silent.
	current = current.Add(45 * time.Second)
	r.Refresh("u1", "c1")

	current = current.Add(30 * time.Second)
	conns := r.LiveConnections("u1")
	if len(conns) != 1 || conns[0] != "c1" {
		t.Errorf("expected only c1 alive, got %v", conns)
	}

	// Everything past TTL now.
	current = current.Add(2 * time.Minute)
	if r.IsOnline("u1") {
		t.Error("u1 should be offline after TTL with no heartbeat")
	}
}

func TestRegistry_ReadsArePure(t *testing.T) {
	r := NewRegistry(time.Minute)
	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	r.Register("u1", "c1")

	// Poll just inside the window. If reads refreshed TTLs, polling
	// would keep the connection alive forever.
	for i := 0; i < 3; i++ {
		current = current.Add(50 * time.Second)
		r.IsOnline("u1")
	}
	if r.IsOnline("u1") {
		t.Error("reads must not extend connection lifetime")
	}
}

func TestRegistry_RefreshUnknownConnection(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Refresh("ghost", "c1")
	if r.IsOnline("ghost") {
		t.Error("refresh must not register new connections")
	}
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(time.Minute)
	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	r.Register("u1", "c1")
	current = current.Add(5 * time.Minute)
	r.sweep()

	r.mu.RLock()
	_, ok := r.users["u1"]
	r.mu.RUnlock()
	if ok {
		t.Error("sweep should drop fully expired users")
	}
}
