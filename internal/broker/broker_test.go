package broker

import (
	"errors"
	"testing"
)

func TestLocal_GroupFanout(t *testing.T) {
	b := NewLocal(4)

	ch1 := b.Attach("c1")
	ch2 := b.Attach("c2")
	b.Attach("c3") // attached but not a member

	b.Join("billing", "c1")
	b.Join("billing", "c2")
	b.Join("billing", "c2") // idempotent

	if delivered := b.PublishGroup("billing", []byte("hello")); delivered != 2 {
		t.Errorf("expected 2 deliveries, got %d", delivered)
	}

	for name, ch := range map[string]<-chan []byte{"c1": ch1, "c2": ch2} {
		select {
		case payload := <-ch:
			if string(payload) != "hello" {
				t.Errorf("%s got %q", name, payload)
			}
		default:
			t.Errorf("%s did not receive group payload", name)
		}
	}
}

func TestLocal_EmptyGroupIsSilent(t *testing.T) {
	b := NewLocal(4)
	if delivered := b.PublishGroup("nobody-home", []byte("x")); delivered != 0 {
		t.Errorf("empty group reported %d deliveries", delivered)
	}
}

func TestLocal_DirectDelivery(t *testing.T) {
	b := NewLocal(4)
	ch := b.Attach("c1")

	if err := b.PublishDirect("c1", []byte("hi")); err != nil {
		t.Fatalf("PublishDirect: %v", err)
	}
	select {
	case payload := <-ch:
		if string(payload) != "hi" {
			t.Errorf("got %q", payload)
		}
	default:
		t.Error("no payload delivered")
	}

	if err := b.PublishDirect("gone", []byte("hi")); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("expected ErrUnknownConnection, got %v", err)
	}
}

func TestLocal_SlowMemberDoesNotAbortFanout(t *testing.T) {
	b := NewLocal(1)
	slow := b.Attach("slow")
	fast := b.Attach("fast")
	b.Join("g", "slow")
	b.Join("g", "fast")

	// Fill the slow member's buffer.
	if err := b.PublishDirect("slow", []byte("filler")); err != nil {
		t.Fatalf("PublishDirect: %v", err)
	}

	// Only the fast member counts as delivered.
	if delivered := b.PublishGroup("g", []byte("event")); delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}

	select {
	case payload := <-fast:
		if string(payload) != "event" {
			t.Errorf("fast got %q", payload)
		}
	default:
		t.Error("fast member starved by slow member")
	}

	// The slow member kept its filler and dropped the event.
	if payload := <-slow; string(payload) != "filler" {
		t.Errorf("slow got %q", payload)
	}
	select {
	case payload := <-slow:
		t.Errorf("slow should have dropped the event, got %q", payload)
	default:
	}
}

func TestLocal_DetachPrunesMemberships(t *testing.T) {
	b := NewLocal(4)
	ch := b.Attach("c1")
	b.Join("g1", "c1")
	b.Join("g2", "c1")

	b.Detach("c1")

	if _, ok := <-ch; ok {
		t.Error("outbound channel should be closed")
	}
	if len(b.Members("g1")) != 0 || len(b.Members("g2")) != 0 {
		t.Error("detach should remove connection from all groups")
	}
	if err := b.PublishDirect("c1", []byte("x")); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("expected ErrUnknownConnection after detach, got %v", err)
	}
}
