package ws

import (
	"log/slog"
	"testing"
	"time"

	"kurator/internal/broker"
	"kurator/internal/dispatch"
	"kurator/internal/identity"
	"kurator/internal/models"
	"kurator/internal/presence"
)

func newTestHub(t *testing.T) (*Hub, *broker.Local, *presence.Registry) {
	t.Helper()
	p := presence.NewRegistry(time.Minute)
	b := broker.NewLocal(8)
	d := dispatch.New(b, p, slog.Default())
	return NewHub(p, b, d, slog.Default()), b, p
}

func curatorIdentity() identity.Identity {
	return identity.Identity{
		UserID: "curator-1",
		Role:   models.RoleCurator,
		Topics: []string{"billing", "homework"},
	}
}

func clientIdentity() identity.Identity {
	return identity.Identity{UserID: "client-1", Role: models.RoleClient}
}

func TestHub_CuratorConnect(t *testing.T) {
	hub, b, p := newTestHub(t)

	sess, ch := hub.Connect(curatorIdentity())
	if ch == nil {
		t.Fatal("Connect returned nil channel")
	}

	for _, group := range []string{broker.CuratorGroup, "billing", "homework"} {
		found := false
		for _, member := range b.Members(group) {
			if member == sess.ConnID {
				found = true
			}
		}
		if !found {
			t.Errorf("connection not joined to group %s", group)
		}
	}
	if !p.IsOnline("curator-1") {
		t.Error("curator should be online after connect")
	}

	// The connect itself announced online to the curator pool, so the
	// new connection is its own first audience.
	select {
	case payload := <-ch:
		if string(payload) == "" {
			t.Error("empty status payload")
		}
	default:
		t.Error("expected update_status online on curator channel")
	}
}

func TestHub_ClientJoinsNoGroups(t *testing.T) {
	hub, b, _ := newTestHub(t)

	sess, _ := hub.Connect(clientIdentity())
	if len(sess.Groups) != 0 {
		t.Errorf("client sessions must join no groups, got %v", sess.Groups)
	}
	if len(b.Members(broker.CuratorGroup)) != 0 {
		t.Error("client leaked into the curator group")
	}
}

func TestHub_DisconnectLastConnectionGoesOffline(t *testing.T) {
	hub, b, p := newTestHub(t)

	// A curator watches for status events.
	watcher, watchCh := hub.Connect(curatorIdentity())
	drain(watchCh)

	tabA, _ := hub.Connect(clientIdentity())
	drain(watchCh) // online event

	tabB, _ := hub.Connect(clientIdentity())
	drain(watchCh) // online event again, second tab

	hub.Disconnect(tabA)
	if !p.IsOnline("client-1") {
		t.Error("client still has tab B, must stay online")
	}
	if len(drain(watchCh)) != 0 {
		t.Error("no offline event expected while a tab remains")
	}

	hub.Disconnect(tabB)
	if p.IsOnline("client-1") {
		t.Error("client should be offline after last tab closes")
	}
	if len(drain(watchCh)) == 0 {
		t.Error("expected update_status offline after last disconnect")
	}

	hub.Disconnect(watcher)
	if len(b.Members(broker.CuratorGroup)) != 0 {
		t.Error("disconnect should prune group membership")
	}
}

func drain(ch <-chan []byte) [][]byte {
	var payloads [][]byte
	for {
		select {
		case payload := <-ch:
			payloads = append(payloads, payload)
		default:
			return payloads
		}
	}
}
