package ws

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"kurator/internal/identity"
	"kurator/internal/models"
)

type mockWS struct {
	readCh  chan []byte
	writeCh chan []byte
	closeCh chan struct{}
	closed  bool
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan []byte, 10),
		writeCh: make(chan []byte, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) ReadMessage() (int, []byte, error) {
	select {
	case frame, ok := <-m.readCh:
		if !ok {
			return 0, nil, errors.New("closed")
		}
		return textMessage, frame, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockWS) WriteMessage(_ int, data []byte) error {
	m.writeCh <- data
	return nil
}

type mockLifecycle struct {
	heartbeats  chan string
	disconnects chan string
	outbound    chan []byte
}

func newMockLifecycle() *mockLifecycle {
	return &mockLifecycle{
		heartbeats:  make(chan string, 10),
		disconnects: make(chan string, 10),
		outbound:    make(chan []byte, 10),
	}
}

func (m *mockLifecycle) Connect(id identity.Identity) (*Session, <-chan []byte) {
	return &Session{ConnID: "conn-1", Identity: id}, m.outbound
}

func (m *mockLifecycle) Disconnect(sess *Session) {
	m.disconnects <- sess.ConnID
}

func (m *mockLifecycle) Heartbeat(sess *Session) {
	m.heartbeats <- sess.ConnID
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := newMockLifecycle()
	ws := newMockWS()
	id := identity.Identity{UserID: "u1", Role: models.RoleClient}

	conn := NewConnection(hub, ws, id, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Inbound frame: heartbeat plus echo.
	ws.readCh <- []byte(`{"ping":1}`)
	select {
	case <-hub.heartbeats:
	case <-time.After(time.Second):
		t.Error("inbound frame did not trigger heartbeat")
	}
	select {
	case frame := <-ws.writeCh:
		if string(frame) != `{"ping":1}` {
			t.Errorf("unexpected echo %q", frame)
		}
	case <-time.After(time.Second):
		t.Error("inbound frame was not echoed")
	}

	// 2. Outbound event from the broker channel.
	hub.outbound <- []byte(`{"event_type":"new_chat"}`)
	select {
	case frame := <-ws.writeCh:
		if string(frame) != `{"event_type":"new_chat"}` {
			t.Errorf("unexpected outbound frame %q", frame)
		}
	case <-time.After(time.Second):
		t.Error("outbound payload not written to socket")
	}

	// 3. Stop.
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after cancel")
	}

	select {
	case <-hub.disconnects:
	default:
		t.Error("Disconnect not called")
	}
	if !ws.closed {
		t.Error("socket not closed")
	}
}

func TestConnection_MalformedFrameKeepsConnectionAlive(t *testing.T) {
	hub := newMockLifecycle()
	ws := newMockWS()
	conn := NewConnection(hub, ws, identity.Identity{UserID: "u1"}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	ws.readCh <- []byte(`{not json`)

	// Still a heartbeat: the socket proved itself alive.
	select {
	case <-hub.heartbeats:
	case <-time.After(time.Second):
		t.Error("malformed frame should still refresh liveness")
	}

	// No echo, and the connection survives to serve the next frame.
	ws.readCh <- []byte(`{"ok":true}`)
	select {
	case frame := <-ws.writeCh:
		if string(frame) != `{"ok":true}` {
			t.Errorf("expected echo of valid frame, got %q", frame)
		}
	case <-time.After(time.Second):
		t.Error("connection died after malformed frame")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return")
	}
}

func TestConnection_ReadError(t *testing.T) {
	hub := newMockLifecycle()
	ws := newMockWS()
	conn := NewConnection(hub, ws, identity.Identity{UserID: "u2"}, slog.Default())

	close(ws.readCh)

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from Handle, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("Handle did not return on read error")
	}
	if !ws.closed {
		t.Error("socket not closed")
	}
}
