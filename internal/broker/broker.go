// Package broker is the pub/sub substrate: named broadcast groups of
// connections and direct per-connection delivery. The Broker interface
// is deliberately small so an external message broker can replace the
// in-process implementation.
package broker

import (
	"errors"
	"sync"
)

var ErrUnknownConnection = errors.New("unknown connection")

// CuratorGroup is the fixed broadcast group every curator connection
// joins. Chats without a topic resolve to it.
const CuratorGroup = "curators"

type Broker interface {
	Join(group, connID string)
	Leave(group, connID string)
	PublishGroup(group string, payload []byte) int
	PublishDirect(connID string, payload []byte) error
}

// Local is the single-process Broker. Each attached connection owns a
// buffered outbound channel; a slow consumer loses payloads instead of
// blocking the rest of a fan-out.
type Local struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
	conns  map[string]chan []byte

	sendBuffer int
}

func NewLocal(sendBuffer int) *Local {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Local{
		groups:     make(map[string]map[string]struct{}),
		conns:      make(map[string]chan []byte),
		sendBuffer: sendBuffer,
	}
}

// Attach creates the outbound channel for a connection. The caller
// drains it until Detach closes it.
func (b *Local) Attach(connID string) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, b.sendBuffer)
	b.conns[connID] = ch
	return ch
}

// Detach removes the connection from every group and closes its
// outbound channel.
func (b *Local) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for group, members := range b.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.groups, group)
		}
	}
	if ch, ok := b.conns[connID]; ok {
		close(ch)
		delete(b.conns, connID)
	}
}

// Join adds the connection to a group, creating the group on first
// use. Idempotent.
func (b *Local) Join(group, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		members = make(map[string]struct{})
		b.groups[group] = members
	}
	members[connID] = struct{}{}
}

func (b *Local) Leave(group, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(b.groups, group)
	}
}

// Members returns the current connection set of a group.
func (b *Local) Members(group string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := make([]string, 0, len(b.groups[group]))
	for connID := range b.groups[group] {
		members = append(members, connID)
	}
	return members
}

// PublishGroup delivers the payload to every member and reports how
// many connections took it. A member whose channel is gone or full is
// skipped; one bad member never aborts the fan-out.
func (b *Local) PublishGroup(group string, payload []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for connID := range b.groups[group] {
		ch, ok := b.conns[connID]
		if !ok {
			continue
		}
		select {
		case ch <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// PublishDirect delivers the payload to one connection. The caller
// treats ErrUnknownConnection like an expired presence entry.
func (b *Local) PublishDirect(connID string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	select {
	case ch <- payload:
	default:
	}
	return nil
}
