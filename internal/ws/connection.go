package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"kurator/internal/identity"
)

type wsConnection interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

type connectionHub interface {
	Connect(id identity.Identity) (*Session, <-chan []byte)
	Disconnect(sess *Session)
	Heartbeat(sess *Session)
}

const textMessage = 1 // websocket.TextMessage, kept local so tests need no gorilla import

// Connection pumps one websocket: inbound frames are heartbeats (and
// are echoed back, matching the consumer contract), outbound frames
// come from the broker channel attached at connect.
type Connection struct {
	ws       wsConnection
	hub      connectionHub
	sess     *Session
	inbound  chan []byte
	outbound <-chan []byte
	errorCh  chan error
	log      *slog.Logger
}

func NewConnection(hub connectionHub, ws wsConnection, id identity.Identity, log *slog.Logger) *Connection {
	sess, outbound := hub.Connect(id)
	return &Connection{
		ws:       ws,
		hub:      hub,
		sess:     sess,
		inbound:  make(chan []byte),
		outbound: outbound,
		errorCh:  make(chan error, 2),
		log:      log,
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		c.hub.Disconnect(c.sess)
		close(c.errorCh)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpFrames(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Connection) pumpFrames(ctx context.Context) error {
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		// The frame arrived, so the socket is alive: refresh first,
		// whatever the frame contains.
		c.hub.Heartbeat(c.sess)

		if !json.Valid(frame) {
			c.log.Warn("malformed frame dropped",
				"user_id", c.sess.Identity.UserID, "conn_id", c.sess.ConnID)
			continue
		}

		select {
		case c.inbound <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-c.inbound:
			if err := c.ws.WriteMessage(textMessage, frame); err != nil {
				return err
			}
		case payload, ok := <-c.outbound:
			if !ok {
				return nil
			}
			if err := c.ws.WriteMessage(textMessage, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
