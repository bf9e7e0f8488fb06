package ws

import (
	"log/slog"

	"github.com/google/uuid"

	"kurator/internal/broker"
	"kurator/internal/dispatch"
	"kurator/internal/identity"
	"kurator/internal/models"
	"kurator/internal/presence"
)

// Session is one live authenticated connection. The group list is the
// capability set computed at connect time; it is never re-derived.
type Session struct {
	ConnID   string
	Identity identity.Identity
	Groups   []string
}

type events interface {
	Dispatch(eventType dispatch.EventType, data any, target dispatch.Target)
}

// Hub wires connection lifecycle into presence, groups and status
// events. It owns nothing itself; it orchestrates the registries.
type Hub struct {
	presence *presence.Registry
	broker   *broker.Local
	events   events
	log      *slog.Logger
}

func NewHub(p *presence.Registry, b *broker.Local, ev events, log *slog.Logger) *Hub {
	return &Hub{presence: p, broker: b, events: ev, log: log}
}

// Connect registers a resolved identity as a live connection: attaches
// an outbound channel, records presence, joins groups for curators and
// announces the user online to the curator pool.
func (h *Hub) Connect(id identity.Identity) (*Session, <-chan []byte) {
	sess := &Session{
		ConnID:   uuid.NewString(),
		Identity: id,
	}

	ch := h.broker.Attach(sess.ConnID)
	h.presence.Register(id.UserID, sess.ConnID)

	// Clients join no groups: they only ever receive targeted
	// delivery, never other clients' chat traffic.
	if id.Role == models.RoleCurator {
		sess.Groups = append([]string{broker.CuratorGroup}, id.Topics...)
		for _, group := range sess.Groups {
			h.broker.Join(group, sess.ConnID)
		}
	}

	h.events.Dispatch(dispatch.EventUpdateStatus, dispatch.StatusPayload{
		UserID: id.UserID,
		Status: dispatch.UserStatusOnline,
	}, dispatch.ToGroup(broker.CuratorGroup))

	h.log.Info("connection active",
		"user_id", id.UserID, "role", id.Role, "conn_id", sess.ConnID, "groups", len(sess.Groups))
	return sess, ch
}

// Disconnect tears the connection down: leaves every group, closes the
// outbound channel and, if this was the user's last live connection,
// announces the user offline.
func (h *Hub) Disconnect(sess *Session) {
	h.broker.Detach(sess.ConnID)
	offline := h.presence.Deregister(sess.Identity.UserID, sess.ConnID)

	if offline {
		h.events.Dispatch(dispatch.EventUpdateStatus, dispatch.StatusPayload{
			UserID: sess.Identity.UserID,
			Status: dispatch.UserStatusOffline,
		}, dispatch.ToGroup(broker.CuratorGroup))
	}

	h.log.Info("connection closed",
		"user_id", sess.Identity.UserID, "conn_id", sess.ConnID, "offline", offline)
}

// Heartbeat refreshes the connection's liveness stamp.
func (h *Hub) Heartbeat(sess *Session) {
	h.presence.Refresh(sess.Identity.UserID, sess.ConnID)
}

// IsUserOnline answers the presence query the CRUD layer uses for
// display.
func (h *Hub) IsUserOnline(userID string) bool {
	return h.presence.IsOnline(userID)
}
