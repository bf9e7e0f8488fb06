// Package dispatch turns domain events into best-effort deliveries on
// the pub/sub substrate. An event can target a broadcast group, the
// live connections of a single user, or both. Nothing is queued: a
// target that is offline at dispatch time misses the event.
package dispatch

import (
	"encoding/json"
	"log/slog"

	"kurator/internal/broker"
)

// Target names the recipients of one event. Zero fields mean that
// delivery branch is skipped.
type Target struct {
	Group  string
	UserID string
}

func ToGroup(group string) Target { return Target{Group: group} }

func ToUser(userID string) Target { return Target{UserID: userID} }

func ToGroupAndUser(group, userID string) Target {
	return Target{Group: group, UserID: userID}
}

type liveConnections interface {
	LiveConnections(userID string) []string
}

type Dispatcher struct {
	broker   broker.Broker
	presence liveConnections
	log      *slog.Logger
}

func New(b broker.Broker, presence liveConnections, log *slog.Logger) *Dispatcher {
	return &Dispatcher{broker: b, presence: presence, log: log}
}

// Dispatch serializes the event and fans it out. The user branch
// resolves live connections now, not when the mutation happened, and
// sends to every one of them. Per-connection delivery order follows
// dispatch order; the group and user branches of one event may race.
func (d *Dispatcher) Dispatch(eventType EventType, data any, target Target) {
	payload, err := json.Marshal(Envelope{EventType: eventType, Data: data})
	if err != nil {
		d.log.Error("marshal event", "event_type", eventType, "error", err)
		return
	}

	if target.Group != "" {
		if delivered := d.broker.PublishGroup(target.Group, payload); delivered > 0 {
			eventsDispatched.WithLabelValues(string(eventType), "group").Inc()
		} else {
			d.log.Debug("group empty, event dropped",
				"event_type", eventType, "group", target.Group)
			eventsDropped.WithLabelValues(string(eventType)).Inc()
		}
	}

	if target.UserID != "" {
		conns := d.presence.LiveConnections(target.UserID)
		if len(conns) == 0 {
			d.log.Debug("target user offline, event dropped",
				"event_type", eventType, "user_id", target.UserID)
			eventsDropped.WithLabelValues(string(eventType)).Inc()
			return
		}
		for _, connID := range conns {
			// A connection the broker no longer knows behaves like an
			// expired presence entry; the lazy purge catches up later.
			if err := d.broker.PublishDirect(connID, payload); err != nil {
				d.log.Debug("direct send failed",
					"event_type", eventType, "conn_id", connID, "error", err)
				eventsDropped.WithLabelValues(string(eventType)).Inc()
				continue
			}
			eventsDispatched.WithLabelValues(string(eventType), "direct").Inc()
		}
	}
}
