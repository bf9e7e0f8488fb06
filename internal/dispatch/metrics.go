package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kurator_events_dispatched_total",
		Help: "Events handed to the pub/sub substrate, by event type and delivery mode.",
	}, []string{"event_type", "mode"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kurator_events_dropped_total",
		Help: "Events with no reachable target at dispatch time.",
	}, []string{"event_type"})
)
