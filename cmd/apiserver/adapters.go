package main

import (
	"context"
	"time"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/infrastructure/messaging/kafka"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/internal/realtime"
	"github.com/havenloop/haven/internal/scheduler"
)

// compositeNotifier fans incident events out to the Kafka stream (durable,
// feeds the delivery worker) and the in-process realtime hub (connected
// websocket clients).  On trigger it also arms the per-incident escalation
// timers so an unacknowledged incident is evaluated promptly; the worker's
// periodic sweep remains the safety net.
type compositeNotifier struct {
	stream *kafka.Notifier
	hub    *realtime.Publisher

	timers         *scheduler.Timers
	escalations    escalation.Service
	operatorGrace  time.Duration
	emergencyGrace time.Duration

	log logging.Logger
}

var _ incident.Notifier = (*compositeNotifier)(nil)

func (n *compositeNotifier) IncidentTriggered(ctx context.Context, ev *incident.Event, recipients []string) {
	n.stream.IncidentTriggered(ctx, ev, recipients)
	n.hub.IncidentTriggered(ctx, ev, recipients)

	incidentID := ev.ID
	n.timers.Schedule(incidentID, n.operatorGrace, func() { n.evaluate(incidentID) })
	n.timers.Schedule(incidentID, n.emergencyGrace, func() { n.evaluate(incidentID) })
}

func (n *compositeNotifier) IncidentTransitioned(ctx context.Context, ev *incident.Event, actorID string, groupIDs []string) {
	n.stream.IncidentTransitioned(ctx, ev, actorID, groupIDs)
	n.hub.IncidentTransitioned(ctx, ev, actorID, groupIDs)
}

func (n *compositeNotifier) LocationAppended(ctx context.Context, sample *incident.LocationSample, groupIDs []string) {
	n.stream.LocationAppended(ctx, sample, groupIDs)
	n.hub.LocationAppended(ctx, sample, groupIDs)
}

// evaluate runs one escalation check from a fired timer.  The check re-reads
// incident status, so a timer that outlived its incident is a no-op.
func (n *compositeNotifier) evaluate(incidentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	action, err := n.escalations.EvaluateIncident(ctx, incidentID)
	if err != nil {
		n.log.Warn("Timed escalation evaluation failed",
			logging.String("incident_id", incidentID),
			logging.Err(err))
		return
	}
	if action != escalation.ActionNone {
		n.log.Info("Timed escalation fired",
			logging.String("incident_id", incidentID),
			logging.String("action", string(action)))
	}
}

// compositeBroadcaster sends operator broadcasts to both the durable stream
// and connected websocket clients.
type compositeBroadcaster struct {
	stream *kafka.Notifier
	hub    *realtime.Publisher
}

func (b *compositeBroadcaster) Broadcast(ctx context.Context, groupID, operatorID, message string) {
	b.stream.Broadcast(ctx, groupID, operatorID, message)
	b.hub.Broadcast(ctx, groupID, operatorID, message)
}
