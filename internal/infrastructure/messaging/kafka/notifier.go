package kafka

import (
	"context"
	"time"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
)

// Notifier publishes incident and escalation events to the fan-out topics.
// Every method is best-effort: a broker failure is logged and the core moves
// on, because incident state has already been committed.
type Notifier struct {
	producer *Producer
	source   string
	log      logging.Logger
}

func NewNotifier(producer *Producer, source string, log logging.Logger) *Notifier {
	if source == "" {
		source = "haven-core"
	}
	return &Notifier{producer: producer, source: source, log: log.Named("notifier")}
}

func (n *Notifier) publish(ctx context.Context, topic, key, eventType string, payload interface{}) {
	env, err := NewEventEnvelope(eventType, n.source, payload)
	if err != nil {
		n.log.Error("Failed to build event envelope", logging.String("event_type", eventType), logging.Err(err))
		return
	}
	if err := n.producer.PublishEnvelope(ctx, topic, key, env); err != nil {
		n.log.Error("Failed to publish event",
			logging.String("topic", topic),
			logging.String("event_type", eventType),
			logging.Err(err))
	}
}

func (n *Notifier) IncidentTriggered(ctx context.Context, ev *incident.Event, recipients []string) {
	n.publish(ctx, TopicIncidentNotify, ev.ID, EventIncidentTriggered, IncidentTriggeredPayload{
		IncidentID: ev.ID,
		SubjectID:  ev.SubjectID,
		Location:   ev.TriggerLocation,
		Address:    ev.Address,
		Recipients: recipients,
		SequenceNo: ev.SequenceNo,
		CreatedAt:  ev.CreatedAt,
	})
}

func (n *Notifier) IncidentTransitioned(ctx context.Context, ev *incident.Event, actorID string, groupIDs []string) {
	n.publish(ctx, TopicIncidentTransition, ev.ID, EventIncidentTransitioned, IncidentTransitionedPayload{
		IncidentID: ev.ID,
		SubjectID:  ev.SubjectID,
		Status:     string(ev.Status),
		ActorID:    actorID,
		GroupIDs:   groupIDs,
		SequenceNo: ev.SequenceNo,
		OccurredAt: ev.UpdatedAt,
	})
}

func (n *Notifier) LocationAppended(ctx context.Context, sample *incident.LocationSample, groupIDs []string) {
	n.publish(ctx, TopicIncidentLocation, sample.IncidentID, EventLocationAppended, LocationAppendedPayload{
		IncidentID: sample.IncidentID,
		Location:   sample.Location,
		Timestamp:  sample.Timestamp,
		GroupIDs:   groupIDs,
	})
}

// Escalate records an executed escalation rung on the action topic.  The
// publish is still best-effort, but the rung was durably claimed before this
// point, so a lost message never causes a duplicate action.
func (n *Notifier) Escalate(ctx context.Context, ev *incident.Event, action escalation.Action) {
	n.publish(ctx, TopicEscalationAction, ev.ID, EventEscalationFired, EscalationFiredPayload{
		IncidentID: ev.ID,
		SubjectID:  ev.SubjectID,
		Action:     string(action),
		FiredAt:    time.Now().UTC(),
	})
}

// Broadcast sends an operator message to every member of a group.
func (n *Notifier) Broadcast(ctx context.Context, groupID, operatorID, message string) {
	n.publish(ctx, TopicGroupBroadcast, groupID, EventOperatorBroadcast, BroadcastPayload{
		GroupID:    groupID,
		OperatorID: operatorID,
		Message:    message,
		SentAt:     time.Now().UTC(),
	})
}
