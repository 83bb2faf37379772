package realtime

import (
	"context"

	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/domain/presence"
)

// Publisher adapts the hub to the domain fan-out boundaries.  The presence
// service and incident state machine publish through their own narrow
// interfaces; both land here.
type Publisher struct {
	hub *Hub
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// PresenceChanged pushes a fresh snapshot to every group the member is in.
func (p *Publisher) PresenceChanged(groupIDs []string, snap *presence.Snapshot) {
	for _, groupID := range groupIDs {
		p.hub.Publish(ChangeEvent{
			Kind:    KindPresenceChanged,
			Channel: GroupChannel(groupID),
			Payload: snap,
		})
	}
}

// CadenceChanged tells the member's own device to adjust its reporting rate.
func (p *Publisher) CadenceChanged(memberID string, cadenceSeconds int) {
	p.hub.Publish(ChangeEvent{
		Kind:    KindCadenceChanged,
		Channel: MemberChannel(memberID),
		Payload: map[string]interface{}{
			"member_id":       memberID,
			"cadence_seconds": cadenceSeconds,
		},
	})
}

// IncidentTriggered alerts each recipient on their personal channel; the app
// surfaces it as a full-screen alert even when no group view is open.
func (p *Publisher) IncidentTriggered(_ context.Context, ev *incident.Event, recipients []string) {
	for _, memberID := range recipients {
		p.hub.Publish(ChangeEvent{
			Kind:    KindIncidentTriggered,
			Channel: MemberChannel(memberID),
			Seq:     ev.SequenceNo,
			Payload: ev,
		})
	}
}

// IncidentTransitioned updates group views; Seq lets clients drop stale frames.
func (p *Publisher) IncidentTransitioned(_ context.Context, ev *incident.Event, actorID string, groupIDs []string) {
	for _, groupID := range groupIDs {
		p.hub.Publish(ChangeEvent{
			Kind:    KindIncidentTransitioned,
			Channel: GroupChannel(groupID),
			Seq:     ev.SequenceNo,
			Payload: map[string]interface{}{
				"incident": ev,
				"actor_id": actorID,
			},
		})
	}
}

// LocationAppended streams a trail sample to group views.
func (p *Publisher) LocationAppended(_ context.Context, sample *incident.LocationSample, groupIDs []string) {
	for _, groupID := range groupIDs {
		p.hub.Publish(ChangeEvent{
			Kind:    KindLocationAppended,
			Channel: GroupChannel(groupID),
			Payload: sample,
		})
	}
}

// Broadcast delivers an operator message to a group channel.
func (p *Publisher) Broadcast(_ context.Context, groupID, operatorID, message string) {
	p.hub.Publish(ChangeEvent{
		Kind:    KindBroadcast,
		Channel: GroupChannel(groupID),
		Payload: map[string]interface{}{
			"group_id":    groupID,
			"operator_id": operatorID,
			"message":     message,
		},
	})
}
