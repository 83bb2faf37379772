// Package realtime fans change events out to connected clients.  Channels are
// named per group ("group:<id>") and per member ("member:<id>"); subscribers
// pick the channels they are authorized for at upgrade time.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
)

// EventKind names what changed.
type EventKind string

const (
	KindPresenceChanged      EventKind = "presence.changed"
	KindCadenceChanged       EventKind = "cadence.changed"
	KindIncidentTriggered    EventKind = "incident.triggered"
	KindIncidentTransitioned EventKind = "incident.transitioned"
	KindLocationAppended     EventKind = "incident.location_appended"
	KindBroadcast            EventKind = "broadcast"
)

// ChangeEvent is one realtime update.  Seq lets clients discard out-of-order
// incident updates; presence events carry zero and rely on last-write-wins.
type ChangeEvent struct {
	Kind      EventKind   `json:"kind"`
	Channel   string      `json:"channel"`
	Seq       int64       `json:"seq,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// GroupChannel builds the canonical channel name for a family group.
func GroupChannel(groupID string) string { return "group:" + groupID }

// MemberChannel builds the canonical channel name for a single member.
func MemberChannel(memberID string) string { return "member:" + memberID }

// Subscription is one client's view of the hub.  Events arrive on C; when the
// subscriber falls too far behind, the hub closes C and drops it.
type Subscription struct {
	id       string
	channels map[string]struct{}
	events   chan ChangeEvent
	closed   bool
	hub      *Hub
}

// C is the event stream.  The channel closes when the subscription ends.
func (s *Subscription) C() <-chan ChangeEvent { return s.events }

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub routes events to subscriptions.  Publishing never blocks: a subscriber
// whose buffer is full is disconnected rather than stalling the producer.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{} // channel name → subscriptions
	buffer int
	log    logging.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates the hub.  buffer is the per-subscriber queue depth; values
// below 1 default to 16.
func NewHub(buffer int, log logging.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log.Named("realtime"),
	}
}

// Subscribe attaches a client to the given channels.
func (h *Hub) Subscribe(channels []string) *Subscription {
	sub := &Subscription{
		id:       uuid.New().String(),
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan ChangeEvent, h.buffer),
		hub:      h,
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}

	h.mu.Lock()
	for ch := range sub.channels {
		if h.subs[ch] == nil {
			h.subs[ch] = make(map[*Subscription]struct{})
		}
		h.subs[ch][sub] = struct{}{}
	}
	h.mu.Unlock()

	h.log.Debug("Subscriber attached",
		logging.String("subscription_id", sub.id),
		logging.Int("channels", len(channels)))
	return sub
}

// unsubscribe closes the event channel under the write lock, so it can never
// interleave with a send from Publish (which holds the read lock).
func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	for ch := range sub.channels {
		if set, ok := h.subs[ch]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, ch)
			}
		}
	}
	close(sub.events)
}

// Publish delivers an event to every subscriber of its channel.  A subscriber
// that cannot keep up is dropped so one slow reader never delays the rest.
func (h *Hub) Publish(ev ChangeEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	var stale []*Subscription
	h.mu.RLock()
	for sub := range h.subs[ev.Channel] {
		select {
		case sub.events <- ev:
			h.delivered.Add(1)
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		h.dropped.Add(1)
		h.log.Warn("Dropping slow subscriber",
			logging.String("subscription_id", sub.id),
			logging.String("channel", ev.Channel))
		h.unsubscribe(sub)
	}
}

// SubscriberCount reports attached subscriptions for a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Stats returns delivered and dropped event counts.
func (h *Hub) Stats() (delivered, dropped int64) {
	return h.delivered.Load(), h.dropped.Load()
}
