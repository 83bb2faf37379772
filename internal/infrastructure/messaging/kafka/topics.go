// Package kafka carries the notification fan-out: incident alerts, transition
// updates, location trail samples, escalation actions and operator broadcasts
// all leave the core as envelopes on these topics.  Delivery beyond the broker
// is at-least-once; consumers deduplicate on event ID and discard stale
// sequence numbers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
	"github.com/havenloop/haven/pkg/types/geo"
)

const (
	TopicIncidentNotify     = "haven.incident.notify"
	TopicIncidentTransition = "haven.incident.transition"
	TopicIncidentLocation   = "haven.incident.location"
	TopicEscalationAction   = "haven.escalation.action"
	TopicGroupBroadcast     = "haven.group.broadcast"
)

// Event type names carried in envelope headers.
const (
	EventIncidentTriggered    = "incident.triggered"
	EventIncidentTransitioned = "incident.transitioned"
	EventLocationAppended     = "incident.location_appended"
	EventEscalationFired      = "escalation.fired"
	EventOperatorBroadcast    = "operator.broadcast"
)

// EventEnvelope is the wire form of every published event.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// IncidentTriggeredPayload alerts every authorized viewer of the subject.
type IncidentTriggeredPayload struct {
	IncidentID string    `json:"incident_id"`
	SubjectID  string    `json:"subject_id"`
	Location   geo.Point `json:"location"`
	Address    string    `json:"address,omitempty"`
	Recipients []string  `json:"recipients"`
	SequenceNo int64     `json:"sequence_no"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncidentTransitionedPayload carries a lifecycle change to group channels.
type IncidentTransitionedPayload struct {
	IncidentID string    `json:"incident_id"`
	SubjectID  string    `json:"subject_id"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id"`
	GroupIDs   []string  `json:"group_ids"`
	SequenceNo int64     `json:"sequence_no"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LocationAppendedPayload streams a trail sample during an open incident.
type LocationAppendedPayload struct {
	IncidentID string    `json:"incident_id"`
	Location   geo.Point `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	GroupIDs   []string  `json:"group_ids"`
}

// EscalationFiredPayload records an executed escalation rung.  The
// emergency-services rung is always a prompt to a human, never a call.
type EscalationFiredPayload struct {
	IncidentID string    `json:"incident_id"`
	SubjectID  string    `json:"subject_id"`
	Action     string    `json:"action"`
	FiredAt    time.Time `json:"fired_at"`
}

// BroadcastPayload is an operator message to a whole group.
type BroadcastPayload struct {
	GroupID    string    `json:"group_id"`
	OperatorID string    `json:"operator_id"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

// NewEventEnvelope wraps a payload for publication.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// ToMessage renders the envelope as a producer message keyed for partition
// affinity (all events of one incident or group land in order).
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// ParseEnvelope decodes a consumed message back into an envelope.
func ParseEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// TopicConfig describes one topic to ensure at startup.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager ensures the fan-out topics exist before serving.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// NewTopicManagerWithConn wraps an existing connection (for testing).
func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		cfg.NumPartitions = 3
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs),
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic")
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureDefaultTopics creates every fan-out topic the core publishes to.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	for _, topic := range DefaultTopics() {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics sizes retention by how long the data matters: alerts are
// short-lived, transitions and escalations feed the audit surface.
func DefaultTopics() []TopicConfig {
	const day = int64(24 * 3600 * 1000)
	return []TopicConfig{
		{Name: TopicIncidentNotify, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 3 * day},
		{Name: TopicIncidentTransition, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 30 * day},
		{Name: TopicIncidentLocation, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 3 * day},
		{Name: TopicEscalationAction, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 90 * day},
		{Name: TopicGroupBroadcast, NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 7 * day},
	}
}
