package escalation

import (
	"context"
)

// Repository is the persistence contract for acknowledgements and per-incident
// escalation state.
//
// Create must be idempotent under concurrency: a uniqueness constraint on
// (incident_id, responder_id) makes the first writer win, and every caller
// receives the stored row.
type Repository interface {
	Create(ctx context.Context, ack *Acknowledgement) (*Acknowledgement, error)
	ListByIncident(ctx context.Context, incidentID string) ([]*Acknowledgement, error)
	CountByIncident(ctx context.Context, incidentID string) (int, error)

	// FiredLevel returns the highest escalation rung recorded for the
	// incident, LevelNone when nothing fired yet.
	FiredLevel(ctx context.Context, incidentID string) (Level, error)

	// RecordFiredLevel raises the stored rung to level.  Returns false when a
	// concurrent sweep already recorded an equal or higher rung, in which
	// case the caller must not execute the action.
	RecordFiredLevel(ctx context.Context, incidentID string, level Level) (bool, error)
}
