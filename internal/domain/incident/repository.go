package incident

import (
	"context"
	"time"
)

// Repository is the persistence contract for incident events and their
// location trails.
//
// Create must be atomic per subject: the "no non-terminal event exists" check
// and the insert may not race.  Implementations enforce this with a partial
// unique constraint on (subject_id, non-terminal status) and surface the
// violation as ErrCodeIncidentAlreadyActive.
type Repository interface {
	Create(ctx context.Context, ev *Event) error
	Get(ctx context.Context, id string) (*Event, error)

	// GetActiveBySubject returns the subject's non-terminal event, if any.
	GetActiveBySubject(ctx context.Context, subjectID string) (*Event, error)

	// UpdateStatus moves the event from → to, stamps resolvedAt for terminal
	// targets and bumps the sequence number, all conditionally on the stored
	// status still being from.  A lost race surfaces as ErrCodeConflict.
	UpdateStatus(ctx context.Context, id string, from, to Status, resolvedAt *time.Time) (*Event, error)

	// AppendNote adds an audit note and bumps the sequence number.  Legal in
	// every status, terminal included.
	AppendNote(ctx context.Context, id string, note Annotation) (*Event, error)

	ListByStatus(ctx context.Context, status Status, limit int) ([]*Event, error)

	// AppendLocation writes one trail point.  Samples are never updated.
	AppendLocation(ctx context.Context, sample *LocationSample) error

	// ListLocations returns the trail in timestamp order.
	ListLocations(ctx context.Context, incidentID string) ([]*LocationSample, error)
}
