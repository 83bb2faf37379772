// Package incident owns the lifecycle of an emergency event, from SOS trigger
// to terminal resolution.
package incident

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/haven/pkg/types/geo"
)

// Status is the lifecycle state of an incident event.
type Status string

const (
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusCanceled   Status = "canceled"
)

// incidentTransitions is the closed transition table.  An incident may skip
// in_progress entirely; resolved and canceled are final.
var incidentTransitions = map[Status][]Status{
	StatusActive:     {StatusInProgress, StatusResolved, StatusCanceled},
	StatusInProgress: {StatusResolved, StatusCanceled},
	StatusResolved:   {},
	StatusCanceled:   {},
}

// CanTransition reports whether from → to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range incidentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
func (s Status) IsTerminal() bool {
	return len(incidentTransitions[s]) == 0
}

// IsValid reports whether the value is a known status.
func (s Status) IsValid() bool {
	_, ok := incidentTransitions[s]
	return ok
}

// Annotation is one append-only audit note on an incident.  Notes are never
// updated or removed, and remain writable after the incident is terminal.
type Annotation struct {
	ActorID   string    `json:"actor_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one emergency session for a subject.  At most one non-terminal
// event exists per subject at any instant; the storage layer enforces that
// with a partial unique constraint.
type Event struct {
	ID              string       `json:"id"`
	SubjectID       string       `json:"subject_id"`
	Status          Status       `json:"status"`
	TriggerLocation geo.Point    `json:"trigger_location"`
	Address         string       `json:"address,omitempty"`
	Notes           []Annotation `json:"notes,omitempty"`

	// SequenceNo increases on every write to the event so readers on an
	// unordered transport can discard stale updates.
	SequenceNo int64 `json:"sequence_no"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// NewEvent creates an active incident for the subject at the trigger location.
func NewEvent(subjectID string, location geo.Point) (*Event, error) {
	if subjectID == "" {
		return nil, errors.New("subject ID cannot be empty")
	}
	if err := location.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Event{
		ID:              uuid.New().String(),
		SubjectID:       subjectID,
		Status:          StatusActive,
		TriggerLocation: location,
		SequenceNo:      1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// LocationSample is one point on an incident's append-only location trail.
// Immutable once written; ordered by timestamp.
type LocationSample struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Location   geo.Point `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLocationSample creates a trail point for the incident.
func NewLocationSample(incidentID string, location geo.Point, at time.Time) (*LocationSample, error) {
	if incidentID == "" {
		return nil, errors.New("incident ID cannot be empty")
	}
	if err := location.Validate(); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &LocationSample{
		ID:         uuid.New().String(),
		IncidentID: incidentID,
		Location:   location,
		Timestamp:  at.UTC(),
	}, nil
}
