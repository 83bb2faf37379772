package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/havenloop/haven/internal/domain/incident"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// MemIncidentRepo is an in-memory incident.Repository.  It emulates the
// partial unique constraint on (subject, non-terminal status) and the
// conditional status update of the Postgres implementation.
type MemIncidentRepo struct {
	mu      sync.Mutex
	events  map[string]*incident.Event
	samples map[string][]*incident.LocationSample
}

// NewMemIncidentRepo creates an empty in-memory incident store.
func NewMemIncidentRepo() *MemIncidentRepo {
	return &MemIncidentRepo{
		events:  map[string]*incident.Event{},
		samples: map[string][]*incident.LocationSample{},
	}
}

func (r *MemIncidentRepo) Create(ctx context.Context, ev *incident.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events {
		if existing.SubjectID == ev.SubjectID && !existing.Status.IsTerminal() {
			return apperrors.New(apperrors.ErrCodeIncidentAlreadyActive, "subject already has an open incident")
		}
	}
	cp := copyEvent(ev)
	r.events[cp.ID] = cp
	return nil
}

func (r *MemIncidentRepo) Get(ctx context.Context, id string) (*incident.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeIncidentNotFound, "incident not found")
	}
	return copyEvent(ev), nil
}

func (r *MemIncidentRepo) GetActiveBySubject(ctx context.Context, subjectID string) (*incident.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.SubjectID == subjectID && !ev.Status.IsTerminal() {
			return copyEvent(ev), nil
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeIncidentNotFound, "no open incident for subject")
}

func (r *MemIncidentRepo) UpdateStatus(ctx context.Context, id string, from, to incident.Status, resolvedAt *time.Time) (*incident.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeIncidentNotFound, "incident not found")
	}
	if ev.Status != from {
		return nil, apperrors.Conflict("incident status changed concurrently")
	}
	ev.Status = to
	ev.SequenceNo++
	ev.UpdatedAt = time.Now().UTC()
	if resolvedAt != nil {
		t := *resolvedAt
		ev.ResolvedAt = &t
	}
	return copyEvent(ev), nil
}

func (r *MemIncidentRepo) AppendNote(ctx context.Context, id string, note incident.Annotation) (*incident.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeIncidentNotFound, "incident not found")
	}
	ev.Notes = append(ev.Notes, note)
	ev.SequenceNo++
	ev.UpdatedAt = time.Now().UTC()
	return copyEvent(ev), nil
}

func (r *MemIncidentRepo) ListByStatus(ctx context.Context, status incident.Status, limit int) ([]*incident.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*incident.Event
	for _, ev := range r.events {
		if ev.Status == status {
			out = append(out, copyEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemIncidentRepo) AppendLocation(ctx context.Context, sample *incident.LocationSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sample
	r.samples[cp.IncidentID] = append(r.samples[cp.IncidentID], &cp)
	return nil
}

func (r *MemIncidentRepo) ListLocations(ctx context.Context, incidentID string) ([]*incident.LocationSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trail := r.samples[incidentID]
	out := make([]*incident.LocationSample, 0, len(trail))
	for _, s := range trail {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func copyEvent(ev *incident.Event) *incident.Event {
	cp := *ev
	cp.Notes = append([]incident.Annotation(nil), ev.Notes...)
	if ev.ResolvedAt != nil {
		t := *ev.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
