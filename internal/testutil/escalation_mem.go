package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/havenloop/haven/internal/domain/escalation"
)

// MemEscalationRepo is an in-memory escalation.Repository.  It emulates the
// (incident, responder) uniqueness constraint: the first acknowledgement
// wins, later ones come back unchanged.
type MemEscalationRepo struct {
	mu     sync.Mutex
	acks   map[string]map[string]*escalation.Acknowledgement
	levels map[string]escalation.Level
}

// NewMemEscalationRepo creates an empty in-memory escalation store.
func NewMemEscalationRepo() *MemEscalationRepo {
	return &MemEscalationRepo{
		acks:   map[string]map[string]*escalation.Acknowledgement{},
		levels: map[string]escalation.Level{},
	}
}

func (r *MemEscalationRepo) Create(ctx context.Context, ack *escalation.Acknowledgement) (*escalation.Acknowledgement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byResponder, ok := r.acks[ack.IncidentID]
	if !ok {
		byResponder = map[string]*escalation.Acknowledgement{}
		r.acks[ack.IncidentID] = byResponder
	}
	if existing, ok := byResponder[ack.ResponderID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *ack
	byResponder[ack.ResponderID] = &cp
	out := cp
	return &out, nil
}

func (r *MemEscalationRepo) ListByIncident(ctx context.Context, incidentID string) ([]*escalation.Acknowledgement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*escalation.Acknowledgement
	for _, ack := range r.acks[incidentID] {
		cp := *ack
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcknowledgedAt.Before(out[j].AcknowledgedAt) })
	return out, nil
}

func (r *MemEscalationRepo) CountByIncident(ctx context.Context, incidentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.acks[incidentID]), nil
}

func (r *MemEscalationRepo) FiredLevel(ctx context.Context, incidentID string) (escalation.Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[incidentID], nil
}

func (r *MemEscalationRepo) RecordFiredLevel(ctx context.Context, incidentID string, level escalation.Level) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.levels[incidentID] >= level {
		return false, nil
	}
	r.levels[incidentID] = level
	return true, nil
}
