package testutil

import (
	"context"
	"sync"

	"github.com/havenloop/haven/internal/domain/presence"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// MemPresenceRepo is an in-memory presence.Repository.
type MemPresenceRepo struct {
	mu      sync.Mutex
	records map[string]*presence.Presence
}

// NewMemPresenceRepo creates an empty in-memory presence store.
func NewMemPresenceRepo() *MemPresenceRepo {
	return &MemPresenceRepo{records: map[string]*presence.Presence{}}
}

func (r *MemPresenceRepo) Save(ctx context.Context, p *presence.Presence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.records[cp.MemberID] = &cp
	return nil
}

func (r *MemPresenceRepo) Get(ctx context.Context, memberID string) (*presence.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[memberID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodePresenceNotFound, "no presence record for member")
	}
	cp := *p
	return &cp, nil
}

func (r *MemPresenceRepo) GetMany(ctx context.Context, memberIDs []string) ([]*presence.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*presence.Presence, 0, len(memberIDs))
	for _, id := range memberIDs {
		if p, ok := r.records[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemPresenceRepo) SetCadence(ctx context.Context, memberID string, cadenceSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[memberID]; ok {
		p.CadenceSeconds = cadenceSeconds
		return nil
	}
	// A cadence instruction may precede the first report; keep it so the
	// record picks it up on save.
	r.records[memberID] = &presence.Presence{MemberID: memberID, CadenceSeconds: cadenceSeconds}
	return nil
}
