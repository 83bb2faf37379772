package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/havenloop/haven/internal/domain/membership"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// MemMembershipRepo is an in-memory membership.Repository.  It enforces the
// seat-quota invariant under its own mutex, mirroring the transactional
// guarantee of the Postgres implementation.
type MemMembershipRepo struct {
	mu          sync.Mutex
	groups      map[string]*membership.FamilyGroup
	byOwner     map[string]string
	invites     map[string]*membership.FamilyInvite
	memberships map[string]*membership.FamilyMembership
}

// NewMemMembershipRepo creates an empty in-memory registry store.
func NewMemMembershipRepo() *MemMembershipRepo {
	return &MemMembershipRepo{
		groups:      map[string]*membership.FamilyGroup{},
		byOwner:     map[string]string{},
		invites:     map[string]*membership.FamilyInvite{},
		memberships: map[string]*membership.FamilyMembership{},
	}
}

func (r *MemMembershipRepo) CreateGroup(ctx context.Context, group *membership.FamilyGroup, owner *membership.FamilyMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOwner[group.OwnerID]; ok {
		return apperrors.Conflict("owner already has a group")
	}
	g := *group
	m := *owner
	r.groups[g.ID] = &g
	r.byOwner[g.OwnerID] = g.ID
	r.memberships[m.ID] = &m
	return nil
}

func (r *MemMembershipRepo) GetGroup(ctx context.Context, id string) (*membership.FamilyGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeGroupNotFound, "group not found")
	}
	cp := *g
	return &cp, nil
}

func (r *MemMembershipRepo) GetGroupByOwner(ctx context.Context, ownerID string) (*membership.FamilyGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byOwner[ownerID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeGroupNotFound, "group not found")
	}
	cp := *r.groups[id]
	return &cp, nil
}

func (r *MemMembershipRepo) UpdateSeatQuota(ctx context.Context, groupID string, seatQuota int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return apperrors.New(apperrors.ErrCodeGroupNotFound, "group not found")
	}
	g.SeatQuota = seatQuota
	return nil
}

// seatsTaken counts quota-occupying memberships plus pending unexpired
// invites.  The owner's materialized membership row is exempt: the quota
// bounds invited seats.  Caller holds the mutex.
func (r *MemMembershipRepo) seatsTaken(g *membership.FamilyGroup, now time.Time) int {
	n := 0
	for _, m := range r.memberships {
		if m.GroupID == g.ID && m.MemberID != g.OwnerID && m.Status.CountsAgainstQuota() {
			n++
		}
	}
	for _, inv := range r.invites {
		if inv.GroupID == g.ID && inv.OccupiesSeat(now) {
			n++
		}
	}
	return n
}

func (r *MemMembershipRepo) CreateInvite(ctx context.Context, invite *membership.FamilyInvite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[invite.GroupID]
	if !ok {
		return apperrors.New(apperrors.ErrCodeGroupNotFound, "group not found")
	}
	if r.seatsTaken(g, time.Now().UTC()) >= g.SeatQuota {
		return apperrors.New(apperrors.ErrCodeSeatQuotaExceeded, "no free seat in group")
	}
	cp := *invite
	r.invites[cp.ID] = &cp
	return nil
}

func (r *MemMembershipRepo) GetInvite(ctx context.Context, id string) (*membership.FamilyInvite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInviteNotFound, "invite not found")
	}
	cp := *inv
	return &cp, nil
}

func (r *MemMembershipRepo) ConsumeInvite(ctx context.Context, inviteID string, m *membership.FamilyMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok {
		return apperrors.New(apperrors.ErrCodeInviteNotFound, "invite not found")
	}
	if inv.Status != membership.InvitePending {
		return apperrors.New(apperrors.ErrCodeInviteAlreadyConsumed, "invite already consumed")
	}
	inv.Status = membership.InviteConsumed
	cp := *m
	r.memberships[cp.ID] = &cp
	return nil
}

func (r *MemMembershipRepo) RevokeInvite(ctx context.Context, inviteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok {
		return apperrors.New(apperrors.ErrCodeInviteNotFound, "invite not found")
	}
	inv.Status = membership.InviteRevoked
	return nil
}

func (r *MemMembershipRepo) GetMembership(ctx context.Context, id string) (*membership.FamilyMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeMembershipNotFound, "membership not found")
	}
	cp := *m
	return &cp, nil
}

func (r *MemMembershipRepo) GetMembershipByGroupAndMember(ctx context.Context, groupID, memberID string) (*membership.FamilyMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.MemberID == memberID && m.Status != membership.MembershipCanceled {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeMembershipNotFound, "membership not found")
}

func (r *MemMembershipRepo) UpdateMembershipStatus(ctx context.Context, id string, status membership.MembershipStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return apperrors.New(apperrors.ErrCodeMembershipNotFound, "membership not found")
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemMembershipRepo) ListMembers(ctx context.Context, groupID string) ([]*membership.FamilyMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*membership.FamilyMembership
	for _, m := range r.memberships {
		if m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemMembershipRepo) ListGroupsForMember(ctx context.Context, memberID string) ([]*membership.FamilyGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]struct{}{}
	var out []*membership.FamilyGroup
	for _, m := range r.memberships {
		if m.MemberID != memberID || !m.Status.CountsAgainstQuota() {
			continue
		}
		if _, ok := seen[m.GroupID]; ok {
			continue
		}
		seen[m.GroupID] = struct{}{}
		cp := *r.groups[m.GroupID]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemMembershipRepo) ListActiveMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.Status == membership.MembershipActive {
			out = append(out, m.MemberID)
		}
	}
	return out, nil
}

// NopLockFactory hands out mutexes that always succeed.  The in-memory repo
// already serializes writes, so tests need no cross-process lock.
type NopLockFactory struct{}

type nopMutex struct{}

func (nopMutex) Lock(ctx context.Context) error   { return nil }
func (nopMutex) Unlock(ctx context.Context) error { return nil }

func (NopLockFactory) NewMutex(name string) membership.Mutex { return nopMutex{} }
