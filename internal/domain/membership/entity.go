// Package membership owns family groups, memberships, and invites, and
// enforces the seat-quota invariant that bounds who may join a circle.
package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BillingResponsibility states who pays for a member's seat.
type BillingResponsibility string

const (
	BillingOwner BillingResponsibility = "owner"
	BillingSelf  BillingResponsibility = "self"
)

// Valid reports whether the value is a known billing responsibility.
func (b BillingResponsibility) Valid() bool {
	return b == BillingOwner || b == BillingSelf
}

// MembershipStatus is the closed enumeration of membership states.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipActive   MembershipStatus = "active"
	MembershipCanceled MembershipStatus = "canceled"
)

// membershipTransitions is the compile-time transition table.  Any move not
// present here is rejected.
var membershipTransitions = map[MembershipStatus][]MembershipStatus{
	MembershipPending: {MembershipActive, MembershipCanceled},
	MembershipActive:  {MembershipCanceled},
	// canceled is terminal
}

// CanTransition reports whether from → to is a legal membership move.
func CanTransition(from, to MembershipStatus) bool {
	for _, t := range membershipTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CountsAgainstQuota reports whether a membership in this status occupies a seat.
func (s MembershipStatus) CountsAgainstQuota() bool {
	return s == MembershipPending || s == MembershipActive
}

// InviteStatus is the closed enumeration of invite states.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteConsumed InviteStatus = "consumed"
	InviteRevoked  InviteStatus = "revoked"
)

// FamilyGroup is the aggregate root for one family circle.  The owner is
// materialized as a regular membership row at creation so that every
// downstream query (authorized viewers, seat counts) has one uniform path.
type FamilyGroup struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	SeatQuota int       `json:"seat_quota"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFamilyGroup creates a group for the given owner.
func NewFamilyGroup(ownerID string, seatQuota int) (*FamilyGroup, error) {
	if ownerID == "" {
		return nil, errors.New("owner ID cannot be empty")
	}
	if seatQuota < 0 {
		return nil, errors.New("seat quota cannot be negative")
	}
	return &FamilyGroup{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		SeatQuota: seatQuota,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// FamilyMembership links one member identity to one group.
type FamilyMembership struct {
	ID        string                `json:"id"`
	GroupID   string                `json:"group_id"`
	MemberID  string                `json:"member_id"`
	Billing   BillingResponsibility `json:"billing_responsibility"`
	Status    MembershipStatus      `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewFamilyMembership creates a membership in the given initial status.
func NewFamilyMembership(groupID, memberID string, billing BillingResponsibility, status MembershipStatus) (*FamilyMembership, error) {
	if groupID == "" || memberID == "" {
		return nil, errors.New("group ID and member ID cannot be empty")
	}
	if !billing.Valid() {
		return nil, errors.New("unknown billing responsibility")
	}
	now := time.Now().UTC()
	return &FamilyMembership{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		MemberID:  memberID,
		Billing:   billing,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the membership to a new status, rejecting moves absent
// from the transition table.
func (m *FamilyMembership) Transition(to MembershipStatus) error {
	if !CanTransition(m.Status, to) {
		return errors.New("illegal membership transition from " + string(m.Status) + " to " + string(to))
	}
	m.Status = to
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// FamilyInvite is a pending offer of a seat.  It occupies a seat while
// pending and unexpired; revoked, consumed, and expired invites do not.
type FamilyInvite struct {
	ID        string                `json:"id"`
	GroupID   string                `json:"group_id"`
	Contact   string                `json:"contact"`
	Billing   BillingResponsibility `json:"billing_responsibility"`
	Status    InviteStatus          `json:"status"`
	ExpiresAt time.Time             `json:"expires_at"`
	CreatedAt time.Time             `json:"created_at"`
}

// NewFamilyInvite creates a pending invite with a bounded expiry.
func NewFamilyInvite(groupID, contact string, billing BillingResponsibility, ttl time.Duration) (*FamilyInvite, error) {
	if groupID == "" {
		return nil, errors.New("group ID cannot be empty")
	}
	if contact == "" {
		return nil, errors.New("invite contact cannot be empty")
	}
	if !billing.Valid() {
		return nil, errors.New("unknown billing responsibility")
	}
	if ttl <= 0 {
		return nil, errors.New("invite TTL must be positive")
	}
	now := time.Now().UTC()
	return &FamilyInvite{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Contact:   contact,
		Billing:   billing,
		Status:    InvitePending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// Expired reports whether the invite is past its expiry.
func (i *FamilyInvite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// OccupiesSeat reports whether the invite counts against the group quota.
func (i *FamilyInvite) OccupiesSeat(now time.Time) bool {
	return i.Status == InvitePending && !i.Expired(now)
}
