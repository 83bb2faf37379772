package membership

import (
	"context"
)

// Repository defines the persistence contract for the membership registry.
// Implementations must make CreateInvite and ConsumeInvite atomic with
// respect to the seat-quota invariant: two concurrent invites must never both
// succeed when only one seat remains.
type Repository interface {
	// CreateGroup persists the group and its owner membership in one atomic
	// write.
	CreateGroup(ctx context.Context, group *FamilyGroup, owner *FamilyMembership) error
	GetGroup(ctx context.Context, id string) (*FamilyGroup, error)
	GetGroupByOwner(ctx context.Context, ownerID string) (*FamilyGroup, error)
	UpdateSeatQuota(ctx context.Context, groupID string, seatQuota int) error

	// CreateInvite inserts the invite only if the group has a free seat,
	// counting pending/active memberships plus pending unexpired invites.
	// The owner's own membership row is exempt: the quota bounds invited
	// seats.  Returns ErrCodeSeatQuotaExceeded when no seat is free.
	CreateInvite(ctx context.Context, invite *FamilyInvite) error
	GetInvite(ctx context.Context, id string) (*FamilyInvite, error)

	// ConsumeInvite marks the invite consumed and inserts the membership in
	// one atomic write.
	ConsumeInvite(ctx context.Context, inviteID string, m *FamilyMembership) error

	// RevokeInvite marks a pending invite revoked, freeing its seat.
	RevokeInvite(ctx context.Context, inviteID string) error

	GetMembership(ctx context.Context, id string) (*FamilyMembership, error)
	GetMembershipByGroupAndMember(ctx context.Context, groupID, memberID string) (*FamilyMembership, error)
	UpdateMembershipStatus(ctx context.Context, id string, status MembershipStatus) error

	// ListMembers returns all memberships of a group, any status.
	ListMembers(ctx context.Context, groupID string) ([]*FamilyMembership, error)

	// ListGroupsForMember returns the groups in which the identity holds a
	// pending or active membership.
	ListGroupsForMember(ctx context.Context, memberID string) ([]*FamilyGroup, error)

	// ListActiveMemberIDs returns the member identities with an active
	// membership in the group.
	ListActiveMemberIDs(ctx context.Context, groupID string) ([]string, error)
}
