package membership

import (
	"context"
	"sort"
	"time"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// Mutex is the slice of a distributed lock the registry needs while checking
// and consuming a seat.
type Mutex interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockFactory hands out named mutexes.  The Redis lock factory satisfies this
// through a small adapter at wiring time.
type LockFactory interface {
	NewMutex(name string) Mutex
}

// Config holds the registry's tunables.
type Config struct {
	// DefaultSeatQuota is assigned to a group at creation; billing later
	// adjusts it through UpdateSeatQuota.
	DefaultSeatQuota int

	// InviteTTL bounds how long an invite stays redeemable.
	InviteTTL time.Duration
}

// Service is the membership registry contract consumed by the presence
// service, the incident state machine, and the HTTP layer.
type Service interface {
	// CreateGroup is idempotent per owner: it returns the existing group if
	// one is already present.
	CreateGroup(ctx context.Context, ownerID string) (*FamilyGroup, error)

	// CreateInvite issues a seat-bounded invite.  Fails with
	// ErrCodeSeatQuotaExceeded when the group is full.
	CreateInvite(ctx context.Context, groupID, actorID, contact string, billing BillingResponsibility) (*FamilyInvite, error)

	// AcceptInvite converts the invite into a membership: active when the
	// owner pays, pending payment confirmation when the member pays.
	AcceptInvite(ctx context.Context, inviteID, memberID string) (*FamilyMembership, error)

	// RevokeInvite voids a pending invite, freeing its seat.  Consumed and
	// expired invites are left untouched (no-op, no error).
	RevokeInvite(ctx context.Context, inviteID, actorID string) error

	// CancelMembership revokes a membership (owner action or payment lapse).
	CancelMembership(ctx context.Context, membershipID string) error

	// ConfirmPayment is the billing callback for pending → active.
	ConfirmPayment(ctx context.Context, groupID, memberID string) error

	// LapsePayment is the billing callback for active → canceled.
	LapsePayment(ctx context.Context, groupID, memberID string) error

	// UpdateSeatQuota is the billing callback applied on plan changes.
	UpdateSeatQuota(ctx context.Context, groupID string, seatQuota int) error

	// AuthorizedViewers returns every identity allowed to see the subject:
	// all active members of each group the subject belongs to, plus each
	// group's owner.
	AuthorizedViewers(ctx context.Context, subjectID string) ([]string, error)

	// KnownIdentity reports whether the identity owns a group or holds a
	// pending or active membership anywhere.
	KnownIdentity(ctx context.Context, memberID string) (bool, error)

	// GroupIDsOf returns the IDs of the groups the identity belongs to.
	GroupIDsOf(ctx context.Context, memberID string) ([]string, error)

	GetGroup(ctx context.Context, groupID string) (*FamilyGroup, error)
	ListMembers(ctx context.Context, groupID string) ([]*FamilyMembership, error)
}

type service struct {
	repo  Repository
	locks LockFactory
	cfg   Config
	log   logging.Logger
}

// NewService creates the membership registry.
func NewService(repo Repository, locks LockFactory, cfg Config, log logging.Logger) Service {
	if cfg.DefaultSeatQuota <= 0 {
		cfg.DefaultSeatQuota = 5
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 7 * 24 * time.Hour
	}
	return &service{repo: repo, locks: locks, cfg: cfg, log: log.Named("membership")}
}

func (s *service) CreateGroup(ctx context.Context, ownerID string) (*FamilyGroup, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidation("owner ID is required")
	}

	if existing, err := s.repo.GetGroupByOwner(ctx, ownerID); err == nil {
		return existing, nil
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	group, err := NewFamilyGroup(ownerID, s.cfg.DefaultSeatQuota)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	ownerRow, err := NewFamilyMembership(group.ID, ownerID, BillingOwner, MembershipActive)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	if err := s.repo.CreateGroup(ctx, group, ownerRow); err != nil {
		// A concurrent CreateGroup for the same owner may have won; fall
		// back to the stored row to preserve idempotency.
		if apperrors.IsConflict(err) {
			return s.repo.GetGroupByOwner(ctx, ownerID)
		}
		return nil, err
	}

	s.log.Info("family group created",
		logging.String("group_id", group.ID),
		logging.String("owner_id", ownerID))
	return group, nil
}

func (s *service) CreateInvite(ctx context.Context, groupID, actorID, contact string, billing BillingResponsibility) (*FamilyInvite, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != actorID {
		return nil, apperrors.New(apperrors.ErrCodeNotGroupOwner, "only the group owner may invite")
	}

	invite, err := NewFamilyInvite(groupID, contact, billing, s.cfg.InviteTTL)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	// The repository enforces the quota inside a transaction; the lock
	// serializes invite bursts for one group across processes so the
	// row-level contention stays short.
	mu := s.locks.NewMutex("membership:invite:" + groupID)
	if err := mu.Lock(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeServiceUnavailable, "failed to serialize invite creation")
	}
	defer func() { _ = mu.Unlock(ctx) }()

	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	s.log.Info("invite created",
		logging.String("group_id", groupID),
		logging.String("invite_id", invite.ID),
		logging.String("billing", string(billing)))
	return invite, nil
}

func (s *service) AcceptInvite(ctx context.Context, inviteID, memberID string) (*FamilyMembership, error) {
	if memberID == "" {
		return nil, apperrors.NewValidation("member ID is required")
	}
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}

	switch invite.Status {
	case InviteConsumed:
		return nil, apperrors.New(apperrors.ErrCodeInviteAlreadyConsumed, "invite already consumed")
	case InviteRevoked:
		return nil, apperrors.New(apperrors.ErrCodeInviteNotFound, "invite was revoked")
	}
	if invite.Expired(time.Now().UTC()) {
		return nil, apperrors.New(apperrors.ErrCodeInviteExpired, "invite expired").
			WithDetail("expired_at=" + invite.ExpiresAt.Format(time.RFC3339))
	}

	// Owner-paid seats activate immediately; self-paid seats wait for the
	// billing ConfirmPayment callback.
	initial := MembershipActive
	if invite.Billing == BillingSelf {
		initial = MembershipPending
	}
	m, err := NewFamilyMembership(invite.GroupID, memberID, invite.Billing, initial)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	if err := s.repo.ConsumeInvite(ctx, inviteID, m); err != nil {
		return nil, err
	}

	s.log.Info("invite accepted",
		logging.String("invite_id", inviteID),
		logging.String("member_id", memberID),
		logging.String("status", string(initial)))
	return m, nil
}

func (s *service) RevokeInvite(ctx context.Context, inviteID, actorID string) error {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	group, err := s.repo.GetGroup(ctx, invite.GroupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return apperrors.New(apperrors.ErrCodeNotGroupOwner, "only the group owner may revoke invites")
	}

	// Consumed and expired invites are left alone: revocation is a silent
	// no-op there.
	if invite.Status != InvitePending || invite.Expired(time.Now().UTC()) {
		return nil
	}
	return s.repo.RevokeInvite(ctx, inviteID)
}

func (s *service) CancelMembership(ctx context.Context, membershipID string) error {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if !CanTransition(m.Status, MembershipCanceled) {
		return apperrors.New(apperrors.ErrCodeConflict, "membership already canceled")
	}
	return s.repo.UpdateMembershipStatus(ctx, membershipID, MembershipCanceled)
}

func (s *service) ConfirmPayment(ctx context.Context, groupID, memberID string) error {
	return s.moveMembership(ctx, groupID, memberID, MembershipPending, MembershipActive)
}

func (s *service) LapsePayment(ctx context.Context, groupID, memberID string) error {
	return s.moveMembership(ctx, groupID, memberID, MembershipActive, MembershipCanceled)
}

func (s *service) moveMembership(ctx context.Context, groupID, memberID string, from, to MembershipStatus) error {
	m, err := s.repo.GetMembershipByGroupAndMember(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if m.Status != from {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"membership is %s, expected %s", m.Status, from)
	}
	if err := s.repo.UpdateMembershipStatus(ctx, m.ID, to); err != nil {
		return err
	}
	s.log.Info("membership status changed",
		logging.String("group_id", groupID),
		logging.String("member_id", memberID),
		logging.String("from", string(from)),
		logging.String("to", string(to)))
	return nil
}

func (s *service) UpdateSeatQuota(ctx context.Context, groupID string, seatQuota int) error {
	if seatQuota < 0 {
		return apperrors.NewValidation("seat quota cannot be negative")
	}
	return s.repo.UpdateSeatQuota(ctx, groupID, seatQuota)
}

func (s *service) AuthorizedViewers(ctx context.Context, subjectID string) ([]string, error) {
	groups, err := s.repo.ListGroupsForMember(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, g := range groups {
		seen[g.OwnerID] = struct{}{}
		memberIDs, err := s.repo.ListActiveMemberIDs(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range memberIDs {
			seen[id] = struct{}{}
		}
	}

	viewers := make([]string, 0, len(seen))
	for id := range seen {
		viewers = append(viewers, id)
	}
	sort.Strings(viewers)
	return viewers, nil
}

func (s *service) KnownIdentity(ctx context.Context, memberID string) (bool, error) {
	if _, err := s.repo.GetGroupByOwner(ctx, memberID); err == nil {
		return true, nil
	} else if !apperrors.IsNotFound(err) {
		return false, err
	}
	groups, err := s.repo.ListGroupsForMember(ctx, memberID)
	if err != nil {
		return false, err
	}
	return len(groups) > 0, nil
}

func (s *service) GroupIDsOf(ctx context.Context, memberID string) ([]string, error) {
	groups, err := s.repo.ListGroupsForMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (s *service) GetGroup(ctx context.Context, groupID string) (*FamilyGroup, error) {
	return s.repo.GetGroup(ctx, groupID)
}

func (s *service) ListMembers(ctx context.Context, groupID string) ([]*FamilyMembership, error) {
	return s.repo.ListMembers(ctx, groupID)
}
