// Package membership_test provides unit tests for the membership registry.
package membership_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/testutil"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

func newTestService(cfg membership.Config) (membership.Service, *testutil.MemMembershipRepo) {
	repo := testutil.NewMemMembershipRepo()
	svc := membership.NewService(repo, testutil.NopLockFactory{}, cfg, testutil.NewMockLogger())
	return svc, repo
}

// ─────────────────────────────────────────────────────────────────────────────
// Group creation
// ─────────────────────────────────────────────────────────────────────────────

func TestService_CreateGroup_IdempotentPerOwner(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g1, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, g1)

	g2, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, g1.ID, g2.ID)
}

func TestService_CreateGroup_MaterializesOwnerMembership(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "owner-1", members[0].MemberID)
	assert.Equal(t, membership.MembershipActive, members[0].Status)
}

// ─────────────────────────────────────────────────────────────────────────────
// Seat quota
// ─────────────────────────────────────────────────────────────────────────────

// Two invites fill a quota of two; the third fails, and freeing a seat lets
// it through again.
func TestService_SeatQuota_ExhaustAndFree(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{DefaultSeatQuota: 2})
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)

	inv1, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	require.NoError(t, err)
	inv2, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ben@example.com", membership.BillingOwner)
	require.NoError(t, err)

	m1, err := svc.AcceptInvite(ctx, inv1.ID, "ana")
	require.NoError(t, err)
	_, err = svc.AcceptInvite(ctx, inv2.ID, "ben")
	require.NoError(t, err)

	_, err = svc.CreateInvite(ctx, g.ID, "owner-1", "cam@example.com", membership.BillingOwner)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSeatQuotaExceeded, apperrors.GetCode(err))

	require.NoError(t, svc.CancelMembership(ctx, m1.ID))

	_, err = svc.CreateInvite(ctx, g.ID, "owner-1", "cam@example.com", membership.BillingOwner)
	require.NoError(t, err)
}

func TestService_SeatQuota_PendingInvitesOccupySeats(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{DefaultSeatQuota: 1})
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)

	_, err = svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	require.NoError(t, err)

	// Unconsumed invite holds the only seat.
	_, err = svc.CreateInvite(ctx, g.ID, "owner-1", "ben@example.com", membership.BillingOwner)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSeatQuotaExceeded, apperrors.GetCode(err))
}

func TestService_SeatQuota_HoldsUnderConcurrentInvites(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{DefaultSeatQuota: 1})
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateInvite(ctx, g.ID, "owner-1", "x@example.com", membership.BillingOwner)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperrors.ErrCodeSeatQuotaExceeded, apperrors.GetCode(err))
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestService_CreateInvite_OnlyOwnerMayInvite(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "owner-1")
	require.NoError(t, err)

	_, err = svc.CreateInvite(ctx, g.ID, "stranger", "ana@example.com", membership.BillingOwner)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotGroupOwner, apperrors.GetCode(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Invite acceptance
// ─────────────────────────────────────────────────────────────────────────────

func TestService_AcceptInvite_OwnerPaidActivatesImmediately(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	require.NoError(t, err)

	m, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, membership.MembershipActive, m.Status)
}

func TestService_AcceptInvite_SelfPaidWaitsForPayment(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingSelf)
	require.NoError(t, err)

	m, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, membership.MembershipPending, m.Status)

	require.NoError(t, svc.ConfirmPayment(ctx, g.ID, "ana"))
	updated, err := svc.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	for _, mm := range updated {
		if mm.MemberID == "ana" {
			assert.Equal(t, membership.MembershipActive, mm.Status)
		}
	}
}

func TestService_AcceptInvite_SecondAcceptFails(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)

	_, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)

	_, err = svc.AcceptInvite(ctx, inv.ID, "ben")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInviteAlreadyConsumed, apperrors.GetCode(err))
}

func TestService_AcceptInvite_Expired(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{InviteTTL: time.Nanosecond})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.AcceptInvite(ctx, inv.ID, "ana")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInviteExpired, apperrors.GetCode(err))
}

func TestService_RevokeInvite(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{DefaultSeatQuota: 1})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, err := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	require.NoError(t, err)

	// Only the owner may revoke.
	err = svc.RevokeInvite(ctx, inv.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotGroupOwner, apperrors.GetCode(err))

	require.NoError(t, svc.RevokeInvite(ctx, inv.ID, "owner-1"))

	// Revocation freed the seat.
	_, err = svc.CreateInvite(ctx, g.ID, "owner-1", "ben@example.com", membership.BillingOwner)
	require.NoError(t, err)

	// Accepting a revoked invite reads as not found.
	_, err = svc.AcceptInvite(ctx, inv.ID, "ana")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInviteNotFound, apperrors.GetCode(err))
}

func TestService_RevokeInvite_ConsumedIsSilentNoop(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	_, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)

	assert.NoError(t, svc.RevokeInvite(ctx, inv.ID, "owner-1"))
	assert.NoError(t, svc.RevokeInvite(ctx, "no-such-invite", "owner-1"))

	// The membership created from the invite is untouched.
	members, err := svc.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

// ─────────────────────────────────────────────────────────────────────────────
// Authorized viewers
// ─────────────────────────────────────────────────────────────────────────────

func TestService_AuthorizedViewers(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{DefaultSeatQuota: 5})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	invA, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	invB, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ben@example.com", membership.BillingSelf)
	_, err := svc.AcceptInvite(ctx, invA.ID, "ana")
	require.NoError(t, err)
	_, err = svc.AcceptInvite(ctx, invB.ID, "ben")
	require.NoError(t, err)

	// ben is pending payment: visible as a member but not yet a viewer.
	viewers, err := svc.AuthorizedViewers(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "owner-1"}, viewers)

	require.NoError(t, svc.ConfirmPayment(ctx, g.ID, "ben"))
	viewers, err = svc.AuthorizedViewers(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "ben", "owner-1"}, viewers)
}

func TestService_KnownIdentity(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	_, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)

	for _, id := range []string{"owner-1", "ana"} {
		known, err := svc.KnownIdentity(ctx, id)
		require.NoError(t, err)
		assert.True(t, known, id)
	}

	known, err := svc.KnownIdentity(ctx, "stranger")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestService_LapsePayment(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(membership.Config{})
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "owner-1")
	inv, _ := svc.CreateInvite(ctx, g.ID, "owner-1", "ana@example.com", membership.BillingOwner)
	_, err := svc.AcceptInvite(ctx, inv.ID, "ana")
	require.NoError(t, err)

	require.NoError(t, svc.LapsePayment(ctx, g.ID, "ana"))

	// Lapsing twice conflicts: the membership is no longer active.
	err = svc.LapsePayment(ctx, g.ID, "ana")
	require.Error(t, err)
}
