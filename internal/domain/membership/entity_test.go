package membership_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/membership"
)

func TestMembershipTransitions(t *testing.T) {
	t.Parallel()

	assert.True(t, membership.CanTransition(membership.MembershipPending, membership.MembershipActive))
	assert.True(t, membership.CanTransition(membership.MembershipPending, membership.MembershipCanceled))
	assert.True(t, membership.CanTransition(membership.MembershipActive, membership.MembershipCanceled))

	// canceled is terminal
	assert.False(t, membership.CanTransition(membership.MembershipCanceled, membership.MembershipActive))
	assert.False(t, membership.CanTransition(membership.MembershipCanceled, membership.MembershipPending))
	assert.False(t, membership.CanTransition(membership.MembershipActive, membership.MembershipPending))
}

func TestMembership_Transition_RejectsIllegalMove(t *testing.T) {
	t.Parallel()

	m, err := membership.NewFamilyMembership("g1", "m1", membership.BillingOwner, membership.MembershipCanceled)
	require.NoError(t, err)

	err = m.Transition(membership.MembershipActive)
	require.Error(t, err)
	assert.Equal(t, membership.MembershipCanceled, m.Status)
}

func TestCountsAgainstQuota(t *testing.T) {
	t.Parallel()

	assert.True(t, membership.MembershipPending.CountsAgainstQuota())
	assert.True(t, membership.MembershipActive.CountsAgainstQuota())
	assert.False(t, membership.MembershipCanceled.CountsAgainstQuota())
}

func TestFamilyInvite_ExpiryAndSeat(t *testing.T) {
	t.Parallel()

	inv, err := membership.NewFamilyInvite("g1", "ana@example.com", membership.BillingOwner, time.Hour)
	require.NoError(t, err)

	now := time.Now().UTC()
	assert.False(t, inv.Expired(now))
	assert.True(t, inv.OccupiesSeat(now))

	later := now.Add(2 * time.Hour)
	assert.True(t, inv.Expired(later))
	assert.False(t, inv.OccupiesSeat(later))

	inv.Status = membership.InviteRevoked
	assert.False(t, inv.OccupiesSeat(now))
}

func TestNewFamilyInvite_Validation(t *testing.T) {
	t.Parallel()

	_, err := membership.NewFamilyInvite("", "ana@example.com", membership.BillingOwner, time.Hour)
	assert.Error(t, err)

	_, err = membership.NewFamilyInvite("g1", "", membership.BillingOwner, time.Hour)
	assert.Error(t, err)

	_, err = membership.NewFamilyInvite("g1", "ana@example.com", membership.BillingResponsibility("split"), time.Hour)
	assert.Error(t, err)
}
