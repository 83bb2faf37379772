package oversight_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/application/oversight"
	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/testutil"
	apperrors "github.com/havenloop/haven/pkg/errors"
	"github.com/havenloop/haven/pkg/types/geo"
)

type nopCadence struct{}

func (nopCadence) SetEmergencyCadence(context.Context, string) error { return nil }
func (nopCadence) SetIdleCadence(context.Context, string) error      { return nil }

type recordingBroadcaster struct {
	groups   []string
	messages []string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, groupID, _, message string) {
	b.groups = append(b.groups, groupID)
	b.messages = append(b.messages, message)
}

type fixture struct {
	svc         oversight.Service
	incidents   incident.Service
	escalations escalation.Service
	groups      membership.Service
	broadcast   *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testutil.NewMockLogger()

	groupRepo := testutil.NewMemMembershipRepo()
	groups := membership.NewService(groupRepo, testutil.NopLockFactory{}, membership.Config{InviteTTL: time.Hour}, log)

	incidentRepo := testutil.NewMemIncidentRepo()
	incidents := incident.NewService(incidentRepo, nopCadence{}, groups, nil, nil, nil, incident.Config{}, log)

	escalations := escalation.NewService(testutil.NewMemEscalationRepo(), incidentRepo, nil, escalation.Config{}, log)

	broadcast := &recordingBroadcaster{}
	return &fixture{
		svc:         oversight.NewService(incidents, escalations, groups, broadcast, log),
		incidents:   incidents,
		escalations: escalations,
		groups:      groups,
		broadcast:   broadcast,
	}
}

var parisLoc = geo.Point{Lat: 48.85, Lng: 2.35}

// ─────────────────────────────────────────────────────────────────────────────
// Incident queue and detail
// ─────────────────────────────────────────────────────────────────────────────

func TestService_ListIncidents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)
	_, err = f.groups.CreateGroup(ctx, "ben")
	require.NoError(t, err)

	first, err := f.incidents.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	_, err = f.incidents.Trigger(ctx, "ben", parisLoc)
	require.NoError(t, err)
	_, err = f.incidents.Resolve(ctx, first.ID, "ana")
	require.NoError(t, err)

	active, err := f.svc.ListIncidents(ctx, incident.StatusActive, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ben", active[0].SubjectID)

	resolved, err := f.svc.ListIncidents(ctx, incident.StatusResolved, 0)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "ana", resolved[0].SubjectID)
}

func TestService_GetIncidentDetail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)
	ev, err := f.incidents.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	_, err = f.incidents.AppendLocation(ctx, ev.ID, geo.Point{Lat: 48.86, Lng: 2.36}, time.Now().UTC())
	require.NoError(t, err)
	_, err = f.escalations.Acknowledge(ctx, ev.ID, "ben", "on my way")
	require.NoError(t, err)

	detail, err := f.svc.GetIncidentDetail(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, detail.Event.ID)
	require.Len(t, detail.Trail, 1)
	require.Len(t, detail.Acknowledgements, 1)
	assert.Equal(t, "ben", detail.Acknowledgements[0].ResponderID)
}

func TestService_GetIncidentDetail_Unknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.GetIncidentDetail(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIncidentNotFound, apperrors.GetCode(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Forced transitions
// ─────────────────────────────────────────────────────────────────────────────

func TestService_ForceTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)
	ev, err := f.incidents.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	moved, err := f.svc.ForceTransition(ctx, ev.ID, "op-1", incident.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, incident.StatusInProgress, moved.Status)

	closed, err := f.svc.ForceTransition(ctx, ev.ID, "op-1", incident.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, closed.Status)
	require.NotNil(t, closed.ResolvedAt)
}

func TestService_ForceTransition_IllegalStaysIllegal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)
	ev, err := f.incidents.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	_, err = f.incidents.Resolve(ctx, ev.ID, "ana")
	require.NoError(t, err)

	// Operators get no bypass of the state machine.
	_, err = f.svc.ForceTransition(ctx, ev.ID, "op-1", incident.StatusInProgress)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.GetCode(err))

	// Active is never a transition target.
	_, err = f.svc.ForceTransition(ctx, ev.ID, "op-1", incident.StatusActive)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestService_Annotate_TagsOperator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)
	ev, err := f.incidents.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	annotated, err := f.svc.Annotate(ctx, ev.ID, "op-1", "spoke with subject by phone")
	require.NoError(t, err)
	require.Len(t, annotated.Notes, 1)
	assert.Equal(t, "operator:op-1", annotated.Notes[0].ActorID)
	assert.Greater(t, annotated.SequenceNo, ev.SequenceNo)
}

// ─────────────────────────────────────────────────────────────────────────────
// Broadcasts
// ─────────────────────────────────────────────────────────────────────────────

func TestService_BroadcastMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)

	require.NoError(t, f.svc.BroadcastMessage(ctx, group.ID, "op-1", "network maintenance at noon"))
	require.Len(t, f.broadcast.groups, 1)
	assert.Equal(t, group.ID, f.broadcast.groups[0])
	assert.Equal(t, "network maintenance at noon", f.broadcast.messages[0])
}

func TestService_BroadcastMessage_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	group, err := f.groups.CreateGroup(ctx, "ana")
	require.NoError(t, err)

	err = f.svc.BroadcastMessage(ctx, group.ID, "op-1", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.broadcast.groups)

	err = f.svc.BroadcastMessage(ctx, "missing-group", "op-1", "hello")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGroupNotFound, apperrors.GetCode(err))
}
