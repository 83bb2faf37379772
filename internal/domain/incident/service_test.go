// Package incident_test provides unit tests for the incident state machine.
package incident_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/testutil"
	apperrors "github.com/havenloop/haven/pkg/errors"
	"github.com/havenloop/haven/pkg/types/geo"
)

type recordingCadence struct {
	mu        sync.Mutex
	emergency []string
	idle      []string
}

func (c *recordingCadence) SetEmergencyCadence(ctx context.Context, subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emergency = append(c.emergency, subjectID)
	return nil
}

func (c *recordingCadence) SetIdleCadence(ctx context.Context, subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = append(c.idle, subjectID)
	return nil
}

type stubViewers struct {
	viewers []string
	groups  []string
}

func (s stubViewers) AuthorizedViewers(ctx context.Context, subjectID string) ([]string, error) {
	return s.viewers, nil
}

func (s stubViewers) GroupIDsOf(ctx context.Context, memberID string) ([]string, error) {
	return s.groups, nil
}

type recordingNotifier struct {
	mu          sync.Mutex
	triggered   []string
	transitions []string
	samples     int
}

func (n *recordingNotifier) IncidentTriggered(ctx context.Context, ev *incident.Event, recipients []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.triggered = append(n.triggered, ev.ID)
}

func (n *recordingNotifier) IncidentTransitioned(ctx context.Context, ev *incident.Event, actorID string, groupIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, string(ev.Status))
}

func (n *recordingNotifier) LocationAppended(ctx context.Context, sample *incident.LocationSample, groupIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.samples++
}

type stubGeocoder struct{ address string }

func (g stubGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	return g.address, nil
}

type recordingTimers struct {
	mu       sync.Mutex
	canceled []string
}

func (t *recordingTimers) CancelIncident(incidentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = append(t.canceled, incidentID)
}

type fixture struct {
	svc      incident.Service
	repo     *testutil.MemIncidentRepo
	cadence  *recordingCadence
	notifier *recordingNotifier
	timers   *recordingTimers
}

func newFixture(cfg incident.Config) *fixture {
	f := &fixture{
		repo:     testutil.NewMemIncidentRepo(),
		cadence:  &recordingCadence{},
		notifier: &recordingNotifier{},
		timers:   &recordingTimers{},
	}
	f.svc = incident.NewService(
		f.repo,
		f.cadence,
		stubViewers{viewers: []string{"owner-1", "ana"}, groups: []string{"g1"}},
		f.notifier,
		stubGeocoder{address: "12 Rue de Rivoli, Paris"},
		f.timers,
		cfg,
		testutil.NewMockLogger(),
	)
	return f
}

var parisLoc = geo.Point{Lat: 48.85, Lng: 2.35}

// ─────────────────────────────────────────────────────────────────────────────
// Trigger
// ─────────────────────────────────────────────────────────────────────────────

func TestService_Trigger(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	assert.Equal(t, incident.StatusActive, ev.Status)
	assert.Equal(t, "12 Rue de Rivoli, Paris", ev.Address)
	assert.Equal(t, int64(1), ev.SequenceNo)

	assert.Equal(t, []string{"ana"}, f.cadence.emergency)
	assert.Equal(t, []string{ev.ID}, f.notifier.triggered)
}

// A quick retry is the same emergency, not a second one.
func TestService_Trigger_DedupWithinWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{TriggerDedupWindow: 30 * time.Second})
	ctx := context.Background()

	first, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	second, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The retry performed no second fan-out.
	assert.Len(t, f.notifier.triggered, 1)
}

func TestService_Trigger_OpenIncidentOutsideWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{TriggerDedupWindow: 30 * time.Second})
	ctx := context.Background()

	stale, err := incident.NewEvent("ana", parisLoc)
	require.NoError(t, err)
	stale.CreatedAt = time.Now().UTC().Add(-5 * time.Minute)
	require.NoError(t, f.repo.Create(ctx, stale))

	_, err = f.svc.Trigger(ctx, "ana", parisLoc)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIncidentAlreadyActive, apperrors.GetCode(err))
}

func TestService_Trigger_RejectsBadLocation(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})

	_, err := f.svc.Trigger(context.Background(), "ana", geo.Point{Lat: 95, Lng: 0})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.cadence.emergency)
}

// ─────────────────────────────────────────────────────────────────────────────
// Transitions
// ─────────────────────────────────────────────────────────────────────────────

func TestService_HappyPathLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	inProgress, err := f.svc.AdvanceToInProgress(ctx, ev.ID, "operator-7")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusInProgress, inProgress.Status)
	assert.Greater(t, inProgress.SequenceNo, ev.SequenceNo)

	resolved, err := f.svc.Resolve(ctx, ev.ID, "operator-7")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Greater(t, resolved.SequenceNo, inProgress.SequenceNo)

	// Resolution reverted the cadence and stopped escalation timers.
	assert.Equal(t, []string{"ana"}, f.cadence.idle)
	assert.Equal(t, []string{ev.ID}, f.timers.canceled)
}

func TestService_ResolveDirectlyFromActive(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(ctx, ev.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, resolved.Status)
}

func TestService_CancelFromInProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	_, err = f.svc.AdvanceToInProgress(ctx, ev.ID, "operator-7")
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, ev.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusCanceled, canceled.Status)
	assert.Equal(t, []string{"ana"}, f.cadence.idle)
}

// Annotations stay legal after resolution; transitions do not.
func TestService_ResolveThenAnnotateThenAdvance(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, ev.ID, "ana")
	require.NoError(t, err)

	annotated, err := f.svc.Annotate(ctx, ev.ID, "operator-7", "subject confirmed safe by phone")
	require.NoError(t, err)
	require.Len(t, annotated.Notes, 1)
	assert.Equal(t, "subject confirmed safe by phone", annotated.Notes[0].Note)
	assert.Equal(t, "operator-7", annotated.Notes[0].ActorID)

	_, err = f.svc.AdvanceToInProgress(ctx, ev.ID, "operator-7")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.GetCode(err))
}

func TestService_SequenceIsMonotonic(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	last := ev.SequenceNo
	step := func(e *incident.Event, err error) {
		require.NoError(t, err)
		assert.Greater(t, e.SequenceNo, last)
		last = e.SequenceNo
	}

	step(f.svc.Annotate(ctx, ev.ID, "ana", "heading home"))
	step(f.svc.AdvanceToInProgress(ctx, ev.ID, "operator-7"))
	step(f.svc.Annotate(ctx, ev.ID, "operator-7", "calling subject"))
	step(f.svc.Resolve(ctx, ev.ID, "operator-7"))
}

func TestService_ConcurrentTransitions_OnlyOneWins(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Resolve(ctx, ev.ID, "racer")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, apperrors.ErrCodeIllegalTransition, apperrors.GetCode(err))
		}
	}
	assert.Equal(t, 1, wins)
}

// ─────────────────────────────────────────────────────────────────────────────
// Location trail
// ─────────────────────────────────────────────────────────────────────────────

func TestService_LocationTrail_OrderedAndImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)

	base := time.Now().UTC()
	// Written out of order on purpose.
	for _, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		_, err := f.svc.AppendLocation(ctx, ev.ID, geo.Point{Lat: 48.85, Lng: 2.35 + offset.Seconds()/1000}, base.Add(offset))
		require.NoError(t, err)
	}

	trail, err := f.svc.LocationTrail(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	for i := 1; i < len(trail); i++ {
		assert.True(t, trail[i].Timestamp.After(trail[i-1].Timestamp))
	}
	assert.Equal(t, 3, f.notifier.samples)
}

func TestService_AppendLocation_RejectedAfterClose(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	ev, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, ev.ID, "ana")
	require.NoError(t, err)

	_, err = f.svc.AppendLocation(ctx, ev.ID, parisLoc, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestService_ListByStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(incident.Config{})
	ctx := context.Background()

	evA, err := f.svc.Trigger(ctx, "ana", parisLoc)
	require.NoError(t, err)
	evB, err := f.svc.Trigger(ctx, "ben", parisLoc)
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, evB.ID, "ben")
	require.NoError(t, err)

	active, err := f.svc.ListByStatus(ctx, incident.StatusActive, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, evA.ID, active[0].ID)

	resolved, err := f.svc.ListByStatus(ctx, incident.StatusResolved, 0)
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	_, err = f.svc.ListByStatus(ctx, incident.Status("archived"), 0)
	require.Error(t, err)
}
