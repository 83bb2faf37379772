// Package escalation_test provides unit tests for the acknowledgement and
// escalation protocol.
package escalation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/testutil"
	apperrors "github.com/havenloop/haven/pkg/errors"
	"github.com/havenloop/haven/pkg/types/geo"
)

type recordingEscalator struct {
	mu      sync.Mutex
	actions []escalation.Action
}

func (e *recordingEscalator) Escalate(ctx context.Context, ev *incident.Event, action escalation.Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, action)
}

type fixture struct {
	svc       escalation.Service
	repo      *testutil.MemEscalationRepo
	incidents *testutil.MemIncidentRepo
	escalator *recordingEscalator
}

func newFixture() *fixture {
	f := &fixture{
		repo:      testutil.NewMemEscalationRepo(),
		incidents: testutil.NewMemIncidentRepo(),
		escalator: &recordingEscalator{},
	}
	f.svc = escalation.NewService(f.repo, f.incidents, f.escalator, escalation.Config{
		OperatorGrace:          3 * time.Minute,
		EmergencyServicesGrace: 10 * time.Minute,
	}, testutil.NewMockLogger())
	return f
}

// openIncident stores an active incident whose trigger is age old.
func (f *fixture) openIncident(t *testing.T, subjectID string, age time.Duration) *incident.Event {
	t.Helper()
	ev, err := incident.NewEvent(subjectID, geo.Point{Lat: 48.85, Lng: 2.35})
	require.NoError(t, err)
	ev.CreatedAt = time.Now().UTC().Add(-age)
	require.NoError(t, f.incidents.Create(context.Background(), ev))
	return ev
}

// ─────────────────────────────────────────────────────────────────────────────
// Acknowledge
// ─────────────────────────────────────────────────────────────────────────────

func TestService_Acknowledge(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", time.Minute)

	ack, err := f.svc.Acknowledge(ctx, ev.ID, "ben", "on my way")
	require.NoError(t, err)
	assert.Equal(t, "ben", ack.ResponderID)
	assert.Equal(t, "on my way", ack.Message)
}

func TestService_Acknowledge_IdempotentPerResponder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", time.Minute)

	first, err := f.svc.Acknowledge(ctx, ev.ID, "ben", "on my way")
	require.NoError(t, err)

	// The repeat returns the original row; the later message is discarded.
	second, err := f.svc.Acknowledge(ctx, ev.ID, "ben", "nearly there")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "on my way", second.Message)

	acks, err := f.svc.Acknowledgements(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, acks, 1)
}

// Three members acknowledge in the same instant: three rows, no escalation.
func TestService_Acknowledge_ConcurrentResponders(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", 4*time.Minute)

	responders := []string{"ben", "mia", "leo"}
	var wg sync.WaitGroup
	for _, responder := range responders {
		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			_, err := f.svc.Acknowledge(ctx, ev.ID, r, "")
			assert.NoError(t, err)
		}(responder)
	}
	wg.Wait()

	acks, err := f.svc.Acknowledgements(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, acks, 3)
	seen := map[string]bool{}
	for _, a := range acks {
		seen[a.ResponderID] = true
	}
	assert.Len(t, seen, 3)

	// Past the operator grace, but acknowledged: no action.
	action, err := f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, action)
}

func TestService_Acknowledge_ClosedIncident(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", time.Minute)

	now := time.Now().UTC()
	_, err := f.incidents.UpdateStatus(ctx, ev.ID, incident.StatusActive, incident.StatusResolved, &now)
	require.NoError(t, err)

	_, err = f.svc.Acknowledge(ctx, ev.ID, "ben", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIncidentNotAcknowledgeable, apperrors.GetCode(err))
}

func TestService_Acknowledge_UnknownIncident(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.svc.Acknowledge(context.Background(), "no-such-incident", "ben", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Escalation
// ─────────────────────────────────────────────────────────────────────────────

// Unacknowledged past the grace period escalates once, not twice.
func TestService_EvaluateIncident_FiresOperatorOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", 4*time.Minute)

	action, err := f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalateToOperator, action)

	// Thirty seconds later, same state: nothing new fires.
	action, err = f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, action)

	assert.Equal(t, []escalation.Action{escalation.ActionEscalateToOperator}, f.escalator.actions)
}

func TestService_EvaluateIncident_EmergencyServicesPrompt(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", 11*time.Minute)

	action, err := f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalateToEmergencyServicesPrompt, action)

	action, err = f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, action)
}

// An incident that closed between scheduling and evaluation never escalates.
func TestService_EvaluateIncident_ReReadsStatus(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", 4*time.Minute)

	now := time.Now().UTC()
	_, err := f.incidents.UpdateStatus(ctx, ev.ID, incident.StatusActive, incident.StatusCanceled, &now)
	require.NoError(t, err)

	action, err := f.svc.EvaluateIncident(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, action)
	assert.Empty(t, f.escalator.actions)
}

func TestService_EvaluateIncident_ConcurrentSweepsFireOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ev := f.openIncident(t, "ana", 4*time.Minute)

	const sweeps = 8
	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EvaluateIncident(ctx, ev.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.escalator.actions, 1)
}

func TestService_Sweep(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.openIncident(t, "ana", 4*time.Minute)
	f.openIncident(t, "ben", time.Minute)
	fresh := f.openIncident(t, "mia", 4*time.Minute)
	_, err := f.svc.Acknowledge(ctx, fresh.ID, "leo", "")
	require.NoError(t, err)

	fired, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	// Nothing left to fire on the next pass.
	fired, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
}
