package incident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/pkg/types/geo"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	assert.True(t, incident.CanTransition(incident.StatusActive, incident.StatusInProgress))
	assert.True(t, incident.CanTransition(incident.StatusActive, incident.StatusResolved))
	assert.True(t, incident.CanTransition(incident.StatusActive, incident.StatusCanceled))
	assert.True(t, incident.CanTransition(incident.StatusInProgress, incident.StatusResolved))
	assert.True(t, incident.CanTransition(incident.StatusInProgress, incident.StatusCanceled))

	// no way back
	assert.False(t, incident.CanTransition(incident.StatusInProgress, incident.StatusActive))
	assert.False(t, incident.CanTransition(incident.StatusResolved, incident.StatusActive))
	assert.False(t, incident.CanTransition(incident.StatusResolved, incident.StatusInProgress))
	assert.False(t, incident.CanTransition(incident.StatusCanceled, incident.StatusActive))
	assert.False(t, incident.CanTransition(incident.StatusResolved, incident.StatusCanceled))
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, incident.StatusActive.IsTerminal())
	assert.False(t, incident.StatusInProgress.IsTerminal())
	assert.True(t, incident.StatusResolved.IsTerminal())
	assert.True(t, incident.StatusCanceled.IsTerminal())
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	ev, err := incident.NewEvent("ana", geo.Point{Lat: 48.85, Lng: 2.35})
	require.NoError(t, err)
	assert.Equal(t, incident.StatusActive, ev.Status)
	assert.Equal(t, int64(1), ev.SequenceNo)
	assert.NotEmpty(t, ev.ID)
	assert.Nil(t, ev.ResolvedAt)

	_, err = incident.NewEvent("", geo.Point{Lat: 1, Lng: 1})
	assert.Error(t, err)

	_, err = incident.NewEvent("ana", geo.Point{Lat: 120, Lng: 2.35})
	assert.Error(t, err)
}
