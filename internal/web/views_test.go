package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/fleetdesk/internal/fleet"
)

// ---- View Store Tests ----

func TestViewStore_Sweep(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s := newViewStore(10*time.Minute, 0)
	s.now = func() time.Time { return now }

	var closed []string
	idle := newView(fleet.Screen{})
	idle.unsubscribe = func() { closed = append(closed, "idle") }
	busy := newView(fleet.Screen{})
	busy.unsubscribe = func() { closed = append(closed, "busy") }
	require.NoError(t, s.add(idle))
	require.NoError(t, s.add(busy))

	now = now.Add(8 * time.Minute)
	_, err := s.get(busy.id)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, s.sweep())
	assert.Equal(t, []string{"idle"}, closed)

	_, err = s.get(idle.id)
	assert.ErrorIs(t, err, errViewNotFound)
	_, err = s.get(busy.id)
	assert.NoError(t, err)
}

func TestViewStore_Max(t *testing.T) {
	s := newViewStore(time.Minute, 2)
	require.NoError(t, s.add(newView(fleet.Screen{})))
	require.NoError(t, s.add(newView(fleet.Screen{})))
	assert.ErrorIs(t, s.add(newView(fleet.Screen{})), errTooManyViews)
}

func TestViewStore_CloseOnce(t *testing.T) {
	s := newViewStore(time.Minute, 0)
	calls := 0
	v := newView(fleet.Screen{})
	v.unsubscribe = func() { calls++ }
	require.NoError(t, s.add(v))

	assert.True(t, s.remove(v.id))
	assert.False(t, s.remove(v.id))
	v.close()
	assert.Equal(t, 1, calls)
}

func TestViewStore_CloseAll(t *testing.T) {
	s := newViewStore(time.Minute, 0)
	for range 3 {
		require.NoError(t, s.add(newView(fleet.Screen{})))
	}
	s.closeAll()
	assert.Equal(t, 0, s.len())
}

func TestViewStore_SweeperStops(t *testing.T) {
	s := newViewStore(time.Minute, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.runSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
