package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cadran/internal/models"
)

func TestClock_ExpiresBeforeFloor(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 350, 250, 5)
	require.NoError(t, f.registry.Start(id))
	tk := f.ticks.next(t)

	var lot models.Lot
	for i := 0; i < 5; i++ {
		lot = f.tick(t, tk)
	}

	assert.Equal(t, models.StatusUnsoldExpired, lot.Status)
	assert.Equal(t, 345, lot.CurrentPrice)
	assert.Equal(t, 0, lot.TimeRemaining)
	assert.Empty(t, lot.Winner)
	assert.Nil(t, lot.Payment)
}

func TestClock_FloorReachedAsTimeRunsOut(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 350, 345, 5)
	require.NoError(t, f.registry.Start(id))
	tk := f.ticks.next(t)

	var lot models.Lot
	for i := 0; i < 4; i++ {
		lot = f.tick(t, tk)
		require.Equal(t, models.StatusActive, lot.Status)
	}
	assert.Equal(t, 346, lot.CurrentPrice)

	lot = f.tick(t, tk)
	assert.Equal(t, models.StatusUnsoldFloor, lot.Status)
	assert.Equal(t, 345, lot.CurrentPrice)
	assert.Equal(t, 0, lot.TimeRemaining)
}

func TestClock_FloorReached(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 350, 349, 300)
	require.NoError(t, f.registry.Start(id))
	tk := f.ticks.next(t)

	lot := f.tick(t, tk)
	assert.Equal(t, models.StatusActive, lot.Status)
	assert.Equal(t, 349, lot.CurrentPrice)
	assert.Equal(t, 299, lot.TimeRemaining)

	lot = f.tick(t, tk)
	assert.Equal(t, models.StatusUnsoldFloor, lot.Status)
	assert.Equal(t, 349, lot.CurrentPrice)
	assert.Equal(t, 298, lot.TimeRemaining)
}

func TestClock_MonotonicDecay(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 20, 10, 60)
	require.NoError(t, f.registry.Start(id))
	tk := f.ticks.next(t)

	prevPrice, prevTime := 20, 60
	for {
		lot := f.tick(t, tk)
		assert.LessOrEqual(t, lot.CurrentPrice, prevPrice)
		assert.GreaterOrEqual(t, lot.CurrentPrice, lot.FloorPrice)
		assert.Equal(t, prevTime-1, lot.TimeRemaining)
		assert.GreaterOrEqual(t, lot.TimeRemaining, 0)
		prevPrice, prevTime = lot.CurrentPrice, lot.TimeRemaining
		if lot.Status != models.StatusActive {
			assert.Equal(t, models.StatusUnsoldFloor, lot.Status)
			break
		}
	}
	assert.Equal(t, 10, prevPrice)
	assert.Equal(t, 49, prevTime)
}

func TestClock_StopsAfterTerminal(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 100, 50, 1)
	require.NoError(t, f.registry.Start(id))
	tk := f.ticks.next(t)

	lot := f.tick(t, tk)
	require.Equal(t, models.StatusUnsoldExpired, lot.Status)

	// the clock goroutine has returned, nobody reads the ticker any more
	select {
	case tk.ch <- time.Now():
		t.Fatal("clock still running after terminal transition")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBidGate_TickIgnoresStaleRun(t *testing.T) {
	g := newBidGate(models.Lot{
		ID:            "lot1",
		StartPrice:    350,
		FloorPrice:    250,
		Budget:        180,
		CurrentPrice:  350,
		TimeRemaining: 180,
		Status:        models.StatusInactive,
	}, NewPaymentTracker(nil), nopPublisher{}, time.Now, quietLogger())

	ctx, cancel := contextForTest(t)
	defer cancel()

	first, _, err := g.begin(ctx)
	require.NoError(t, err)
	require.True(t, g.tick(first))

	require.NoError(t, g.abort())
	second, _, err := g.begin(ctx)
	require.NoError(t, err)

	assert.False(t, g.tick(first), "clock of a previous run must stop")
	lot := g.Snapshot()
	assert.Equal(t, 350, lot.CurrentPrice)
	assert.Equal(t, 180, lot.TimeRemaining)

	assert.True(t, g.tick(second))
	assert.Equal(t, 349, g.Snapshot().CurrentPrice)
}
