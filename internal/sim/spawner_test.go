package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_sim/internal/catalog"
	"store_sim/internal/decision"
	"store_sim/internal/models"
	"store_sim/internal/predict"
	"store_sim/internal/storage"
	"store_sim/internal/weather"
)

func TestSpawnBuildsDedupedList(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.0)

	cat, err := catalog.New([]models.Product{
		{Name: "milk", Price: 3.5},
		{Name: "bread", Price: 2},
		{Name: "eggs", Price: 4.2},
		{Name: "gum", Price: 0.9, IsImpulse: true},
		{Name: "chocolate", Price: 1.8, IsImpulse: true},
	}, l)
	require.NoError(t, err)

	clock := NewClock(12, 1)
	wm := weather.NewManager(clock, weather.DefaultConfig(), l)
	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}, l)
	queue := testQueue(t, l)

	cfg := DefaultSpawnerConfig()
	cfg.Customer = fastCustomerConfig()
	cfg.ImpulseChance = 1
	spawner := NewSpawner(cat, engine, queue, storage.NewMemory(), wm, clock, cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 20; i++ {
		c := spawner.Spawn(ctx)
		require.NotNil(t, c)

		seen := make(map[string]bool)
		for _, name := range c.params.List {
			assert.False(t, seen[name], "shopping list must not contain %q twice", name)
			seen[name] = true

			_, ok := cat.Get(name)
			assert.True(t, ok, "listed product %q must exist", name)
		}
		require.NotEmpty(t, c.params.List)
		assert.LessOrEqual(t, len(c.params.List), cfg.MaxListItems+cfg.MaxImpulseItems)

		// Personality is drawn once at spawn and stays in [0,1].
		assert.GreaterOrEqual(t, c.params.Impulsiveness, 0.0)
		assert.Less(t, c.params.Impulsiveness, 1.0)
		assert.GreaterOrEqual(t, c.params.Generosity, 0.0)
		assert.Less(t, c.params.Generosity, 1.0)
	}

	cancel()
	spawner.Wait()
}

func TestSpawnerTracksActiveCustomers(t *testing.T) {
	l := testLogger(t)
	ts := predictorStub(t, 0.0)

	cat, err := catalog.New([]models.Product{{Name: "milk", Price: 3.5}}, l)
	require.NoError(t, err)

	clock := NewClock(12, 1)
	wm := weather.NewManager(clock, weather.DefaultConfig(), l)
	client := predict.NewHTTPClient(ts.URL, l)
	engine := decision.NewEngine(client, cat, decision.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}, l)

	cfg := DefaultSpawnerConfig()
	cfg.Customer = fastCustomerConfig()
	spawner := NewSpawner(cat, engine, testQueue(t, l), storage.NewMemory(), wm, clock, cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NotNil(t, spawner.Spawn(ctx))

	// The stub predicts 0.0 for everything, so the customer browses,
	// buys nothing and leaves on its own.
	require.Eventually(t, func() bool { return spawner.Active() == 0 }, 5*time.Second, 5*time.Millisecond)
	spawner.Wait()
}

func TestClockOpeningHours(t *testing.T) {
	open := NewClock(12, 3600)
	assert.True(t, open.IsOpen())
	assert.InDelta(t, 12, open.Hour(), 0.01)

	closed := NewClock(23, 3600)
	assert.False(t, closed.IsOpen())

	early := NewClock(6, 3600)
	assert.False(t, early.IsOpen())
}
