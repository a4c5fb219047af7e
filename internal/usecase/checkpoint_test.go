package usecase

import (
	"context"
	"testing"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/repository"
	"Agora/internal/services/performance"
	"Agora/internal/services/risk"
	"Agora/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := repository.NewCacheStateStore(mc, "test:state", time.Minute)
	ctx := context.Background()

	f := newFixture(t)
	rec, err := f.tracker.RecordPrediction("atlas", "AAPL", models.VoteBuy, 70, models.RegimeBull, fixedNow)
	require.NoError(t, err)
	_, err = f.uc.Review(ctx, models.ReviewInput{
		Signal:       models.Signal{Instrument: "AAPL", Action: models.VoteBuy, Price: 100, ATR: 2},
		ConsensusPct: 80,
		Equity:       100000,
	})
	require.NoError(t, err)

	cp := NewCheckpointer(store, f.tracker, f.gate, f.metrics, nil, 0)
	cp.now = clock
	require.NoError(t, cp.Save(ctx))

	tracker := performance.New(performance.WithClock(clock))
	gate, err := risk.New(risk.DefaultConfig(), risk.WithClock(clock))
	require.NoError(t, err)
	restored := NewCheckpointer(store, tracker, gate, f.metrics, nil, 0)
	require.NoError(t, restored.Restore(ctx))

	records := tracker.Export()
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, 24*time.Hour, gate.CooldownRemaining("AAPL"))
}

func TestRestoreWithoutCheckpoint(t *testing.T) {
	f := newFixture(t)
	cp := NewCheckpointer(repository.NoopStateStore{}, f.tracker, f.gate, f.metrics, nil, time.Minute)
	assert.NoError(t, cp.Restore(context.Background()))
}

func TestRunSavesOnShutdown(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := repository.NewCacheStateStore(mc, "test:state", time.Minute)
	f := newFixture(t)
	cp := NewCheckpointer(store, f.tracker, f.gate, f.metrics, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cp.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("checkpointer did not stop")
	}
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
}
