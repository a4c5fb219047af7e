package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/repository"
	"Agora/internal/services/performance"
	"Agora/internal/services/risk"
	"Agora/internal/usecase"
	"Agora/pkg/cache"
	"Agora/pkg/config"
	xhttp "Agora/pkg/http"
	"Agora/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeLog struct {
	mu    sync.Mutex
	names []string
}

func (l *closeLog) closer(name string, err error) Closer {
	return Closer{Name: name, Close: func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.names = append(l.names, name)
		return err
	}}
}

func TestRunCheckpointsAndClosesOnShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.State.Interval = 0

	reg := prometheus.NewRegistry()
	tracker := performance.New()
	gate, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)

	store := repository.NewCacheStateStore(cache.NewMemoryCache(), cfg.State.Key, time.Second)
	cp := usecase.NewCheckpointer(store, tracker, gate, metrics.NewWithRegistry(reg), nil, cfg.State.Interval)
	srv := xhttp.NewServer(nil,
		xhttp.WithHost("127.0.0.1"),
		xhttp.WithPort(0),
		xhttp.WithRegistry(reg, reg),
	)

	closed := &closeLog{}
	app := New(cfg, nil, srv, nil, cp,
		closed.closer("publisher", nil),
		closed.closer("journal", errors.New("already closed")),
	)

	_, err = tracker.RecordPrediction("atlas", "AAPL", models.VoteBuy, 70, models.RegimeBull, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Predictions, 1)
	assert.Equal(t, []string{"publisher", "journal"}, closed.names)
}

func TestRunFailsWhenRestoreFails(t *testing.T) {
	cfg := config.Default()
	tracker := performance.New()
	gate, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)

	mc := cache.NewMemoryCache()
	require.NoError(t, mc.Set(context.Background(), cfg.State.Key, "not a snapshot", 0))
	store := repository.NewCacheStateStore(mc, cfg.State.Key, time.Second)
	cp := usecase.NewCheckpointer(store, tracker, gate, metrics.NewWithRegistry(prometheus.NewRegistry()), nil, 0)

	closed := &closeLog{}
	app := New(cfg, nil, xhttp.NewServer(nil, xhttp.WithRegistry(prometheus.NewRegistry(), prometheus.NewRegistry())), nil, cp, closed.closer("store", nil))

	err = app.run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"store"}, closed.names)
}
