package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "Agora/internal/domain/repository"
	"Agora/internal/domain/service"
	applogger "Agora/pkg/logger"
)

// Checkpointer persists tracker records and gate state so a restart resumes
// with the same multipliers, cooldowns and budget history.
type Checkpointer struct {
	store    domrepo.StateStore
	tracker  service.PredictionTracker
	gate     service.RiskGate
	metrics  domrepo.Metrics
	log      *applogger.Logger
	interval time.Duration
	now      func() time.Time
}

// NewCheckpointer creates a checkpointer. A non-positive interval disables
// periodic saves; Save on shutdown still runs.
func NewCheckpointer(store domrepo.StateStore, tracker service.PredictionTracker, gate service.RiskGate, metrics domrepo.Metrics, l *applogger.Logger, interval time.Duration) *Checkpointer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Checkpointer{store: store, tracker: tracker, gate: gate, metrics: metrics, log: l, interval: interval, now: time.Now}
}

// Restore loads the last snapshot, if any.
func (c *Checkpointer) Restore(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if snap == nil {
		c.log.Info("no checkpoint found, starting fresh")
		return nil
	}
	if err := c.tracker.Load(snap.Predictions); err != nil {
		return fmt.Errorf("restore predictions: %w", err)
	}
	if snap.Gate != nil {
		if err := c.gate.Restore(*snap.Gate); err != nil {
			return fmt.Errorf("restore gate: %w", err)
		}
	}
	c.log.Info("checkpoint restored",
		applogger.Int("predictions", len(snap.Predictions)),
		applogger.String("saved_at", snap.SavedAt.Format(time.RFC3339)),
	)
	return nil
}

// Save writes a snapshot of the current state.
func (c *Checkpointer) Save(ctx context.Context) error {
	start := time.Now()
	gate := c.gate.Snapshot()
	snap := &domrepo.Snapshot{
		Predictions: c.tracker.Export(),
		Gate:        &gate,
		SavedAt:     c.now().UTC(),
	}
	if err := c.store.Save(ctx, snap); err != nil {
		c.metrics.RecordError("checkpoint")
		return fmt.Errorf("checkpoint: %w", err)
	}
	c.metrics.RecordLatency("checkpoint", time.Since(start).Seconds())
	return nil
}

// Run saves on every tick until ctx is done, then saves once more.
func (c *Checkpointer) Run(ctx context.Context) error {
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				if err := c.Save(ctx); err != nil {
					c.log.Warn("periodic checkpoint failed", applogger.Error(err))
				}
			}
		}
	} else {
		<-ctx.Done()
	}

	final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.Save(final); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("final checkpoint failed", applogger.Error(err))
		return err
	}
	return nil
}
