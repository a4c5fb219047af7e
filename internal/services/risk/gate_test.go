package risk

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Agora/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newGate(t *testing.T, c *clock, mutate ...func(*models.RiskConfig)) *Gate {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	g, err := New(cfg, WithClock(c.Now))
	require.NoError(t, err)
	return g
}

func buy(instrument, sector string) models.ReviewInput {
	return models.ReviewInput{
		Signal: models.Signal{
			Instrument: instrument,
			Action:     models.VoteBuy,
			Price:      100,
			Confidence: 60,
			Sector:     sector,
			ATR:        2,
		},
		ConsensusPct: 80,
		Equity:       100000,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.02, cfg.MaxRiskPerTradePct)
	assert.Equal(t, 6.0, cfg.MaxPortfolioRiskR)
	assert.Equal(t, 24*time.Hour, cfg.Cooldown())
	assert.Equal(t, models.SizingFixedR, cfg.SizingMethod)
	assert.Equal(t, models.StopATR, cfg.StopMethod)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestCooldownGate(t *testing.T) {
	c := newClock()
	g := newGate(t, c)
	ctx := context.Background()

	first, err := g.Review(ctx, buy("aapl", ""))
	require.NoError(t, err)
	require.True(t, first.Approved)
	assert.Equal(t, int64(500), first.AdjustedQuantity)
	assert.Equal(t, "AAPL", first.Instrument)

	c.Advance(time.Hour)
	assert.Equal(t, 23*time.Hour, g.CooldownRemaining("AAPL"))
	second, err := g.Review(ctx, buy("AAPL", ""))
	require.NoError(t, err)
	assert.False(t, second.Approved)
	assert.Equal(t, models.RejectCooldown, second.Code)
	assert.Contains(t, second.Reason, "cooldown")
	assert.NotEmpty(t, second.Warnings)

	c.Advance(24 * time.Hour)
	assert.Zero(t, g.CooldownRemaining("AAPL"))
	third, err := g.Review(ctx, buy("AAPL", ""))
	require.NoError(t, err)
	assert.True(t, third.Approved)
}

func TestBudgetGate(t *testing.T) {
	g := newGate(t, newClock())
	in := buy("MSFT", "energy")
	for _, s := range []string{"A", "B", "C"} {
		in.Portfolio = append(in.Portfolio, models.PortfolioPosition{
			Symbol: s, EntryPrice: 100, StopLoss: 90, Quantity: 400, Sector: "tech", IsOpen: true,
		})
	}

	d, err := g.Review(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, models.RejectPortfolioBudget, d.Code)
	assert.Zero(t, g.CooldownRemaining("MSFT"))
}

func TestBudgetGateToleratesFloatDrift(t *testing.T) {
	type test struct {
		portfolio []models.PortfolioPosition
		reason    string
	}

	var six []models.PortfolioPosition
	for _, s := range []string{"A", "B", "C", "D", "E", "F"} {
		six = append(six, models.PortfolioPosition{Symbol: s, EntryPrice: 10.1, StopLoss: 10, Quantity: 20000, IsOpen: true})
	}

	tests := map[string]test{
		"budget spent up to rounding": {
			portfolio: six,
			reason:    "committed",
		},
		"remainder below one unit": {
			portfolio: []models.PortfolioPosition{
				{Symbol: "A", EntryPrice: 100, StopLoss: 90, Quantity: 1199.9, IsOpen: true},
			},
			reason: "does not cover one unit",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			g := newGate(t, newClock())
			in := buy("MSFT", "")
			in.Portfolio = tc.portfolio

			d, err := g.Review(context.Background(), in)
			require.NoError(t, err)
			assert.False(t, d.Approved)
			assert.Equal(t, models.RejectPortfolioBudget, d.Code)
			assert.Contains(t, d.Reason, tc.reason)
			assert.Zero(t, d.AdjustedQuantity)
			assert.Zero(t, g.CooldownRemaining("MSFT"))
			assert.Empty(t, g.Snapshot().History)
		})
	}
}

func TestBudgetCapsQuantity(t *testing.T) {
	g := newGate(t, newClock())
	in := buy("MSFT", "")
	in.Portfolio = []models.PortfolioPosition{
		{Symbol: "A", EntryPrice: 100, StopLoss: 90, Quantity: 1100, IsOpen: true},
		{Symbol: "CLOSED", EntryPrice: 100, StopLoss: 10, Quantity: 10000, IsOpen: false},
	}

	d, err := g.Review(context.Background(), in)
	require.NoError(t, err)
	require.True(t, d.Approved)
	assert.Equal(t, int64(250), d.AdjustedQuantity)
	assert.InDelta(t, 0.5, d.RiskR, 1e-9)
	assert.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "portfolio budget")
}

func TestSectorCap(t *testing.T) {
	type test struct {
		held     float64
		approved bool
		qty      int64
	}

	tests := map[string]test{
		"empty sector caps quantity": {held: 0, approved: true, qty: 250},
		"partial headroom":           {held: 200, approved: true, qty: 50},
		"no headroom rejects":        {held: 250, approved: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			g := newGate(t, newClock())
			in := buy("NVDA", "Tech")
			if tt.held > 0 {
				in.Portfolio = []models.PortfolioPosition{
					{Symbol: "AMD", EntryPrice: 100, StopLoss: 99, Quantity: tt.held, Sector: "tech", IsOpen: true},
				}
			}
			d, err := g.Review(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.approved, d.Approved)
			assert.Equal(t, tt.qty, d.AdjustedQuantity)
			if tt.approved {
				assert.Contains(t, d.Warnings[0], "sector cap")
			} else {
				assert.Equal(t, models.RejectSectorCap, d.Code)
			}
		})
	}
}

func TestPendingApprovalsCountUntilVisible(t *testing.T) {
	c := newClock()
	g := newGate(t, c)
	ctx := context.Background()

	first, err := g.Review(ctx, buy("AAPL", "tech"))
	require.NoError(t, err)
	require.Equal(t, int64(250), first.AdjustedQuantity)

	c.Advance(5 * time.Minute)
	d, err := g.Review(ctx, buy("NVDA", "tech"))
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, models.RejectSectorCap, d.Code)

	c.Advance(15 * time.Minute)
	d, err = g.Review(ctx, buy("NVDA", "tech"))
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestWeakConsensusHalvesSize(t *testing.T) {
	g := newGate(t, newClock())
	in := buy("AAPL", "")
	in.ConsensusPct = 40
	d, err := g.Review(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.Equal(t, int64(250), d.AdjustedQuantity)
	assert.Contains(t, d.Warnings[0], "weak consensus")
}

func TestHoldIsNoAction(t *testing.T) {
	g := newGate(t, newClock())
	in := buy("AAPL", "")
	in.Signal.Action = models.VoteHold
	d, err := g.Review(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, models.RejectNoAction, d.Code)
	assert.Zero(t, g.CooldownRemaining("AAPL"))
}

func TestReviewRejectsMalformed(t *testing.T) {
	g := newGate(t, newClock())
	mutations := map[string]func(*models.ReviewInput){
		"zero price":      func(in *models.ReviewInput) { in.Signal.Price = 0 },
		"negative equity": func(in *models.ReviewInput) { in.Equity = -1 },
		"no instrument":   func(in *models.ReviewInput) { in.Signal.Instrument = " " },
		"bad action":      func(in *models.ReviewInput) { in.Signal.Action = 0 },
		"bad consensus":   func(in *models.ReviewInput) { in.ConsensusPct = 101 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := buy("AAPL", "")
			mutate(&in)
			_, err := g.Review(context.Background(), in)
			assert.ErrorIs(t, err, models.ErrInvalidSignal)
		})
	}
}

func TestSizingMethods(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	type test struct {
		method  models.SizingMethod
		mutate  func(*models.Signal)
		qty     int64
		warning string
	}

	tests := map[string]test{
		"fixed percent":           {method: models.SizingFixedPercent, qty: 20},
		"fixed R":                 {method: models.SizingFixedR, qty: 500},
		"kelly clamps to quarter": {method: models.SizingKelly, qty: 250},
		"kelly without edge": {
			method:  models.SizingKelly,
			mutate:  func(s *models.Signal) { s.WinRate, s.PayoffRatio = f(0.3), f(1) },
			qty:     0,
			warning: "kelly",
		},
		"kelly explicit": {
			method: models.SizingKelly,
			mutate: func(s *models.Signal) { s.WinRate, s.PayoffRatio = f(0.55), f(1) },
			qty:    100,
		},
		"volatility": {method: models.SizingVolatility, qty: 500},
		"volatility without ATR": {
			method:  models.SizingVolatility,
			mutate:  func(s *models.Signal) { s.ATR = 0 },
			qty:     20,
			warning: "fixed percent",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			g := newGate(t, newClock(), func(c *models.RiskConfig) { c.SizingMethod = tt.method })
			in := buy("AAPL", "")
			if tt.mutate != nil {
				tt.mutate(&in.Signal)
			}
			d, err := g.Review(context.Background(), in)
			require.NoError(t, err)
			assert.True(t, d.Approved)
			assert.Equal(t, tt.qty, d.AdjustedQuantity)
			assert.Equal(t, tt.method, d.SizingMethod)
			if tt.warning != "" {
				joined := ""
				for _, w := range d.Warnings {
					joined += w + "\n"
				}
				assert.Contains(t, joined, tt.warning)
			}
		})
	}
}

func TestKellyFractionBounded(t *testing.T) {
	for _, payoff := range []float64{0.01, 0.5, 1, 2, 5, 1000} {
		for w := 0.0; w <= 1.0; w += 0.01 {
			k := KellyFraction(w, payoff)
			assert.GreaterOrEqual(t, k, 0.0)
			assert.LessOrEqual(t, k, MaxKellyFraction)
		}
	}
	assert.Zero(t, KellyFraction(0.9, 0))
}

func TestConcurrentReviewsSameInstrument(t *testing.T) {
	g := newGate(t, newClock())
	var approved int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Review(context.Background(), buy("BTC", ""))
			if err != nil {
				t.Error(err)
				return
			}
			if d.Approved {
				atomic.AddInt32(&approved, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), approved)
}

func TestSetConfig(t *testing.T) {
	g := newGate(t, newClock())
	bad := map[string]func(*models.RiskConfig){
		"risk above one":  func(c *models.RiskConfig) { c.MaxRiskPerTradePct = 1.5 },
		"risk zero":       func(c *models.RiskConfig) { c.MaxRiskPerTradePct = 0 },
		"sector zero":     func(c *models.RiskConfig) { c.MaxSectorExposurePct = 0 },
		"no budget":       func(c *models.RiskConfig) { c.MaxPortfolioRiskR = 0 },
		"unknown sizing":  func(c *models.RiskConfig) { c.SizingMethod = 9 },
		"missing stop":    func(c *models.RiskConfig) { c.StopMethod = 0 },
		"negative cooldn": func(c *models.RiskConfig) { c.CooldownHours = -1 },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, g.SetConfig(cfg), models.ErrInvalidConfig)
			assert.Equal(t, DefaultConfig(), g.Config())
		})
	}

	cfg := DefaultConfig()
	cfg.CooldownHours = 1
	require.NoError(t, g.SetConfig(cfg))
	assert.Equal(t, time.Hour, g.Config().Cooldown())

	g.Reset()
	assert.Equal(t, DefaultConfig(), g.Config())
}

func TestSnapshotRestoreAndClear(t *testing.T) {
	c := newClock()
	g := newGate(t, c)
	_, err := g.Review(context.Background(), buy("ETH", "crypto"))
	require.NoError(t, err)
	c.Advance(10 * time.Minute)

	restored := newGate(t, c)
	require.NoError(t, restored.Restore(g.Snapshot()))
	assert.Equal(t, 23*time.Hour+50*time.Minute, restored.CooldownRemaining("eth"))
	assert.Len(t, restored.Snapshot().History, 1)

	restored.ClearHistory()
	assert.Zero(t, restored.CooldownRemaining("ETH"))
	assert.Empty(t, restored.Snapshot().History)
	assert.Equal(t, 23*time.Hour+50*time.Minute, g.CooldownRemaining("ETH"))

	c.Advance(2 * time.Hour)
	stale := newGate(t, c)
	require.NoError(t, stale.Restore(g.Snapshot()))
	assert.Empty(t, stale.Snapshot().History)
	assert.Equal(t, 21*time.Hour+50*time.Minute, stale.CooldownRemaining("ETH"))

	bad := g.Snapshot()
	bad.Config.StopLossPct = 2
	assert.ErrorIs(t, restored.Restore(bad), models.ErrInvalidConfig)
}

func TestHistoryKeepsOnlyPendingWindow(t *testing.T) {
	c := newClock()
	g := newGate(t, c, func(cfg *models.RiskConfig) { cfg.CooldownHours = 0 })
	ctx := context.Background()

	for i := 0; i < 5000; i++ {
		d, err := g.Review(ctx, buy("AAPL", ""))
		require.NoError(t, err)
		require.True(t, d.Approved)
		c.Advance(time.Hour)
	}
	assert.LessOrEqual(t, len(g.Snapshot().History), 1)
}

func TestHistoryCappedInsideWindow(t *testing.T) {
	c := newClock()
	cfg := DefaultConfig()
	cfg.MaxPortfolioRiskR = 100
	g, err := New(cfg, WithClock(c.Now), WithMaxHistory(3))
	require.NoError(t, err)

	for _, s := range []string{"A", "B", "C", "D", "E"} {
		d, err := g.Review(context.Background(), buy(s, ""))
		require.NoError(t, err)
		require.True(t, d.Approved)
		c.Advance(time.Minute)
	}

	hist := g.Snapshot().History
	require.Len(t, hist, 3)
	assert.Equal(t, "C", hist[0].Instrument)
	assert.Equal(t, "E", hist[2].Instrument)
}
