// Package risk implements the pre-trade risk gate: position sizing, stop
// placement, cooldowns and portfolio risk budgets.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/domain/service"
)

const (
	// DefaultMaxEquityPoints bounds the equity curve used for drawdown.
	DefaultMaxEquityPoints = 1000
	// DefaultMaxHistory bounds the approvals kept for pending-risk math.
	DefaultMaxHistory = 1000

	// budgetEpsilon absorbs float drift when summing R across positions.
	budgetEpsilon = 1e-9
)

// Option configures Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMaxEquityPoints bounds the retained equity curve.
func WithMaxEquityPoints(n int) Option {
	return func(g *Gate) {
		if n > 1 {
			g.maxEquityPoints = n
		}
	}
}

// WithMaxHistory bounds the retained approval history.
func WithMaxHistory(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxHistory = n
		}
	}
}

// Gate reviews proposed trades. Reviews for one instrument are serialized;
// configuration and recorded state have their own locks.
type Gate struct {
	now             func() time.Time
	maxEquityPoints int
	maxHistory      int
	locks           *keyLock

	cfgMu   sync.RWMutex
	cfg     models.RiskConfig
	initial models.RiskConfig

	mu        sync.Mutex
	cooldowns map[string]time.Time
	history   []models.GateRecord
	equity    []models.EquityPoint
}

// New creates a gate with cfg as its initial configuration.
func New(cfg models.RiskConfig, opts ...Option) (*Gate, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	g := &Gate{
		now:             time.Now,
		maxEquityPoints: DefaultMaxEquityPoints,
		maxHistory:      DefaultMaxHistory,
		locks:           newKeyLock(),
		cfg:             cfg,
		initial:         cfg,
		cooldowns:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func symbolKey(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func sectorKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unclassified"
	}
	return s
}

// Config returns the current configuration.
func (g *Gate) Config() models.RiskConfig {
	g.cfgMu.RLock()
	defer g.cfgMu.RUnlock()
	return g.cfg
}

// SetConfig replaces the configuration after validating it.
func (g *Gate) SetConfig(cfg models.RiskConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	g.cfgMu.Lock()
	g.cfg = cfg
	g.cfgMu.Unlock()
	return nil
}

// CooldownRemaining is how long the instrument stays blocked, zero if free.
func (g *Gate) CooldownRemaining(instrument string) time.Duration {
	cfg := g.Config()
	g.mu.Lock()
	last, ok := g.cooldowns[symbolKey(instrument)]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	if rem := cfg.Cooldown() - g.now().Sub(last); rem > 0 {
		return rem
	}
	return 0
}

// ClearHistory forgets cooldowns, approvals and the equity curve. The
// configuration is kept.
func (g *Gate) ClearHistory() {
	g.mu.Lock()
	g.cooldowns = make(map[string]time.Time)
	g.history = nil
	g.equity = nil
	g.mu.Unlock()
}

// Reset clears history and restores the initial configuration.
func (g *Gate) Reset() {
	g.ClearHistory()
	g.cfgMu.Lock()
	g.cfg = g.initial
	g.cfgMu.Unlock()
}

// Snapshot exports the gate state for checkpointing.
func (g *Gate) Snapshot() models.GateState {
	st := models.GateState{Config: g.Config()}
	g.mu.Lock()
	defer g.mu.Unlock()
	st.Cooldowns = make(map[string]time.Time, len(g.cooldowns))
	for k, v := range g.cooldowns {
		st.Cooldowns[k] = v
	}
	st.History = append([]models.GateRecord(nil), g.history...)
	st.EquityCurve = append([]models.EquityPoint(nil), g.equity...)
	return st
}

// Restore replaces the gate state with a snapshot.
func (g *Gate) Restore(st models.GateState) error {
	if err := ValidateConfig(st.Config); err != nil {
		return fmt.Errorf("restore gate: %w", err)
	}
	cooldowns := make(map[string]time.Time, len(st.Cooldowns))
	for k, v := range st.Cooldowns {
		cooldowns[symbolKey(k)] = v
	}
	equity := append([]models.EquityPoint(nil), st.EquityCurve...)
	if len(equity) > g.maxEquityPoints {
		equity = equity[len(equity)-g.maxEquityPoints:]
	}

	g.cfgMu.Lock()
	g.cfg = st.Config
	g.cfgMu.Unlock()

	g.mu.Lock()
	g.cooldowns = cooldowns
	g.history = append([]models.GateRecord(nil), st.History...)
	g.pruneHistoryLocked(g.now(), st.Config.PendingWindow())
	g.equity = equity
	g.mu.Unlock()
	return nil
}

func validSignal(in models.ReviewInput) error {
	s := in.Signal
	switch {
	case symbolKey(s.Instrument) == "":
		return fmt.Errorf("%w: instrument is required", models.ErrInvalidSignal)
	case !s.Action.Valid():
		return fmt.Errorf("%w: unknown action", models.ErrInvalidSignal)
	case !(s.Price > 0) || math.IsInf(s.Price, 0):
		return fmt.Errorf("%w: price must be positive, got %v", models.ErrInvalidSignal, s.Price)
	case !(in.Equity > 0) || math.IsInf(in.Equity, 0):
		return fmt.Errorf("%w: equity must be positive, got %v", models.ErrInvalidSignal, in.Equity)
	case !(s.Confidence >= 0 && s.Confidence <= 100):
		return fmt.Errorf("%w: confidence %v outside [0,100]", models.ErrInvalidSignal, s.Confidence)
	case !(in.ConsensusPct >= 0 && in.ConsensusPct <= 100):
		return fmt.Errorf("%w: consensus %v outside [0,100]", models.ErrInvalidSignal, in.ConsensusPct)
	case s.ATR < 0 || math.IsNaN(s.ATR):
		return fmt.Errorf("%w: negative ATR", models.ErrInvalidSignal)
	}
	return nil
}

func reject(d *models.RiskDecision, code models.RejectCode, reason string) *models.RiskDecision {
	d.Approved = false
	d.Code = code
	d.Reason = reason
	d.Warnings = append(d.Warnings, reason)
	return d
}

// Review runs the gate for one signal: cooldown, sector exposure, portfolio
// budget, sizing, then stops. Rule rejections come back as decisions with
// Approved false; errors are reserved for malformed input.
func (g *Gate) Review(ctx context.Context, in models.ReviewInput) (*models.RiskDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validSignal(in); err != nil {
		return nil, err
	}

	sig := in.Signal
	key := symbolKey(sig.Instrument)
	cfg := g.Config()

	unlock := g.locks.Lock(key)
	defer unlock()

	now := g.now()
	d := &models.RiskDecision{
		Instrument:   key,
		SizingMethod: cfg.SizingMethod,
		Warnings:     []string{},
		ReviewedAt:   now,
	}

	if sig.Action == models.VoteHold {
		return reject(d, models.RejectNoAction, "no_action: HOLD carries no trade"), nil
	}

	g.mu.Lock()
	last, cooling := g.cooldowns[key]
	pending := g.pendingLocked(now, cfg, in.Portfolio)
	g.mu.Unlock()

	if cooling {
		if rem := cfg.Cooldown() - now.Sub(last); rem > 0 {
			return reject(d, models.RejectCooldown,
				fmt.Sprintf("cooldown: %s last approved %s ago, %s remaining", key, now.Sub(last).Round(time.Second), rem.Round(time.Second))), nil
		}
	}

	oneR := in.Equity * cfg.MaxRiskPerTradePct

	sectorCap := int64(math.MaxInt64)
	if sig.Sector != "" {
		sector := sectorKey(sig.Sector)
		exposure := sectorNotional(in.Portfolio, sector) + pending.sector[sector]
		headroom := cfg.MaxSectorExposurePct*in.Equity - exposure
		if headroom < sig.Price {
			return reject(d, models.RejectSectorCap,
				fmt.Sprintf("sector_cap_exceeded: %s exposure %.2f%% of equity, cap %.2f%%", sector, 100*exposure/in.Equity, 100*cfg.MaxSectorExposurePct)), nil
		}
		sectorCap = floorQty(headroom / sig.Price)
	}

	usedR := openRiskR(in.Portfolio, cfg, oneR) + pending.riskR
	if usedR >= cfg.MaxPortfolioRiskR-budgetEpsilon {
		return reject(d, models.RejectPortfolioBudget,
			fmt.Sprintf("portfolio_budget_exceeded: %.2fR committed, budget %.2fR", usedR, cfg.MaxPortfolioRiskR)), nil
	}

	stop, dist, err := suggestStop(cfg, sig.Price, sig.Action, sig.ATR, sig.Supports, sig.Resistances)
	if err != nil {
		return nil, err
	}
	d.Warnings = append(d.Warnings, stop.Warnings...)

	qty, warns := size(sizeInput{cfg: cfg, signal: sig, equity: in.Equity, oneR: oneR, stopDist: dist})
	d.Warnings = append(d.Warnings, warns...)

	if qty > sectorCap {
		d.Warnings = append(d.Warnings, fmt.Sprintf("sector cap: quantity reduced from %d to %d", qty, sectorCap))
		qty = sectorCap
	}
	if budgetCap := floorQty((cfg.MaxPortfolioRiskR - usedR) * oneR / dist); qty > budgetCap {
		if budgetCap == 0 {
			return reject(d, models.RejectPortfolioBudget,
				fmt.Sprintf("portfolio_budget_exceeded: %.4fR left does not cover one unit", cfg.MaxPortfolioRiskR-usedR)), nil
		}
		d.Warnings = append(d.Warnings, fmt.Sprintf("portfolio budget: quantity reduced from %d to %d (%.2fR left)", qty, budgetCap, cfg.MaxPortfolioRiskR-usedR))
		qty = budgetCap
	}
	if in.ConsensusPct < cfg.MinConsensusPct && qty > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf("weak consensus %.0f%% below %.0f%%: quantity halved from %d to %d", in.ConsensusPct, cfg.MinConsensusPct, qty, qty/2))
		qty /= 2
	}
	if qty == 0 {
		d.Warnings = append(d.Warnings, "sized quantity is zero; nothing to place")
	}

	d.Approved = true
	d.Code = models.RejectNone
	d.Reason = "approved"
	d.AdjustedQuantity = qty
	d.SuggestedStopLoss = stop.StopLoss
	d.SuggestedTakeProfit = stop.TakeProfit
	d.RiskAmount = roundPrice(float64(qty)*dist, 2)
	d.RiskR = round(float64(qty)*dist/oneR, 4)

	if qty > 0 {
		g.mu.Lock()
		g.cooldowns[key] = now
		g.history = append(g.history, models.GateRecord{
			Instrument: key,
			Sector:     sectorKey(sig.Sector),
			Quantity:   qty,
			Notional:   float64(qty) * sig.Price,
			RiskR:      d.RiskR,
			ApprovedAt: now,
		})
		g.pruneHistoryLocked(now, cfg.PendingWindow())
		g.mu.Unlock()
	}
	return d, nil
}

// pruneHistoryLocked drops approvals that can no longer count as pending and
// keeps at most maxHistory of the newest. Callers hold g.mu.
func (g *Gate) pruneHistoryLocked(now time.Time, window time.Duration) {
	if window <= 0 {
		g.history = nil
		return
	}
	kept := g.history[:0]
	for _, r := range g.history {
		if now.Sub(r.ApprovedAt) <= window {
			kept = append(kept, r)
		}
	}
	if len(kept) > g.maxHistory {
		kept = append([]models.GateRecord(nil), kept[len(kept)-g.maxHistory:]...)
	}
	g.history = kept
}

type pendingRisk struct {
	riskR  float64
	sector map[string]float64
}

// pendingLocked sums approvals inside the pending window whose instrument is
// not yet visible as an open position. Callers hold g.mu.
func (g *Gate) pendingLocked(now time.Time, cfg models.RiskConfig, portfolio []models.PortfolioPosition) pendingRisk {
	p := pendingRisk{sector: make(map[string]float64)}
	window := cfg.PendingWindow()
	if window <= 0 || len(g.history) == 0 {
		return p
	}
	held := make(map[string]struct{}, len(portfolio))
	for _, pos := range portfolio {
		if pos.IsOpen {
			held[symbolKey(pos.Symbol)] = struct{}{}
		}
	}
	for _, r := range g.history {
		if now.Sub(r.ApprovedAt) > window {
			continue
		}
		if _, ok := held[r.Instrument]; ok {
			continue
		}
		p.riskR += r.RiskR
		p.sector[r.Sector] += r.Notional
	}
	return p
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

var _ service.RiskGate = (*Gate)(nil)
