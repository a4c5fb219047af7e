package risk

import (
	"fmt"
	"math"

	"Agora/internal/domain/models"

	"gonum.org/v1/gonum/stat/distuv"
)

// z95 is the one-sided 95% standard normal quantile.
var z95 = distuv.UnitNormal.Quantile(0.95)

// positionRisk is the loss if the position's stop is hit. Positions without
// a stop are charged the configured percent stop.
func positionRisk(p models.PortfolioPosition, cfg models.RiskConfig) float64 {
	if p.StopLoss > 0 {
		return math.Abs(p.EntryPrice-p.StopLoss) * p.Quantity
	}
	return p.Notional() * cfg.StopLossPct
}

func openRiskR(portfolio []models.PortfolioPosition, cfg models.RiskConfig, oneR float64) float64 {
	var total float64
	for _, p := range portfolio {
		if p.IsOpen {
			total += positionRisk(p, cfg)
		}
	}
	return total / oneR
}

func sectorNotional(portfolio []models.PortfolioPosition, sector string) float64 {
	var total float64
	for _, p := range portfolio {
		if p.IsOpen && sectorKey(p.Sector) == sector {
			total += p.Notional()
		}
	}
	return total
}

// maxDrawdown is the largest peak-to-trough decline over the curve, in percent.
func maxDrawdown(curve []models.EquityPoint) float64 {
	var peak, worst float64
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
			continue
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return 100 * worst
}

// observeEquity appends to the bounded equity curve and returns a copy of it.
func (g *Gate) observeEquity(equity float64) []models.EquityPoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.equity = append(g.equity, models.EquityPoint{At: g.now(), Equity: equity})
	if over := len(g.equity) - g.maxEquityPoints; over > 0 {
		g.equity = append(g.equity[:0:0], g.equity[over:]...)
	}
	return append([]models.EquityPoint(nil), g.equity...)
}

// AnalyzePortfolioRisk aggregates risk over the open positions. Each call
// records equity on the gate's equity curve, which feeds the drawdown figure.
// Portfolio volatility assumes perfectly correlated positions.
func (g *Gate) AnalyzePortfolioRisk(portfolio []models.PortfolioPosition, equity float64) (*models.PortfolioRiskMetrics, error) {
	if !(equity > 0) || math.IsInf(equity, 0) {
		return nil, fmt.Errorf("%w: equity must be positive, got %v", models.ErrInvalidSignal, equity)
	}
	for _, p := range portfolio {
		if p.Quantity < 0 || p.EntryPrice < 0 || p.Volatility < 0 {
			return nil, fmt.Errorf("%w: position %s has negative fields", models.ErrInvalidSignal, p.Symbol)
		}
	}

	cfg := g.Config()
	oneR := equity * cfg.MaxRiskPerTradePct

	m := &models.PortfolioRiskMetrics{SectorExposure: make(map[string]float64)}
	var gross, riskAmount, vol float64
	notionals := make([]float64, 0, len(portfolio))
	for _, p := range portfolio {
		if !p.IsOpen {
			continue
		}
		n := p.Notional()
		notionals = append(notionals, n)
		gross += n
		riskAmount += positionRisk(p, cfg)
		m.SectorExposure[sectorKey(p.Sector)] += n

		sigma := p.Volatility
		if sigma == 0 {
			sigma = cfg.DefaultVolatility
		}
		vol += n / equity * sigma
		m.OpenPositions++
	}

	for s, n := range m.SectorExposure {
		m.SectorExposure[s] = round(100*n/equity, 2)
	}
	if gross > 0 {
		var hhi float64
		for _, n := range notionals {
			w := n / gross
			hhi += w * w
		}
		m.ConcentrationIndex = round(hhi, 4)
	}

	m.TotalRiskR = round(riskAmount/oneR, 4)
	m.GrossExposurePct = round(100*gross/equity, 2)
	m.Var95Pct = round(100*z95*vol, 2)
	m.Var95Amount = round(equity*z95*vol, 2)
	m.MaxDrawdownPct = round(maxDrawdown(g.observeEquity(equity)), 2)
	return m, nil
}
