package risk

import (
	"fmt"
	"math"

	"Agora/internal/domain/models"
)

// MaxKellyFraction is the quarter-Kelly ceiling on the bet fraction.
const MaxKellyFraction = 0.25

// KellyFraction returns winRate - (1-winRate)/payoff clamped to [0, MaxKellyFraction].
func KellyFraction(winRate, payoff float64) float64 {
	if !(payoff > 0) || math.IsNaN(winRate) {
		return 0
	}
	f := winRate - (1-winRate)/payoff
	return math.Max(0, math.Min(MaxKellyFraction, f))
}

// sizeInput is what a sizing rule may read.
type sizeInput struct {
	cfg      models.RiskConfig
	signal   models.Signal
	equity   float64
	oneR     float64
	stopDist float64
}

func floorQty(x float64) int64 {
	if !(x > 0) || math.IsInf(x, 0) {
		return 0
	}
	return int64(math.Floor(x))
}

// size applies the configured sizing method.
func size(in sizeInput) (int64, []string) {
	price := in.signal.Price
	switch in.cfg.SizingMethod {
	case models.SizingFixedPercent:
		return floorQty(in.equity * in.cfg.MaxRiskPerTradePct / price), nil

	case models.SizingFixedR:
		return floorQty(in.oneR / in.stopDist), nil

	case models.SizingKelly:
		winRate := in.signal.Confidence / 100
		if in.signal.WinRate != nil {
			winRate = *in.signal.WinRate
		}
		payoff := in.cfg.TakeProfitR
		if in.signal.PayoffRatio != nil {
			payoff = *in.signal.PayoffRatio
		}
		f := KellyFraction(winRate, payoff)
		if f == 0 {
			return 0, []string{fmt.Sprintf("kelly: no edge at win rate %.2f, payoff %.2f", winRate, payoff)}
		}
		return floorQty(in.equity * f / price), nil

	case models.SizingVolatility:
		if in.signal.ATR > 0 {
			return floorQty(in.oneR / (in.cfg.ATRMultiplier * in.signal.ATR)), nil
		}
		return floorQty(in.equity * in.cfg.MaxRiskPerTradePct / price),
			[]string{"volatility sizing without ATR; fixed percent used"}
	}
	return 0, []string{fmt.Sprintf("unknown sizing method %s", in.cfg.SizingMethod)}
}
