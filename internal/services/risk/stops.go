package risk

import (
	"fmt"
	"math"

	"Agora/internal/domain/models"

	"github.com/shopspring/decimal"
)

// roundPrice rounds to the configured tick precision.
func roundPrice(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// direction is +1 for longs and -1 for shorts.
func direction(side models.Vote) float64 {
	if side == models.VoteSell {
		return -1
	}
	return 1
}

// nearestLevel picks the closest support below a long entry or the closest
// resistance above a short entry.
func nearestLevel(entry float64, side models.Vote, supports, resistances []float64) (float64, bool) {
	var (
		best  float64
		found bool
	)
	if side == models.VoteBuy {
		for _, s := range supports {
			if s > 0 && s < entry && (!found || s > best) {
				best, found = s, true
			}
		}
		return best, found
	}
	for _, r := range resistances {
		if r > entry && (!found || r < best) {
			best, found = r, true
		}
	}
	return best, found
}

// stopDistance resolves the configured stop method to a price distance,
// falling back to the percent stop when its inputs are missing.
func stopDistance(cfg models.RiskConfig, entry float64, side models.Vote, atr float64, supports, resistances []float64) (models.StopMethod, float64, []string) {
	var warnings []string
	method := cfg.StopMethod

	switch method {
	case models.StopATR:
		if atr > 0 && cfg.ATRMultiplier*atr < entry {
			return method, cfg.ATRMultiplier * atr, nil
		}
		if atr > 0 {
			warnings = append(warnings, fmt.Sprintf("ATR stop %.4f would cross zero; percent stop used", cfg.ATRMultiplier*atr))
		} else {
			warnings = append(warnings, "no ATR supplied; percent stop used")
		}
	case models.StopSupportResistance:
		if level, ok := nearestLevel(entry, side, supports, resistances); ok {
			return method, math.Abs(entry - level), nil
		}
		warnings = append(warnings, "no usable support/resistance level; percent stop used")
	}
	return models.StopPercent, entry * cfg.StopLossPct, warnings
}

func suggestStop(cfg models.RiskConfig, entry float64, side models.Vote, atr float64, supports, resistances []float64) (*models.StopSuggestion, float64, error) {
	if !(entry > 0) || math.IsInf(entry, 0) {
		return nil, 0, fmt.Errorf("%w: entry price must be positive, got %v", models.ErrInvalidSignal, entry)
	}
	if !side.Directional() {
		return nil, 0, fmt.Errorf("%w: stop requires BUY or SELL, got %s", models.ErrInvalidSignal, side)
	}
	if atr < 0 || math.IsNaN(atr) {
		return nil, 0, fmt.Errorf("%w: negative ATR", models.ErrInvalidSignal)
	}

	method, dist, warnings := stopDistance(cfg, entry, side, atr, supports, resistances)
	dir := direction(side)
	return &models.StopSuggestion{
		Method:     method,
		StopLoss:   roundPrice(entry-dir*dist, cfg.PriceDecimals),
		TakeProfit: roundPrice(entry+dir*cfg.TakeProfitR*dist, cfg.PriceDecimals),
		Distance:   roundPrice(dist, cfg.PriceDecimals),
		Warnings:   warnings,
	}, dist, nil
}

// SuggestStopLoss computes stop-loss and take-profit levels for an entry
// under the current configuration.
func (g *Gate) SuggestStopLoss(entry float64, side models.Vote, atr float64, supports, resistances []float64) (*models.StopSuggestion, error) {
	s, _, err := suggestStop(g.Config(), entry, side, atr, supports, resistances)
	return s, err
}
