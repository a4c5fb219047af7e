package api

import (
	"time"

	"Agora/internal/domain/models"
)

type CompositeRequest struct {
	Scores  map[string]float64 `json:"scores" validate:"required,min=1"`
	Profile string             `json:"profile" default:"balanced"`
	// AsOpinions also converts each score into a module opinion.
	AsOpinions bool `json:"as_opinions"`
}

type CompositeResponse struct {
	Composite *models.CompositeScore `json:"composite"`
	Opinions  []models.ModuleOpinion `json:"opinions,omitempty"`
}

type ConflictRequest struct {
	Opinions    []models.ModuleOpinion `json:"opinions"`
	PriorRegime *models.Regime         `json:"prior_regime,omitempty"`
}

type PortfolioRequest struct {
	Portfolio []models.PortfolioPosition `json:"portfolio" validate:"dive"`
	Equity    float64                    `json:"equity" validate:"gt=0"`
}

// ReviewRequest is a gate review body. consensus_pct must be sent; a zero
// value is a real (weak) consensus, not a missing one.
type ReviewRequest struct {
	Signal       models.Signal              `json:"signal" validate:"required"`
	Portfolio    []models.PortfolioPosition `json:"portfolio" validate:"dive"`
	ConsensusPct *float64                   `json:"consensus_pct" validate:"required,gte=0,lte=100"`
	Equity       float64                    `json:"equity" validate:"gt=0"`
}

func (r ReviewRequest) Input() models.ReviewInput {
	return models.ReviewInput{
		Signal:       r.Signal,
		Portfolio:    r.Portfolio,
		ConsensusPct: *r.ConsensusPct,
		Equity:       r.Equity,
	}
}

type StopLossRequest struct {
	Entry       float64     `json:"entry" validate:"gt=0"`
	Side        models.Vote `json:"side" validate:"required"`
	ATR         float64     `json:"atr" validate:"gte=0"`
	Supports    []float64   `json:"supports,omitempty"`
	Resistances []float64   `json:"resistances,omitempty"`
}

// RiskConfigPatch updates only the fields present in the body.
type RiskConfigPatch struct {
	MaxRiskPerTradePct   *float64             `json:"max_risk_per_trade_pct,omitempty"`
	MaxPortfolioRiskR    *float64             `json:"max_portfolio_risk_r,omitempty"`
	MaxSectorExposurePct *float64             `json:"max_sector_exposure_pct,omitempty"`
	CooldownHours        *float64             `json:"cooldown_hours,omitempty"`
	SizingMethod         *models.SizingMethod `json:"sizing_method,omitempty"`
	StopMethod           *models.StopMethod   `json:"stop_method,omitempty"`
	ATRMultiplier        *float64             `json:"atr_multiplier,omitempty"`
	StopLossPct          *float64             `json:"stop_loss_pct,omitempty"`
	TakeProfitR          *float64             `json:"take_profit_r,omitempty"`
	MinConsensusPct      *float64             `json:"min_consensus_pct,omitempty"`
	DefaultVolatility    *float64             `json:"default_volatility,omitempty"`
	PendingWindowMinutes *float64             `json:"pending_window_minutes,omitempty"`
	PriceDecimals        *int32               `json:"price_decimals,omitempty"`
}

// Apply overlays the patch on cfg.
func (p RiskConfigPatch) Apply(cfg models.RiskConfig) models.RiskConfig {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&cfg.MaxRiskPerTradePct, p.MaxRiskPerTradePct)
	setF(&cfg.MaxPortfolioRiskR, p.MaxPortfolioRiskR)
	setF(&cfg.MaxSectorExposurePct, p.MaxSectorExposurePct)
	setF(&cfg.CooldownHours, p.CooldownHours)
	setF(&cfg.ATRMultiplier, p.ATRMultiplier)
	setF(&cfg.StopLossPct, p.StopLossPct)
	setF(&cfg.TakeProfitR, p.TakeProfitR)
	setF(&cfg.MinConsensusPct, p.MinConsensusPct)
	setF(&cfg.DefaultVolatility, p.DefaultVolatility)
	setF(&cfg.PendingWindowMinutes, p.PendingWindowMinutes)
	if p.SizingMethod != nil {
		cfg.SizingMethod = *p.SizingMethod
	}
	if p.StopMethod != nil {
		cfg.StopMethod = *p.StopMethod
	}
	if p.PriceDecimals != nil {
		cfg.PriceDecimals = *p.PriceDecimals
	}
	return cfg
}

type CooldownResponse struct {
	Instrument       string  `json:"instrument"`
	Active           bool    `json:"active"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Remaining        string  `json:"remaining"`
}

type RecordPredictionRequest struct {
	Module     string        `json:"module" validate:"required"`
	Instrument string        `json:"instrument" validate:"required"`
	Vote       models.Vote   `json:"vote" validate:"required"`
	Confidence float64       `json:"confidence" validate:"gte=0,lte=100"`
	Regime     models.Regime `json:"regime" validate:"required"`
	Timestamp  *time.Time    `json:"timestamp,omitempty"`
}

type ResolvePredictionRequest struct {
	WasCorrect *bool `json:"was_correct" validate:"required"`
}
