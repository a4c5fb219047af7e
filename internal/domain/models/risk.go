package models

import "time"

// RiskConfig holds the risk gate's tunables. Fractions are in (0,1].
type RiskConfig struct {
	MaxRiskPerTradePct   float64      `json:"max_risk_per_trade_pct" yaml:"max_risk_per_trade_pct" default:"0.02" validate:"gt=0,lte=1"`
	MaxPortfolioRiskR    float64      `json:"max_portfolio_risk_r" yaml:"max_portfolio_risk_r" default:"6" validate:"gt=0"`
	MaxSectorExposurePct float64      `json:"max_sector_exposure_pct" yaml:"max_sector_exposure_pct" default:"0.25" validate:"gt=0,lte=1"`
	CooldownHours        float64      `json:"cooldown_hours" yaml:"cooldown_hours" default:"24" validate:"gte=0"`
	SizingMethod         SizingMethod `json:"sizing_method" yaml:"sizing_method" default:"FIXED_R" validate:"required"`
	StopMethod           StopMethod   `json:"stop_method" yaml:"stop_method" default:"ATR" validate:"required"`
	ATRMultiplier        float64      `json:"atr_multiplier" yaml:"atr_multiplier" default:"2" validate:"gt=0"`
	StopLossPct          float64      `json:"stop_loss_pct" yaml:"stop_loss_pct" default:"0.05" validate:"gt=0,lte=1"`
	TakeProfitR          float64      `json:"take_profit_r" yaml:"take_profit_r" default:"2" validate:"gt=0"`
	MinConsensusPct      float64      `json:"min_consensus_pct" yaml:"min_consensus_pct" default:"50" validate:"gte=0,lte=100"`
	DefaultVolatility    float64      `json:"default_volatility" yaml:"default_volatility" default:"0.02" validate:"gt=0,lte=1"`
	PendingWindowMinutes float64      `json:"pending_window_minutes" yaml:"pending_window_minutes" default:"15" validate:"gte=0"`
	PriceDecimals        int32        `json:"price_decimals" yaml:"price_decimals" default:"4" validate:"gte=0,lte=10"`
}

// Cooldown is the configured cooldown as a duration.
func (c RiskConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours * float64(time.Hour))
}

// PendingWindow is how long an approval counts against the budget before it shows up in the portfolio.
func (c RiskConfig) PendingWindow() time.Duration {
	return time.Duration(c.PendingWindowMinutes * float64(time.Minute))
}

// PortfolioPosition is a read-only position from the portfolio snapshot.
// StopLoss, CurrentPrice and Volatility are optional (zero means absent).
type PortfolioPosition struct {
	Symbol       string  `json:"symbol" validate:"required"`
	EntryPrice   float64 `json:"entry_price" validate:"gt=0"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Sector       string  `json:"sector"`
	IsOpen       bool    `json:"is_open"`
	StopLoss     float64 `json:"stop_loss,omitempty" validate:"gte=0"`
	CurrentPrice float64 `json:"current_price,omitempty" validate:"gte=0"`
	Volatility   float64 `json:"volatility,omitempty" validate:"gte=0"`
}

// MarkPrice is the current price when known, else the entry price.
func (p PortfolioPosition) MarkPrice() float64 {
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	return p.EntryPrice
}

// Notional is the marked value of the position.
func (p PortfolioPosition) Notional() float64 { return p.MarkPrice() * p.Quantity }

// Signal is a proposed trade awaiting the gate.
type Signal struct {
	Instrument  string    `json:"instrument" validate:"required"`
	Action      Vote      `json:"action" validate:"required"`
	Price       float64   `json:"price" validate:"gt=0"`
	Confidence  float64   `json:"confidence" validate:"gte=0,lte=100"`
	Sector      string    `json:"sector"`
	ATR         float64   `json:"atr,omitempty" validate:"gte=0"`
	WinRate     *float64  `json:"win_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	PayoffRatio *float64  `json:"payoff_ratio,omitempty" validate:"omitempty,gt=0"`
	Supports    []float64 `json:"supports,omitempty"`
	Resistances []float64 `json:"resistances,omitempty"`
}

// ReviewInput bundles everything one gate review reads.
type ReviewInput struct {
	Signal       Signal              `json:"signal" validate:"required"`
	Portfolio    []PortfolioPosition `json:"portfolio" validate:"dive"`
	ConsensusPct float64             `json:"consensus_pct" validate:"gte=0,lte=100"`
	Equity       float64             `json:"equity" validate:"gt=0"`
}

// RiskDecision is the gate's verdict on a signal.
type RiskDecision struct {
	Instrument          string       `json:"instrument"`
	Approved            bool         `json:"approved"`
	Code                RejectCode   `json:"code"`
	Reason              string       `json:"reason"`
	AdjustedQuantity    int64        `json:"adjusted_quantity"`
	SuggestedStopLoss   float64      `json:"suggested_stop_loss"`
	SuggestedTakeProfit float64      `json:"suggested_take_profit"`
	RiskR               float64      `json:"risk_r"`
	RiskAmount          float64      `json:"risk_amount"`
	SizingMethod        SizingMethod `json:"sizing_method"`
	Warnings            []string     `json:"warnings"`
	ReviewedAt          time.Time    `json:"reviewed_at"`
}

// StopSuggestion is a stop-loss / take-profit pair for an entry.
type StopSuggestion struct {
	Method     StopMethod `json:"method"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Distance   float64    `json:"distance"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// PortfolioRiskMetrics aggregates portfolio-wide risk. Percentages are 0..100.
type PortfolioRiskMetrics struct {
	TotalRiskR         float64            `json:"total_risk_r"`
	SectorExposure     map[string]float64 `json:"sector_exposure"`
	GrossExposurePct   float64            `json:"gross_exposure_pct"`
	MaxDrawdownPct     float64            `json:"max_drawdown_pct"`
	Var95Pct           float64            `json:"var95_pct"`
	Var95Amount        float64            `json:"var95_amount"`
	ConcentrationIndex float64            `json:"concentration_index"`
	OpenPositions      int                `json:"open_positions"`
}

// GateRecord is one approved review kept for cooldown and budget math.
type GateRecord struct {
	Instrument string    `json:"instrument"`
	Sector     string    `json:"sector"`
	Quantity   int64     `json:"quantity"`
	Notional   float64   `json:"notional"`
	RiskR      float64   `json:"risk_r"`
	ApprovedAt time.Time `json:"approved_at"`
}

// EquityPoint is one observation of account equity.
type EquityPoint struct {
	At     time.Time `json:"at"`
	Equity float64   `json:"equity"`
}

// GateState is the exportable state of a risk gate.
type GateState struct {
	Config      RiskConfig           `json:"config"`
	Cooldowns   map[string]time.Time `json:"cooldowns"`
	History     []GateRecord         `json:"history"`
	EquityCurve []EquityPoint        `json:"equity_curve"`
}
