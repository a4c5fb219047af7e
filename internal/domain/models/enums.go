package models

import (
	"fmt"
	"strings"
)

// enumNames maps the zero-based ordinal (minus one) of a closed enum to its wire name.
type enumNames []string

func (n enumNames) name(v uint8) string {
	if v == 0 || int(v) > len(n) {
		return "UNKNOWN"
	}
	return n[v-1]
}

func (n enumNames) parse(kind, s string) (uint8, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range n {
		if name == s {
			return uint8(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidEnum, kind, s)
}

// Vote is a module's directional call.
type Vote uint8

const (
	VoteBuy Vote = iota + 1
	VoteSell
	VoteHold
)

var voteNames = enumNames{"BUY", "SELL", "HOLD"}

// Votes lists every vote in tally order.
var Votes = []Vote{VoteBuy, VoteSell, VoteHold}

func (v Vote) String() string { return voteNames.name(uint8(v)) }
func (v Vote) Valid() bool    { return v >= VoteBuy && v <= VoteHold }

// Directional reports whether the vote calls for a trade.
func (v Vote) Directional() bool { return v == VoteBuy || v == VoteSell }

// Opposes reports whether v and o are opposite directional votes.
func (v Vote) Opposes(o Vote) bool {
	return (v == VoteBuy && o == VoteSell) || (v == VoteSell && o == VoteBuy)
}

func (v Vote) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: vote %d", ErrInvalidEnum, v)
	}
	return []byte(v.String()), nil
}

func (v *Vote) UnmarshalText(b []byte) error {
	x, err := voteNames.parse("vote", string(b))
	if err != nil {
		return err
	}
	*v = Vote(x)
	return nil
}

// ParseVote parses BUY, SELL or HOLD (case-insensitive).
func ParseVote(s string) (Vote, error) {
	var v Vote
	err := v.UnmarshalText([]byte(s))
	return v, err
}

// Regime is the market regime a prediction was made in.
type Regime uint8

const (
	RegimeBull Regime = iota + 1
	RegimeBear
	RegimeSideways
	RegimeVolatile
)

var regimeNames = enumNames{"BULL", "BEAR", "SIDEWAYS", "VOLATILE"}

func (r Regime) String() string { return regimeNames.name(uint8(r)) }
func (r Regime) Valid() bool    { return r >= RegimeBull && r <= RegimeVolatile }

func (r Regime) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: regime %d", ErrInvalidEnum, r)
	}
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(b []byte) error {
	x, err := regimeNames.parse("regime", string(b))
	if err != nil {
		return err
	}
	*r = Regime(x)
	return nil
}

// ParseRegime parses a regime name (case-insensitive).
func ParseRegime(s string) (Regime, error) {
	var r Regime
	err := r.UnmarshalText([]byte(s))
	return r, err
}

// Form summarizes a module's recent accuracy.
type Form uint8

const (
	FormHot Form = iota + 1
	FormWarm
	FormCold
)

var formNames = enumNames{"HOT", "WARM", "COLD"}

func (f Form) String() string { return formNames.name(uint8(f)) }

func (f Form) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Form) UnmarshalText(b []byte) error {
	x, err := formNames.parse("form", string(b))
	if err != nil {
		return err
	}
	*f = Form(x)
	return nil
}

// Severity is an ordered disagreement level; larger is worse.
type Severity uint8

const (
	SeverityNone Severity = iota + 1
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = enumNames{"NONE", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

// Severities lists every level in ascending order.
var Severities = []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string { return severityNames.name(uint8(s)) }

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	x, err := severityNames.parse("severity", string(b))
	if err != nil {
		return err
	}
	*s = Severity(x)
	return nil
}

// ConflictType names which module pair disagrees. ConflictNone means no rule matched.
type ConflictType uint8

const (
	ConflictNone ConflictType = iota + 1
	ConflictFundamentalVsTechnical
	ConflictSentimentVsNetVote
	ConflictMacroVsMajority
	ConflictTimingVsMajority
	ConflictSectorVsMajority
)

var conflictTypeNames = enumNames{
	"NONE",
	"FUNDAMENTAL_VS_TECHNICAL",
	"SENTIMENT_VS_NET_VOTE",
	"MACRO_VS_MAJORITY",
	"TIMING_VS_MAJORITY",
	"SECTOR_VS_MAJORITY",
}

func (c ConflictType) String() string { return conflictTypeNames.name(uint8(c)) }

func (c ConflictType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ConflictType) UnmarshalText(b []byte) error {
	x, err := conflictTypeNames.parse("conflict type", string(b))
	if err != nil {
		return err
	}
	*c = ConflictType(x)
	return nil
}

// OpportunityType is the trading read of a disagreement pattern.
type OpportunityType uint8

const (
	OpportunityNone OpportunityType = iota + 1
	OpportunityPanicSell
	OpportunityBottomFishing
	OpportunityBubbleWarning
	OpportunityTopExhaustion
	OpportunityTrendReversal
)

var opportunityNames = enumNames{
	"NONE",
	"PANIC_SELL_OPPORTUNITY",
	"BOTTOM_FISHING",
	"BUBBLE_WARNING",
	"TOP_EXHAUSTION",
	"TREND_REVERSAL",
}

// Opportunities lists every opportunity type.
var Opportunities = []OpportunityType{
	OpportunityNone, OpportunityPanicSell, OpportunityBottomFishing,
	OpportunityBubbleWarning, OpportunityTopExhaustion, OpportunityTrendReversal,
}

func (o OpportunityType) String() string { return opportunityNames.name(uint8(o)) }

func (o OpportunityType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OpportunityType) UnmarshalText(b []byte) error {
	x, err := opportunityNames.parse("opportunity", string(b))
	if err != nil {
		return err
	}
	*o = OpportunityType(x)
	return nil
}

// Category is the analytical family a scoring module belongs to.
type Category uint8

const (
	CategoryFundamental Category = iota + 1
	CategoryTechnical
	CategoryMacro
	CategorySentiment
	CategoryTiming
	CategorySector
	CategoryOther
)

var categoryNames = enumNames{"FUNDAMENTAL", "TECHNICAL", "MACRO", "SENTIMENT", "TIMING", "SECTOR", "OTHER"}

func (c Category) String() string { return categoryNames.name(uint8(c)) }

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	x, err := categoryNames.parse("category", string(b))
	if err != nil {
		return err
	}
	*c = Category(x)
	return nil
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (Category, error) {
	var c Category
	err := c.UnmarshalText([]byte(s))
	return c, err
}

// SizingMethod selects how the risk gate sizes a position.
type SizingMethod uint8

const (
	SizingFixedPercent SizingMethod = iota + 1
	SizingFixedR
	SizingKelly
	SizingVolatility
)

var sizingNames = enumNames{"FIXED_PERCENT", "FIXED_R", "KELLY", "VOLATILITY"}

func (m SizingMethod) String() string { return sizingNames.name(uint8(m)) }
func (m SizingMethod) Valid() bool    { return m >= SizingFixedPercent && m <= SizingVolatility }

func (m SizingMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: sizing method %d", ErrInvalidEnum, m)
	}
	return []byte(m.String()), nil
}

func (m *SizingMethod) UnmarshalText(b []byte) error {
	x, err := sizingNames.parse("sizing method", string(b))
	if err != nil {
		return err
	}
	*m = SizingMethod(x)
	return nil
}

// StopMethod selects how the stop-loss level is placed.
type StopMethod uint8

const (
	StopATR StopMethod = iota + 1
	StopPercent
	StopSupportResistance
)

var stopNames = enumNames{"ATR", "PERCENT", "SUPPORT_RESISTANCE"}

func (m StopMethod) String() string { return stopNames.name(uint8(m)) }
func (m StopMethod) Valid() bool    { return m >= StopATR && m <= StopSupportResistance }

func (m StopMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: stop method %d", ErrInvalidEnum, m)
	}
	return []byte(m.String()), nil
}

func (m *StopMethod) UnmarshalText(b []byte) error {
	x, err := stopNames.parse("stop method", string(b))
	if err != nil {
		return err
	}
	*m = StopMethod(x)
	return nil
}

// CompositeSignal is the five-band reading of a composite score.
type CompositeSignal uint8

const (
	SignalStrongBuy CompositeSignal = iota + 1
	SignalBuy
	SignalHold
	SignalSell
	SignalStrongSell
)

var compositeNames = enumNames{"STRONG_BUY", "BUY", "HOLD", "SELL", "STRONG_SELL"}

func (s CompositeSignal) String() string { return compositeNames.name(uint8(s)) }

func (s CompositeSignal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *CompositeSignal) UnmarshalText(b []byte) error {
	x, err := compositeNames.parse("composite signal", string(b))
	if err != nil {
		return err
	}
	*s = CompositeSignal(x)
	return nil
}

// Outcome is the resolution state of a prediction.
type Outcome uint8

const (
	OutcomeUnresolved Outcome = iota + 1
	OutcomeCorrect
	OutcomeIncorrect
)

var outcomeNames = enumNames{"UNRESOLVED", "CORRECT", "INCORRECT"}

func (o Outcome) String() string { return outcomeNames.name(uint8(o)) }

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	x, err := outcomeNames.parse("outcome", string(b))
	if err != nil {
		return err
	}
	*o = Outcome(x)
	return nil
}

// RejectCode classifies why the risk gate refused a trade.
type RejectCode uint8

const (
	RejectNone RejectCode = iota + 1
	RejectCooldown
	RejectSectorCap
	RejectPortfolioBudget
	RejectNoAction
)

var rejectNames = enumNames{"NONE", "COOLDOWN", "SECTOR_CAP_EXCEEDED", "PORTFOLIO_BUDGET_EXCEEDED", "NO_ACTION"}

func (r RejectCode) String() string { return rejectNames.name(uint8(r)) }

func (r RejectCode) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RejectCode) UnmarshalText(b []byte) error {
	x, err := rejectNames.parse("reject code", string(b))
	if err != nil {
		return err
	}
	*r = RejectCode(x)
	return nil
}
