package models

import (
	"fmt"
	"math"
	"time"
)

// ModuleOpinion is one scoring module's call on one instrument for one round.
type ModuleOpinion struct {
	Module     string  `json:"module"`
	Vote       Vote    `json:"vote"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Validate rejects opinions that must not be silently defaulted.
func (o ModuleOpinion) Validate() error {
	if o.Module == "" {
		return fmt.Errorf("%w: module id is required", ErrInvalidOpinion)
	}
	if !o.Vote.Valid() {
		return fmt.Errorf("%w: module %s has no valid vote", ErrInvalidOpinion, o.Module)
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 100 {
		return fmt.Errorf("%w: module %s confidence %v outside [0,100]", ErrInvalidOpinion, o.Module, o.Confidence)
	}
	return nil
}

// ValidateOpinions checks each opinion and that no module appears twice.
func ValidateOpinions(opinions []ModuleOpinion) error {
	seen := make(map[string]struct{}, len(opinions))
	for _, o := range opinions {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, dup := seen[o.Module]; dup {
			return fmt.Errorf("%w: module %s voted twice", ErrInvalidOpinion, o.Module)
		}
		seen[o.Module] = struct{}{}
	}
	return nil
}

// WeightedOpinion is an opinion with the weight in effect for this round.
type WeightedOpinion struct {
	ModuleOpinion
	Weight float64 `json:"weight"`
}

// Score is confidence scaled by weight.
func (w WeightedOpinion) Score() float64 { return w.Confidence * w.Weight }

// Tally counts raw votes.
type Tally struct {
	Buy  uint32 `json:"buy"`
	Sell uint32 `json:"sell"`
	Hold uint32 `json:"hold"`
}

// Add counts one vote.
func (t *Tally) Add(v Vote) {
	switch v {
	case VoteBuy:
		t.Buy++
	case VoteSell:
		t.Sell++
	case VoteHold:
		t.Hold++
	}
}

// Count returns the raw count for v.
func (t Tally) Count(v Vote) uint32 {
	switch v {
	case VoteBuy:
		return t.Buy
	case VoteSell:
		return t.Sell
	case VoteHold:
		return t.Hold
	}
	return 0
}

// Total is the number of votes counted.
func (t Tally) Total() uint32 { return t.Buy + t.Sell + t.Hold }

// CouncilDecision is the consensus verdict for one evaluation round.
type CouncilDecision struct {
	Instrument   string             `json:"instrument"`
	Verdict      Vote               `json:"verdict"`
	ConsensusPct int                `json:"consensus_pct"`
	Tally        Tally              `json:"tally"`
	BucketScores map[string]float64 `json:"bucket_scores"`
	Opinions     []ModuleOpinion    `json:"opinions"`
	Weights      map[string]float64 `json:"weights"`
	Narrative    string             `json:"narrative"`
	ProducedAt   time.Time          `json:"produced_at"`
}

// CompositeScore is the profile-weighted reading of per-module scores.
type CompositeScore struct {
	Profile    string             `json:"profile"`
	Score      float64            `json:"score"`
	Signal     CompositeSignal    `json:"signal"`
	Confidence float64            `json:"confidence"`
	Weights    map[string]float64 `json:"weights"`
}
