package council

import (
	"fmt"
	"math"
	"sort"

	"Agora/internal/domain/models"
	"Agora/internal/domain/service"

	"gonum.org/v1/gonum/stat"
)

// Profile weights module categories. Categories not listed weigh DefaultWeight.
type Profile map[models.Category]float64

// Weight returns the profile weight for a category.
func (p Profile) Weight(c models.Category) float64 {
	if w, ok := p[c]; ok {
		return w
	}
	return DefaultWeight
}

const (
	ProfileBalanced    = "balanced"
	ProfileTechnical   = "technical"
	ProfileFundamental = "fundamental"
)

// DefaultProfiles returns the stock weighting profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileBalanced: {},
		ProfileTechnical: {
			models.CategoryTechnical:   3,
			models.CategoryTiming:      2,
			models.CategorySentiment:   1,
			models.CategoryFundamental: 0.5,
			models.CategoryMacro:       0.5,
			models.CategorySector:      0.5,
		},
		ProfileFundamental: {
			models.CategoryFundamental: 3,
			models.CategoryMacro:       1.5,
			models.CategorySector:      1.5,
			models.CategoryTechnical:   0.5,
			models.CategoryTiming:      0.5,
			models.CategorySentiment:   0.5,
		},
	}
}

// ScorerOption configures Scorer.
type ScorerOption func(*Scorer)

// WithProfiles replaces the weighting profiles.
func WithProfiles(p map[string]Profile) ScorerOption {
	return func(s *Scorer) {
		if len(p) > 0 {
			s.profiles = p
		}
	}
}

// WithWeightSource scales profile weights by tracked module multipliers.
func WithWeightSource(ws service.WeightSource) ScorerOption {
	return func(s *Scorer) { s.weights = ws }
}

// Scorer blends 0..100 module scores into a composite under a named profile.
type Scorer struct {
	registry models.ModuleRegistry
	profiles map[string]Profile
	weights  service.WeightSource
}

// NewScorer creates a composite scorer.
func NewScorer(registry models.ModuleRegistry, opts ...ScorerOption) *Scorer {
	if registry == nil {
		registry = models.DefaultModuleRegistry()
	}
	s := &Scorer{registry: registry, profiles: DefaultProfiles()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profiles lists the configured profile names in order.
func (s *Scorer) Profiles() []string {
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Score computes the composite for scores keyed by module id.
func (s *Scorer) Score(scores map[string]float64, profile string) (*models.CompositeScore, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no module scores", models.ErrInsufficientInput)
	}
	if profile == "" {
		profile = ProfileBalanced
	}
	p, ok := s.profiles[profile]
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q", models.ErrInvalidConfig, profile)
	}

	modules := make([]string, 0, len(scores))
	for m := range scores {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var multipliers map[string]float64
	if s.weights != nil {
		multipliers = s.weights.Multipliers(modules)
	}

	xs := make([]float64, 0, len(modules))
	ws := make([]float64, 0, len(modules))
	used := make(map[string]float64, len(modules))
	for _, m := range modules {
		v := scores[m]
		if math.IsNaN(v) || v < 0 || v > 100 {
			return nil, fmt.Errorf("%w: module %s score %v outside [0,100]", models.ErrInvalidOpinion, m, v)
		}
		w := p.Weight(s.registry.CategoryOf(m))
		if mult, ok := multipliers[m]; ok {
			w *= mult
		}
		xs = append(xs, v)
		ws = append(ws, w)
		used[m] = w
	}

	var sumW float64
	for _, w := range ws {
		sumW += w
	}
	if sumW <= 0 {
		return nil, fmt.Errorf("%w: profile %q gives every module zero weight", models.ErrInvalidConfig, profile)
	}

	composite := stat.Mean(xs, ws)
	confidence := clamp(100-2*stat.PopStdDev(xs, nil), 0, 100)

	return &models.CompositeScore{
		Profile:    profile,
		Score:      round2(composite),
		Signal:     SignalForScore(composite),
		Confidence: round2(confidence),
		Weights:    used,
	}, nil
}

// SignalForScore maps a composite score to its band.
func SignalForScore(score float64) models.CompositeSignal {
	switch {
	case score >= 70:
		return models.SignalStrongBuy
	case score >= 55:
		return models.SignalBuy
	case score > 45:
		return models.SignalHold
	case score > 30:
		return models.SignalSell
	default:
		return models.SignalStrongSell
	}
}

// OpinionFromScore converts a module score into a vote with matching confidence.
func OpinionFromScore(module string, score float64, rationale string) models.ModuleOpinion {
	vote := models.VoteHold
	switch {
	case score >= 60:
		vote = models.VoteBuy
	case score <= 40:
		vote = models.VoteSell
	}
	return models.ModuleOpinion{
		Module:     module,
		Vote:       vote,
		Confidence: clamp(math.Abs(score-50)*2, 0, 100),
		Rationale:  rationale,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
