package conflict

import (
	"math"
	"sort"

	"Agora/internal/domain/models"
	"Agora/internal/domain/service"

	"gonum.org/v1/gonum/stat"
)

// Thresholds are the variance-score cut points between severity levels.
// They must be strictly increasing.
type Thresholds struct {
	Low      int `yaml:"low" json:"low"`
	Medium   int `yaml:"medium" json:"medium"`
	High     int `yaml:"high" json:"high"`
	Critical int `yaml:"critical" json:"critical"`
}

// DefaultThresholds are the stock severity cut points.
var DefaultThresholds = Thresholds{Low: 25, Medium: 40, High: 55, Critical: 70}

// Valid reports whether the thresholds are strictly increasing within 0..100.
func (t Thresholds) Valid() bool {
	return 0 < t.Low && t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical && t.Critical <= 100
}

// Severity maps a variance score to a level. A Buy/Sell split reaching the
// High cut point lands on High or above from the score alone, so polarity
// needs no separate floor.
func (t Thresholds) Severity(score int) models.Severity {
	switch {
	case score < t.Low:
		return models.SeverityNone
	case score < t.Medium:
		return models.SeverityLow
	case score < t.High:
		return models.SeverityMedium
	case score < t.Critical:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

// Option configures Detector.
type Option func(*Detector)

// WithThresholds replaces the severity cut points. Invalid thresholds are ignored.
func WithThresholds(t Thresholds) Option {
	return func(d *Detector) {
		if t.Valid() {
			d.thresholds = t
		}
	}
}

// Detector classifies disagreement between module opinions. It is pure and
// safe for concurrent use.
type Detector struct {
	registry   models.ModuleRegistry
	thresholds Thresholds
}

// New creates a conflict detector.
func New(registry models.ModuleRegistry, opts ...Option) *Detector {
	if registry == nil {
		registry = models.DefaultModuleRegistry()
	}
	d := &Detector{registry: registry, thresholds: DefaultThresholds}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze classifies the opinions. An empty set yields a no-data analysis.
func (d *Detector) Analyze(opinions []models.ModuleOpinion, priorRegime *models.Regime) (*models.ConflictAnalysis, error) {
	if len(opinions) == 0 {
		return noData(), nil
	}
	if err := models.ValidateOpinions(opinions); err != nil {
		return nil, err
	}

	confidences := make([]float64, len(opinions))
	for i, o := range opinions {
		confidences[i] = o.Confidence
	}
	score := int(math.Min(100, math.Round(stat.PopVariance(confidences, nil))))
	severity := d.thresholds.Severity(score)

	v := newView(d.registry, opinions)
	ctype, cInvolved := v.conflictType()
	opp, oInvolved := v.opportunity(priorRegime)

	return &models.ConflictAnalysis{
		Severity:        severity,
		ConflictType:    ctype,
		VarianceScore:   score,
		Opportunity:     opp,
		InvolvedModules: merge(cInvolved, oInvolved),
		ActionHint:      ActionHint(severity, opp),
	}, nil
}

func noData() *models.ConflictAnalysis {
	return &models.ConflictAnalysis{
		NoData:          true,
		Severity:        models.SeverityNone,
		ConflictType:    models.ConflictNone,
		Opportunity:     models.OpportunityNone,
		InvolvedModules: []models.InvolvedModule{},
		ActionHint:      noDataHint,
	}
}

func merge(groups ...[]models.ModuleOpinion) []models.InvolvedModule {
	seen := make(map[string]struct{})
	out := make([]models.InvolvedModule, 0)
	for _, g := range groups {
		for _, o := range g {
			if _, ok := seen[o.Module]; ok {
				continue
			}
			seen[o.Module] = struct{}{}
			out = append(out, models.InvolvedModule{Module: o.Module, Vote: o.Vote, Confidence: o.Confidence})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

var _ service.ConflictAnalyzer = (*Detector)(nil)
