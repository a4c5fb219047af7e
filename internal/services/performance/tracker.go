package performance

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/domain/service"

	"github.com/google/uuid"
)

const (
	DefaultWindow     = 30
	DefaultMinSamples = 5

	MinMultiplier     = 0.5
	MaxMultiplier     = 1.5
	NeutralMultiplier = 1.0

	HotAccuracy  = 0.65
	ColdAccuracy = 0.40
)

// Option configures Tracker.
type Option func(*Tracker)

// WithWindow sets how many recent resolved records feed the multiplier.
func WithWindow(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.window = n
		}
	}
}

// WithMinSamples sets how many resolved records are needed before the multiplier moves off 1.0.
func WithMinSamples(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.minSamples = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.newID = gen
		}
	}
}

type history struct {
	mu      sync.Mutex
	records []*models.PredictionRecord // ascending by Timestamp
	byID    map[string]*models.PredictionRecord
}

func newHistory() *history {
	return &history{byID: make(map[string]*models.PredictionRecord)}
}

func (h *history) insert(r *models.PredictionRecord) {
	i := sort.Search(len(h.records), func(i int) bool {
		return h.records[i].Timestamp.After(r.Timestamp)
	})
	h.records = append(h.records, nil)
	copy(h.records[i+1:], h.records[i:])
	h.records[i] = r
	h.byID[r.ID] = r
}

// Tracker keeps per-module prediction history and derives voting multipliers.
// Each module's history has its own lock; the record index has another.
type Tracker struct {
	mu      sync.RWMutex
	modules map[string]*history
	index   map[string]string // record id -> module

	window     int
	minSamples int
	now        func() time.Time
	newID      func() string
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		modules:    make(map[string]*history),
		index:      make(map[string]string),
		window:     DefaultWindow,
		minSamples: DefaultMinSamples,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset drops all history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.modules = make(map[string]*history)
	t.index = make(map[string]string)
	t.mu.Unlock()
}

func (t *Tracker) history(module string, create bool) *history {
	t.mu.RLock()
	h := t.modules[module]
	t.mu.RUnlock()
	if h != nil || !create {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h = t.modules[module]; h == nil {
		h = newHistory()
		t.modules[module] = h
	}
	return h
}

// RecordPrediction appends an unresolved prediction. A zero ts means now.
func (t *Tracker) RecordPrediction(module, instrument string, vote models.Vote, confidence float64, regime models.Regime, ts time.Time) (models.PredictionRecord, error) {
	op := models.ModuleOpinion{Module: module, Vote: vote, Confidence: confidence}
	if err := op.Validate(); err != nil {
		return models.PredictionRecord{}, fmt.Errorf("record prediction: %w", err)
	}
	if !regime.Valid() {
		return models.PredictionRecord{}, fmt.Errorf("record prediction: %w: regime is required", models.ErrInvalidOpinion)
	}
	if ts.IsZero() {
		ts = t.now()
	}

	r := &models.PredictionRecord{
		ID:         t.newID(),
		Module:     module,
		Instrument: instrument,
		Vote:       vote,
		Confidence: confidence,
		Regime:     regime,
		Timestamp:  ts.UTC(),
		Outcome:    models.OutcomeUnresolved,
	}

	h := t.history(module, true)
	h.mu.Lock()
	h.insert(r)
	out := *r
	h.mu.Unlock()

	t.mu.Lock()
	t.index[r.ID] = module
	t.mu.Unlock()

	return out, nil
}

// ResolvePrediction records ground truth for a prediction. Resolving twice overwrites the outcome.
func (t *Tracker) ResolvePrediction(id string, wasCorrect bool) (models.PredictionRecord, error) {
	t.mu.RLock()
	module, ok := t.index[id]
	t.mu.RUnlock()
	if !ok {
		return models.PredictionRecord{}, fmt.Errorf("%w: %s", models.ErrUnknownRecord, id)
	}

	h := t.history(module, false)
	if h == nil {
		return models.PredictionRecord{}, fmt.Errorf("%w: %s", models.ErrUnknownRecord, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.byID[id]
	if !ok {
		return models.PredictionRecord{}, fmt.Errorf("%w: %s", models.ErrUnknownRecord, id)
	}
	r.Outcome = models.OutcomeIncorrect
	if wasCorrect {
		r.Outcome = models.OutcomeCorrect
	}
	now := t.now().UTC()
	r.ResolvedAt = &now
	return *r, nil
}

// CurrentMultiplier derives a module's voting multiplier from its recent resolved records.
func (t *Tracker) CurrentMultiplier(module string) float64 {
	return t.Performance(module, nil).WeightMultiplier
}

// RegimeMultiplier is CurrentMultiplier restricted to one market regime.
func (t *Tracker) RegimeMultiplier(module string, regime models.Regime) float64 {
	return t.Performance(module, &regime).WeightMultiplier
}

// Multipliers returns the weight table for the given modules.
func (t *Tracker) Multipliers(modules []string) map[string]float64 {
	out := make(map[string]float64, len(modules))
	for _, m := range modules {
		out[m] = t.CurrentMultiplier(m)
	}
	return out
}

// Performance summarizes a module, optionally within one regime.
func (t *Tracker) Performance(module string, regime *models.Regime) models.ModulePerformance {
	p := models.ModulePerformance{Module: module, Regime: regime}

	if h := t.history(module, false); h != nil {
		h.mu.Lock()
		for i := len(h.records) - 1; i >= 0; i-- {
			r := h.records[i]
			if regime != nil && r.Regime != *regime {
				continue
			}
			p.TotalPredictions++
			switch r.Outcome {
			case models.OutcomeCorrect:
				p.CorrectPredictions++
			case models.OutcomeUnresolved:
				p.Unresolved++
			}
			if r.Resolved() && p.RollingWindow.Total < t.window {
				p.RollingWindow.Total++
				if r.Outcome == models.OutcomeCorrect {
					p.RollingWindow.Correct++
				}
			}
		}
		h.mu.Unlock()
	}

	p.WeightMultiplier, p.Form = t.grade(p.RollingWindow)
	return p
}

// Modules lists every module with history.
func (t *Tracker) Modules() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.modules))
	for m := range t.modules {
		out = append(out, m)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (t *Tracker) grade(w models.RollingWindow) (float64, models.Form) {
	if w.Total < t.minSamples {
		return NeutralMultiplier, models.FormWarm
	}
	acc := w.Accuracy()
	mult := math.Max(MinMultiplier, math.Min(MaxMultiplier, 0.5+acc))
	switch {
	case acc >= HotAccuracy:
		return mult, models.FormHot
	case acc <= ColdAccuracy:
		return mult, models.FormCold
	default:
		return mult, models.FormWarm
	}
}

// Export copies every record, grouped by module and ordered by time.
func (t *Tracker) Export() []models.PredictionRecord {
	var out []models.PredictionRecord
	for _, m := range t.Modules() {
		h := t.history(m, false)
		if h == nil {
			continue
		}
		h.mu.Lock()
		for _, r := range h.records {
			out = append(out, *r)
		}
		h.mu.Unlock()
	}
	return out
}

// Load replaces all history with records, e.g. from a checkpoint.
func (t *Tracker) Load(records []models.PredictionRecord) error {
	modules := make(map[string]*history)
	index := make(map[string]string, len(records))
	for i := range records {
		r := records[i]
		if r.ID == "" {
			return fmt.Errorf("load record %d: %w: missing id", i, models.ErrInvalidOpinion)
		}
		if _, dup := index[r.ID]; dup {
			return fmt.Errorf("load record %s: %w: duplicate id", r.ID, models.ErrInvalidOpinion)
		}
		if err := (models.ModuleOpinion{Module: r.Module, Vote: r.Vote, Confidence: r.Confidence}).Validate(); err != nil {
			return fmt.Errorf("load record %s: %w", r.ID, err)
		}
		if !r.Regime.Valid() {
			return fmt.Errorf("load record %s: %w: invalid regime", r.ID, models.ErrInvalidOpinion)
		}
		if r.Outcome == 0 {
			r.Outcome = models.OutcomeUnresolved
		}
		h := modules[r.Module]
		if h == nil {
			h = newHistory()
			modules[r.Module] = h
		}
		h.insert(&r)
		index[r.ID] = r.Module
	}

	t.mu.Lock()
	t.modules = modules
	t.index = index
	t.mu.Unlock()
	return nil
}

var _ service.PredictionTracker = (*Tracker)(nil)
