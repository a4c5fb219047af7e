package council

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/domain/service"
)

// DefaultWeight applies to modules missing from the weight table.
const DefaultWeight = 1.0

// Option configures Engine.
type Option func(*Engine)

// WithClock overrides the time source stamped on decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is the weighted-vote consensus engine. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a consensus engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes the verdict for one round of module opinions.
func (e *Engine) Evaluate(instrument string, opinions []models.ModuleOpinion, weights map[string]float64) (*models.CouncilDecision, error) {
	if len(opinions) == 0 {
		return nil, fmt.Errorf("%w: no module opinions for %q", models.ErrInsufficientInput, instrument)
	}
	if err := models.ValidateOpinions(opinions); err != nil {
		return nil, err
	}
	weighted, err := applyWeights(opinions, weights)
	if err != nil {
		return nil, err
	}

	var (
		tally  models.Tally
		scores = make(map[models.Vote]float64, len(models.Votes))
		total  float64
	)
	for _, w := range weighted {
		tally.Add(w.Vote)
		scores[w.Vote] += w.Score()
		total += w.Score()
	}

	verdict := pickVerdict(scores, tally)

	var pct int
	if total > 0 {
		pct = int(math.Round(100 * scores[verdict] / total))
	} else {
		pct = int(math.Round(100 * float64(tally.Count(verdict)) / float64(tally.Total())))
	}

	bucket := make(map[string]float64, len(models.Votes))
	used := make(map[string]float64, len(weighted))
	for _, v := range models.Votes {
		bucket[v.String()] = scores[v]
	}
	for _, w := range weighted {
		used[w.Module] = w.Weight
	}

	return &models.CouncilDecision{
		Instrument:   instrument,
		Verdict:      verdict,
		ConsensusPct: pct,
		Tally:        tally,
		BucketScores: bucket,
		Opinions:     append([]models.ModuleOpinion(nil), opinions...),
		Weights:      used,
		Narrative:    narrative(verdict, pct, tally, weighted),
		ProducedAt:   e.now().UTC(),
	}, nil
}

func applyWeights(opinions []models.ModuleOpinion, weights map[string]float64) ([]models.WeightedOpinion, error) {
	out := make([]models.WeightedOpinion, 0, len(opinions))
	for _, o := range opinions {
		w := DefaultWeight
		if v, ok := weights[o.Module]; ok {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, fmt.Errorf("%w: module %s weight %v", models.ErrInvalidOpinion, o.Module, v)
			}
			w = v
		}
		out = append(out, models.WeightedOpinion{ModuleOpinion: o, Weight: w})
	}
	return out, nil
}

// pickVerdict takes the highest bucket; ties go to the larger raw count, then Hold.
func pickVerdict(scores map[models.Vote]float64, tally models.Tally) models.Vote {
	var (
		best []models.Vote
		top  = math.Inf(-1)
	)
	for _, v := range models.Votes {
		s := scores[v]
		switch {
		case sameScore(s, top):
			best = append(best, v)
		case s > top:
			top = s
			best = []models.Vote{v}
		}
	}
	if len(best) == 1 {
		return best[0]
	}

	var (
		winner models.Vote
		most   uint32
		tied   bool
	)
	for _, v := range best {
		c := tally.Count(v)
		switch {
		case winner == 0 || c > most:
			winner, most, tied = v, c, false
		case c == most:
			tied = true
		}
	}
	if tied {
		return models.VoteHold
	}
	return winner
}

func sameScore(a, b float64) bool {
	if math.IsInf(b, 0) {
		return false
	}
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func narrative(verdict models.Vote, pct int, tally models.Tally, weighted []models.WeightedOpinion) string {
	ordered := append([]models.WeightedOpinion(nil), weighted...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].Score(), ordered[j].Score()
		if !sameScore(si, sj) {
			return si > sj
		}
		return ordered[i].Module < ordered[j].Module
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s with %d%% consensus (%d buy, %d sell, %d hold).",
		verdict, pct, tally.Buy, tally.Sell, tally.Hold)
	for _, w := range ordered {
		rationale := strings.TrimSpace(w.Rationale)
		if rationale == "" {
			rationale = "no rationale given"
		}
		fmt.Fprintf(&b, " %s %s %.0f (x%.2f): %s.", w.Module, w.Vote, w.Confidence, w.Weight, strings.TrimSuffix(rationale, "."))
	}
	return b.String()
}

var _ service.Council = (*Engine)(nil)
