package usecase

import (
	"context"
	"fmt"
	"time"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
	"Agora/internal/domain/service"
	applogger "Agora/pkg/logger"
	"Agora/pkg/util"
)

// TradeContext carries what the risk gate needs to size a trade on the
// council's verdict.
type TradeContext struct {
	Price       float64                    `json:"price" validate:"gt=0"`
	Sector      string                     `json:"sector"`
	ATR         float64                    `json:"atr" validate:"gte=0"`
	WinRate     *float64                   `json:"win_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	PayoffRatio *float64                   `json:"payoff_ratio,omitempty" validate:"omitempty,gt=0"`
	Supports    []float64                  `json:"supports,omitempty"`
	Resistances []float64                  `json:"resistances,omitempty"`
	Portfolio   []models.PortfolioPosition `json:"portfolio" validate:"dive"`
	Equity      float64                    `json:"equity" validate:"gt=0"`
}

// EvaluateInput is one council round.
type EvaluateInput struct {
	Instrument string                 `json:"instrument" validate:"required"`
	Opinions   []models.ModuleOpinion `json:"opinions"`
	// Weights override the tracked multipliers per module.
	Weights map[string]float64 `json:"weights,omitempty"`
	// Regime is the prevailing market regime. It feeds trend reversal
	// detection and tags recorded predictions.
	Regime *models.Regime `json:"regime,omitempty"`
	Trade  *TradeContext  `json:"trade,omitempty"`
}

// Evaluation is everything one round produced.
type Evaluation struct {
	Decision *models.CouncilDecision  `json:"decision"`
	Conflict *models.ConflictAnalysis `json:"conflict"`
	Review   *models.RiskDecision     `json:"review,omitempty"`
	// Predictions maps module id to the prediction record opened for it.
	Predictions map[string]string `json:"predictions,omitempty"`
}

// DecisionOption configures DecisionUseCase.
type DecisionOption func(*DecisionUseCase)

// WithPerformanceWeighting scales votes by tracked accuracy.
func WithPerformanceWeighting(on bool) DecisionOption {
	return func(u *DecisionUseCase) { u.weighting = on }
}

// WithPredictionRecording opens a prediction record per opinion.
func WithPredictionRecording(on bool) DecisionOption {
	return func(u *DecisionUseCase) { u.recordPredictions = on }
}

func WithDecisionLogger(l *applogger.Logger) DecisionOption {
	return func(u *DecisionUseCase) {
		if l != nil {
			u.log = l
		}
	}
}

// DecisionUseCase runs council rounds end to end: weighting, consensus,
// conflict analysis, risk review, then publishing and journaling.
type DecisionUseCase struct {
	council   service.Council
	conflicts service.ConflictAnalyzer
	tracker   service.PredictionTracker
	gate      service.RiskGate
	publisher domrepo.DecisionPublisher
	journal   domrepo.DecisionJournal
	metrics   domrepo.Metrics
	log       *applogger.Logger

	weighting         bool
	recordPredictions bool
}

// NewDecisionUseCase creates the decision use case.
func NewDecisionUseCase(
	council service.Council,
	conflicts service.ConflictAnalyzer,
	tracker service.PredictionTracker,
	gate service.RiskGate,
	publisher domrepo.DecisionPublisher,
	journal domrepo.DecisionJournal,
	metrics domrepo.Metrics,
	opts ...DecisionOption,
) *DecisionUseCase {
	u := &DecisionUseCase{
		council:   council,
		conflicts: conflicts,
		tracker:   tracker,
		gate:      gate,
		publisher: publisher,
		journal:   journal,
		metrics:   metrics,
		log:       applogger.Nop(),
		weighting: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Evaluate runs one council round. Errors are returned only for malformed
// input; publish and journal failures are logged and counted.
func (u *DecisionUseCase) Evaluate(ctx context.Context, in EvaluateInput) (*Evaluation, error) {
	start := time.Now()
	instrument := util.NormalizeSymbol(in.Instrument)
	if instrument == "" {
		return nil, fmt.Errorf("%w: instrument is required", models.ErrInvalidOpinion)
	}

	decision, err := u.council.Evaluate(instrument, in.Opinions, u.weights(in.Opinions, in.Weights))
	if err != nil {
		return nil, err
	}
	conflict, err := u.conflicts.Analyze(in.Opinions, in.Regime)
	if err != nil {
		return nil, err
	}
	u.metrics.RecordDecision(decision.Verdict.String(), decision.ConsensusPct)
	u.metrics.RecordConflict(conflict.Severity.String(), conflict.Opportunity.String())

	out := &Evaluation{Decision: decision, Conflict: conflict}

	if in.Trade != nil {
		review, err := u.gate.Review(ctx, models.ReviewInput{
			Signal: models.Signal{
				Instrument:  instrument,
				Action:      decision.Verdict,
				Price:       in.Trade.Price,
				Confidence:  float64(decision.ConsensusPct),
				Sector:      in.Trade.Sector,
				ATR:         in.Trade.ATR,
				WinRate:     in.Trade.WinRate,
				PayoffRatio: in.Trade.PayoffRatio,
				Supports:    in.Trade.Supports,
				Resistances: in.Trade.Resistances,
			},
			Portfolio:    in.Trade.Portfolio,
			ConsensusPct: float64(decision.ConsensusPct),
			Equity:       in.Trade.Equity,
		})
		if err != nil {
			return nil, err
		}
		u.metrics.RecordReview(review.Code.String(), review.Approved)
		out.Review = review
	}

	if u.recordPredictions && in.Regime != nil {
		out.Predictions = u.openPredictions(instrument, in.Opinions, *in.Regime, decision.ProducedAt)
	}

	u.publishCouncil(ctx, decision, conflict)
	if out.Review != nil {
		u.publishRisk(ctx, out.Review)
	}

	u.log.Debug("council round evaluated",
		applogger.String("instrument", instrument),
		applogger.String("verdict", decision.Verdict.String()),
		applogger.Int("consensus_pct", decision.ConsensusPct),
		applogger.String("severity", conflict.Severity.String()),
	)
	u.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return out, nil
}

// Review runs the gate on a standalone signal and records the outcome.
func (u *DecisionUseCase) Review(ctx context.Context, in models.ReviewInput) (*models.RiskDecision, error) {
	start := time.Now()
	in.Signal.Instrument = util.NormalizeSymbol(in.Signal.Instrument)
	d, err := u.gate.Review(ctx, in)
	if err != nil {
		return nil, err
	}
	u.metrics.RecordReview(d.Code.String(), d.Approved)
	u.publishRisk(ctx, d)
	u.metrics.RecordLatency("review", time.Since(start).Seconds())
	return d, nil
}

// AnalyzePortfolio reports portfolio risk and updates the risk gauges.
func (u *DecisionUseCase) AnalyzePortfolio(portfolio []models.PortfolioPosition, equity float64) (*models.PortfolioRiskMetrics, error) {
	m, err := u.gate.AnalyzePortfolioRisk(portfolio, equity)
	if err != nil {
		return nil, err
	}
	u.metrics.RecordPortfolioRisk(m.TotalRiskR, m.Var95Pct)
	return m, nil
}

// History returns journaled council decisions for an instrument, newest first.
func (u *DecisionUseCase) History(ctx context.Context, instrument string, since time.Time, limit int) ([]*models.CouncilDecision, error) {
	out, err := u.journal.RecentCouncil(ctx, util.NormalizeSymbol(instrument), since, limit)
	if err != nil {
		u.metrics.RecordError("journal_read")
		return nil, fmt.Errorf("council history: %w", err)
	}
	return out, nil
}

func (u *DecisionUseCase) weights(opinions []models.ModuleOpinion, overrides map[string]float64) map[string]float64 {
	if !u.weighting && len(overrides) == 0 {
		return nil
	}
	w := make(map[string]float64, len(opinions))
	if u.weighting {
		modules := make([]string, 0, len(opinions))
		for _, o := range opinions {
			modules = append(modules, o.Module)
		}
		for m, v := range u.tracker.Multipliers(modules) {
			w[m] = v
		}
	}
	for m, v := range overrides {
		w[m] = v
	}
	return w
}

func (u *DecisionUseCase) openPredictions(instrument string, opinions []models.ModuleOpinion, regime models.Regime, at time.Time) map[string]string {
	ids := make(map[string]string, len(opinions))
	for _, o := range opinions {
		rec, err := u.tracker.RecordPrediction(o.Module, instrument, o.Vote, o.Confidence, regime, at)
		if err != nil {
			u.metrics.RecordError("record_prediction")
			u.log.Warn("record prediction failed",
				applogger.String("module", o.Module),
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
			continue
		}
		ids[o.Module] = rec.ID
	}
	return ids
}

func (u *DecisionUseCase) publishCouncil(ctx context.Context, d *models.CouncilDecision, c *models.ConflictAnalysis) {
	if err := u.publisher.PublishCouncil(ctx, d); err != nil {
		u.metrics.RecordError("publish")
		u.log.Error("publish council decision failed", applogger.String("instrument", d.Instrument), applogger.Error(err))
	}
	if err := u.journal.AppendCouncil(ctx, d, c); err != nil {
		u.metrics.RecordError("journal")
		u.log.Error("journal council decision failed", applogger.String("instrument", d.Instrument), applogger.Error(err))
	}
}

func (u *DecisionUseCase) publishRisk(ctx context.Context, d *models.RiskDecision) {
	if err := u.publisher.PublishRisk(ctx, d); err != nil {
		u.metrics.RecordError("publish")
		u.log.Error("publish risk decision failed", applogger.String("instrument", d.Instrument), applogger.Error(err))
	}
	if err := u.journal.AppendRisk(ctx, d); err != nil {
		u.metrics.RecordError("journal")
		u.log.Error("journal risk decision failed", applogger.String("instrument", d.Instrument), applogger.Error(err))
	}
}
