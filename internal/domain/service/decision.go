package service

import (
	"context"
	"time"

	"Agora/internal/domain/models"
)

// WeightSource supplies per-module voting weight multipliers.
type WeightSource interface {
	CurrentMultiplier(module string) float64
	Multipliers(modules []string) map[string]float64
}

// PredictionTracker records module calls and their ground truth.
type PredictionTracker interface {
	WeightSource
	RecordPrediction(module, instrument string, vote models.Vote, confidence float64, regime models.Regime, ts time.Time) (models.PredictionRecord, error)
	ResolvePrediction(id string, wasCorrect bool) (models.PredictionRecord, error)
	Performance(module string, regime *models.Regime) models.ModulePerformance
	Export() []models.PredictionRecord
	Load(records []models.PredictionRecord) error
}

// Council turns module opinions into a verdict.
type Council interface {
	Evaluate(instrument string, opinions []models.ModuleOpinion, weights map[string]float64) (*models.CouncilDecision, error)
}

// ConflictAnalyzer classifies disagreement between modules.
type ConflictAnalyzer interface {
	Analyze(opinions []models.ModuleOpinion, priorRegime *models.Regime) (*models.ConflictAnalysis, error)
}

// RiskGate sizes and vetoes trades and reports portfolio risk.
type RiskGate interface {
	Review(ctx context.Context, in models.ReviewInput) (*models.RiskDecision, error)
	AnalyzePortfolioRisk(portfolio []models.PortfolioPosition, equity float64) (*models.PortfolioRiskMetrics, error)
	SuggestStopLoss(entry float64, side models.Vote, atr float64, supports, resistances []float64) (*models.StopSuggestion, error)
	CooldownRemaining(instrument string) time.Duration
	Config() models.RiskConfig
	SetConfig(cfg models.RiskConfig) error
	ClearHistory()
	Snapshot() models.GateState
	Restore(state models.GateState) error
}
