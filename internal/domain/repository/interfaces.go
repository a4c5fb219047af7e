package repository

import (
	"context"
	"time"

	"Agora/internal/domain/models"
)

// DecisionPublisher streams finished decisions to downstream consumers.
type DecisionPublisher interface {
	PublishCouncil(ctx context.Context, d *models.CouncilDecision) error
	PublishRisk(ctx context.Context, d *models.RiskDecision) error
	Close() error
}

// DecisionJournal keeps an append-only audit trail of decisions.
type DecisionJournal interface {
	Init(ctx context.Context) error
	AppendCouncil(ctx context.Context, d *models.CouncilDecision, c *models.ConflictAnalysis) error
	AppendRisk(ctx context.Context, d *models.RiskDecision) error
	RecentCouncil(ctx context.Context, instrument string, since time.Time, limit int) ([]*models.CouncilDecision, error)
	Health(ctx context.Context) error
	Close() error
}

// Snapshot is the persisted state of the decision subsystem.
type Snapshot struct {
	Predictions []models.PredictionRecord `json:"predictions"`
	Gate        *models.GateState         `json:"gate,omitempty"`
	SavedAt     time.Time                 `json:"saved_at"`
}

// StateStore checkpoints and restores subsystem state across restarts.
type StateStore interface {
	Save(ctx context.Context, s *Snapshot) error
	// Load returns (nil, nil) when nothing has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
	Close() error
}

type Metrics interface {
	RecordDecision(verdict string, consensusPct int)
	RecordConflict(severity, opportunity string)
	RecordReview(code string, approved bool)
	RecordPortfolioRisk(totalR, var95Pct float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
