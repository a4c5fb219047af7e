package repository

import (
	"context"
	"sync"
	"time"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
)

// MemoryDecisionJournal keeps the latest council decisions per instrument in
// process memory. It backs the history route when ClickHouse is disabled.
// Risk reviews are counted but not retained.
type MemoryDecisionJournal struct {
	mu      sync.RWMutex
	max     int
	council map[string][]*models.CouncilDecision
	reviews int
}

var _ domrepo.DecisionJournal = (*MemoryDecisionJournal)(nil)

// NewMemoryDecisionJournal keeps up to perInstrument decisions per instrument.
func NewMemoryDecisionJournal(perInstrument int) *MemoryDecisionJournal {
	if perInstrument <= 0 {
		perInstrument = 500
	}
	return &MemoryDecisionJournal{max: perInstrument, council: make(map[string][]*models.CouncilDecision)}
}

func (j *MemoryDecisionJournal) Init(context.Context) error { return nil }

func (j *MemoryDecisionJournal) AppendCouncil(_ context.Context, d *models.CouncilDecision, _ *models.ConflictAnalysis) error {
	cp := *d
	j.mu.Lock()
	defer j.mu.Unlock()
	list := append(j.council[d.Instrument], &cp)
	if len(list) > j.max {
		list = append([]*models.CouncilDecision(nil), list[len(list)-j.max:]...)
	}
	j.council[d.Instrument] = list
	return nil
}

func (j *MemoryDecisionJournal) AppendRisk(context.Context, *models.RiskDecision) error {
	j.mu.Lock()
	j.reviews++
	j.mu.Unlock()
	return nil
}

// Reviews is the number of risk reviews appended.
func (j *MemoryDecisionJournal) Reviews() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.reviews
}

// RecentCouncil returns decisions produced at or after since, newest first.
func (j *MemoryDecisionJournal) RecentCouncil(_ context.Context, instrument string, since time.Time, limit int) ([]*models.CouncilDecision, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	list := j.council[instrument]
	out := make([]*models.CouncilDecision, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		if list[i].ProducedAt.Before(since) {
			continue
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (j *MemoryDecisionJournal) Health(context.Context) error { return nil }

func (j *MemoryDecisionJournal) Close() error { return nil }
