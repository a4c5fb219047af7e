package conflict

import (
	"testing"

	"Agora/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(module string, v models.Vote, conf float64) models.ModuleOpinion {
	return models.ModuleOpinion{Module: module, Vote: v, Confidence: conf}
}

func regime(r models.Regime) *models.Regime { return &r }

func TestAnalyzeEmptyIsNoData(t *testing.T) {
	a, err := New(nil).Analyze(nil, nil)
	require.NoError(t, err)
	assert.True(t, a.NoData)
	assert.Equal(t, models.SeverityNone, a.Severity)
	assert.Equal(t, models.ConflictNone, a.ConflictType)
	assert.Equal(t, models.OpportunityNone, a.Opportunity)
	assert.NotEmpty(t, a.ActionHint)
}

func TestAnalyzeRejectsMalformed(t *testing.T) {
	_, err := New(nil).Analyze([]models.ModuleOpinion{op("atlas", models.VoteBuy, -3)}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
}

func TestSeverityFromVariance(t *testing.T) {
	type test struct {
		confidences []float64
		score       int
		severity    models.Severity
	}

	tests := map[string]test{
		"identical":   {[]float64{70, 70, 70}, 0, models.SeverityNone},
		"low":         {[]float64{60, 70}, 25, models.SeverityLow},
		"medium":      {[]float64{57, 70}, 42, models.SeverityMedium},
		"high":        {[]float64{55, 70}, 56, models.SeverityHigh},
		"critical":    {[]float64{50, 70}, 100, models.SeverityCritical},
		"capped":      {[]float64{0, 100}, 100, models.SeverityCritical},
		"single vote": {[]float64{90}, 0, models.SeverityNone},
	}

	modules := []string{"atlas", "orion", "aether"}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ops := make([]models.ModuleOpinion, len(tt.confidences))
			for i, c := range tt.confidences {
				ops[i] = op(modules[i], models.VoteHold, c)
			}
			a, err := New(nil).Analyze(ops, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.score, a.VarianceScore)
			assert.Equal(t, tt.severity, a.Severity)
		})
	}
}

func TestSeverityIsMonotonicInSpread(t *testing.T) {
	d := New(nil)
	prev := models.SeverityNone
	for spread := 0.0; spread <= 50; spread += 0.5 {
		a, err := d.Analyze([]models.ModuleOpinion{
			op("atlas", models.VoteBuy, 50+spread),
			op("orion", models.VoteSell, 50-spread),
			op("hermes", models.VoteHold, 50),
		}, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.Severity, prev, "spread %v", spread)
		prev = a.Severity
	}
	assert.Equal(t, models.SeverityCritical, prev)
}

func TestSeverityCutPoints(t *testing.T) {
	th := DefaultThresholds
	assert.Equal(t, models.SeverityNone, th.Severity(24))
	assert.Equal(t, models.SeverityLow, th.Severity(25))
	assert.Equal(t, models.SeverityMedium, th.Severity(54))
	assert.Equal(t, models.SeverityHigh, th.Severity(55))
	assert.Equal(t, models.SeverityCritical, th.Severity(70))
	assert.False(t, Thresholds{Low: 40, Medium: 25, High: 55, Critical: 70}.Valid())
	assert.True(t, th.Valid())
}

func TestConflictAndOpportunityRules(t *testing.T) {
	type test struct {
		opinions    []models.ModuleOpinion
		regime      *models.Regime
		conflict    models.ConflictType
		opportunity models.OpportunityType
		involved    []string
	}

	tests := map[string]test{
		"fundamental vs technical": {
			opinions:    []models.ModuleOpinion{op("atlas", models.VoteBuy, 70), op("orion", models.VoteSell, 70)},
			conflict:    models.ConflictFundamentalVsTechnical,
			opportunity: models.OpportunityBottomFishing,
			involved:    []string{"atlas", "orion"},
		},
		"sentiment against the net vote": {
			opinions:    []models.ModuleOpinion{op("hermes", models.VoteSell, 70), op("atlas", models.VoteBuy, 70), op("orion", models.VoteBuy, 70)},
			conflict:    models.ConflictSentimentVsNetVote,
			opportunity: models.OpportunityPanicSell,
			involved:    []string{"atlas", "hermes", "orion"},
		},
		"panic sell outranks bottom fishing": {
			opinions:    []models.ModuleOpinion{op("hermes", models.VoteSell, 70), op("orion", models.VoteSell, 70), op("atlas", models.VoteBuy, 70)},
			conflict:    models.ConflictFundamentalVsTechnical,
			opportunity: models.OpportunityPanicSell,
			involved:    []string{"atlas", "hermes", "orion"},
		},
		"macro against the majority": {
			opinions: []models.ModuleOpinion{
				op("aether", models.VoteSell, 70), op("atlas", models.VoteBuy, 70),
				op("orion", models.VoteBuy, 70), op("hermes", models.VoteBuy, 70),
			},
			conflict:    models.ConflictMacroVsMajority,
			opportunity: models.OpportunityNone,
			involved:    []string{"aether", "atlas", "hermes", "orion"},
		},
		"timing against majority and regime": {
			opinions:    []models.ModuleOpinion{op("cronos", models.VoteSell, 70), op("atlas", models.VoteBuy, 70), op("orion", models.VoteBuy, 70)},
			regime:      regime(models.RegimeBull),
			conflict:    models.ConflictTimingVsMajority,
			opportunity: models.OpportunityTrendReversal,
			involved:    []string{"atlas", "cronos", "orion"},
		},
		"sector against majority with top exhaustion": {
			opinions: []models.ModuleOpinion{
				op("athena", models.VoteSell, 70), op("atlas", models.VoteHold, 70),
				op("orion", models.VoteBuy, 70), op("hermes", models.VoteBuy, 70),
			},
			conflict:    models.ConflictSectorVsMajority,
			opportunity: models.OpportunityTopExhaustion,
			involved:    []string{"athena", "atlas", "hermes", "orion"},
		},
		"bubble warning outranks top exhaustion": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteHold, 70), op("orion", models.VoteBuy, 70), op("hermes", models.VoteBuy, 70),
				op("cronos", models.VoteBuy, 70), op("athena", models.VoteBuy, 70),
			},
			conflict:    models.ConflictNone,
			opportunity: models.OpportunityBubbleWarning,
			involved:    []string{"atlas", "athena", "cronos", "hermes", "orion"},
		},
		"agreement": {
			opinions:    []models.ModuleOpinion{op("atlas", models.VoteBuy, 70), op("orion", models.VoteBuy, 72)},
			regime:      regime(models.RegimeBull),
			conflict:    models.ConflictNone,
			opportunity: models.OpportunityNone,
			involved:    []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := New(models.DefaultModuleRegistry()).Analyze(tt.opinions, tt.regime)
			require.NoError(t, err)
			assert.Equal(t, tt.conflict, a.ConflictType)
			assert.Equal(t, tt.opportunity, a.Opportunity)
			got := make([]string, 0, len(a.InvolvedModules))
			for _, m := range a.InvolvedModules {
				got = append(got, m.Module)
			}
			assert.Equal(t, tt.involved, got)
			assert.Equal(t, ActionHint(a.Severity, a.Opportunity), a.ActionHint)
		})
	}
}

func TestCategoryNamedModules(t *testing.T) {
	a, err := New(models.ModuleRegistry{}).Analyze([]models.ModuleOpinion{
		op("fundamental", models.VoteBuy, 80),
		op("technical", models.VoteSell, 60),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConflictFundamentalVsTechnical, a.ConflictType)
}

func TestActionHintTable(t *testing.T) {
	for _, s := range models.Severities {
		for _, o := range models.Opportunities {
			assert.NotEmpty(t, ActionHint(s, o), "%s/%s", s, o)
		}
	}
	assert.Equal(t, hintTable[hintKey{models.SeverityCritical, models.OpportunityPanicSell}],
		ActionHint(models.SeverityCritical, models.OpportunityPanicSell))
	assert.Equal(t, severityHints[models.SeverityLow], ActionHint(models.SeverityLow, models.OpportunityNone))
}

func TestSplitVoteAtHighCutPointIsHigh(t *testing.T) {
	// 85 vs 70 Buy/Sell: variance 56.25, score 56
	a, err := New(nil).Analyze([]models.ModuleOpinion{
		op("atlas", models.VoteBuy, 85),
		op("orion", models.VoteSell, 70),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 56, a.VarianceScore)
	assert.Equal(t, models.SeverityHigh, a.Severity)
}
