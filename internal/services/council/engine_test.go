package council

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"Agora/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

func op(module string, v models.Vote, conf float64, why string) models.ModuleOpinion {
	return models.ModuleOpinion{Module: module, Vote: v, Confidence: conf, Rationale: why}
}

func TestEvaluateVerdicts(t *testing.T) {
	type test struct {
		opinions []models.ModuleOpinion
		weights  map[string]float64
		verdict  models.Vote
		pct      int
	}

	tests := map[string]test{
		"unanimous buy": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteBuy, 90, "cheap"),
				op("orion", models.VoteBuy, 40, "breakout"),
				op("hermes", models.VoteBuy, 70, "bullish chatter"),
			},
			verdict: models.VoteBuy,
			pct:     100,
		},
		"equal buy and sell ties to hold": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteBuy, 80, ""),
				op("orion", models.VoteSell, 80, ""),
			},
			verdict: models.VoteHold,
			pct:     0,
		},
		"score tie broken by raw count": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteBuy, 80, ""),
				op("orion", models.VoteSell, 40, ""),
				op("cronos", models.VoteSell, 40, ""),
			},
			verdict: models.VoteSell,
			pct:     50,
		},
		"weights shift the verdict": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteBuy, 60, ""),
				op("orion", models.VoteSell, 80, ""),
			},
			weights: map[string]float64{"atlas": 2},
			verdict: models.VoteBuy,
			pct:     60,
		},
		"hold majority": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteHold, 50, ""),
				op("orion", models.VoteHold, 50, ""),
				op("hermes", models.VoteBuy, 50, ""),
			},
			verdict: models.VoteHold,
			pct:     67,
		},
		"zero confidence falls back to vote share": {
			opinions: []models.ModuleOpinion{
				op("atlas", models.VoteBuy, 0, ""),
				op("orion", models.VoteBuy, 0, ""),
				op("hermes", models.VoteSell, 0, ""),
			},
			verdict: models.VoteBuy,
			pct:     67,
		},
	}

	e := NewEngine(WithClock(func() time.Time { return fixedNow }))
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := e.Evaluate("AAPL", tt.opinions, tt.weights)
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.pct, d.ConsensusPct)
			assert.Equal(t, uint32(len(tt.opinions)), d.Tally.Total())
			assert.Equal(t, fixedNow, d.ProducedAt)
		})
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	e := NewEngine()

	_, err := e.Evaluate("AAPL", nil, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientInput)

	_, err = e.Evaluate("AAPL", []models.ModuleOpinion{op("atlas", models.VoteBuy, 101, "")}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)

	_, err = e.Evaluate("AAPL", []models.ModuleOpinion{{Module: "atlas", Confidence: 50}}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)

	_, err = e.Evaluate("AAPL", []models.ModuleOpinion{
		op("atlas", models.VoteBuy, 50, ""),
		op("atlas", models.VoteSell, 50, ""),
	}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)

	_, err = e.Evaluate("AAPL", []models.ModuleOpinion{op("atlas", models.VoteBuy, 50, "")}, map[string]float64{"atlas": -1})
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	opinions := []models.ModuleOpinion{
		op("atlas", models.VoteBuy, 72, "margin expansion"),
		op("orion", models.VoteSell, 64, "lower highs"),
		op("hermes", models.VoteBuy, 72, "retail inflows"),
		op("aether", models.VoteHold, 30, "mixed rates picture"),
	}
	weights := map[string]float64{"orion": 1.3, "hermes": 0.7}

	first, err := NewEngine().Evaluate("MSFT", opinions, weights)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := NewEngine().Evaluate("MSFT", opinions, weights)
	require.NoError(t, err)

	first.ProducedAt, second.ProducedAt = time.Time{}, time.Time{}
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestNarrativeOrdersByWeightedConfidence(t *testing.T) {
	d, err := NewEngine().Evaluate("TSLA", []models.ModuleOpinion{
		op("atlas", models.VoteSell, 50, "rich multiple"),
		op("orion", models.VoteBuy, 90, "momentum"),
		op("hermes", models.VoteBuy, 60, ""),
	}, map[string]float64{"atlas": 1.5})
	require.NoError(t, err)

	orion := strings.Index(d.Narrative, "orion")
	atlas := strings.Index(d.Narrative, "atlas")
	hermes := strings.Index(d.Narrative, "hermes")
	assert.True(t, orion < atlas && atlas < hermes, d.Narrative)
	assert.Contains(t, d.Narrative, "no rationale given")
	assert.True(t, strings.HasPrefix(d.Narrative, "BUY with"))
}
