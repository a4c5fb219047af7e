package performance

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"Agora/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seed records n predictions for module, the first `correct` of which resolve correct.
func seed(t *testing.T, tr *Tracker, module string, regime models.Regime, start time.Time, n, correct int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec, err := tr.RecordPrediction(module, "AAPL", models.VoteBuy, 70, regime, start.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		_, err = tr.ResolvePrediction(rec.ID, i < correct)
		require.NoError(t, err)
	}
}

func TestMultiplier(t *testing.T) {
	type test struct {
		n, correct int
		want       float64
		form       models.Form
	}

	tests := map[string]test{
		"no history":         {0, 0, 1.0, models.FormWarm},
		"four wrong":         {4, 0, 1.0, models.FormWarm},
		"all correct":        {10, 10, 1.5, models.FormHot},
		"all wrong":          {10, 0, 0.5, models.FormCold},
		"sixty percent":      {10, 6, 1.1, models.FormWarm},
		"exactly hot":        {20, 13, 1.15, models.FormHot},
		"exactly cold":       {10, 4, 0.9, models.FormCold},
		"five is sufficient": {5, 5, 1.5, models.FormHot},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tr := New()
			seed(t, tr, "orion", models.RegimeBull, base, tt.n, tt.correct)
			p := tr.Performance("orion", nil)
			assert.InDelta(t, tt.want, p.WeightMultiplier, 1e-9)
			assert.InDelta(t, tt.want, tr.CurrentMultiplier("orion"), 1e-9)
			assert.Equal(t, tt.form, p.Form)
		})
	}
}

func TestMultiplierUsesMostRecentWindow(t *testing.T) {
	tr := New()
	seed(t, tr, "atlas", models.RegimeBear, base, 10, 0)
	seed(t, tr, "atlas", models.RegimeBear, base.Add(30*24*time.Hour), 30, 30)

	p := tr.Performance("atlas", nil)
	assert.Equal(t, 40, p.TotalPredictions)
	assert.Equal(t, 30, p.CorrectPredictions)
	assert.Equal(t, models.RollingWindow{Correct: 30, Total: 30}, p.RollingWindow)
	assert.Equal(t, 1.5, p.WeightMultiplier)
}

func TestMultiplierIgnoresUnresolved(t *testing.T) {
	tr := New()
	seed(t, tr, "hermes", models.RegimeSideways, base, 4, 4)
	for i := 0; i < 10; i++ {
		_, err := tr.RecordPrediction("hermes", "AAPL", models.VoteSell, 55, models.RegimeSideways, base.Add(time.Duration(100+i)*time.Hour))
		require.NoError(t, err)
	}

	p := tr.Performance("hermes", nil)
	assert.Equal(t, 10, p.Unresolved)
	assert.Equal(t, 1.0, p.WeightMultiplier)
}

func TestMultiplierAlwaysClamped(t *testing.T) {
	for n := 0; n <= 35; n += 5 {
		for correct := 0; correct <= n; correct++ {
			tr := New()
			seed(t, tr, "cronos", models.RegimeVolatile, base, n, correct)
			m := tr.CurrentMultiplier("cronos")
			assert.GreaterOrEqual(t, m, MinMultiplier)
			assert.LessOrEqual(t, m, MaxMultiplier)
		}
	}
}

func TestRegimeMultiplier(t *testing.T) {
	tr := New()
	seed(t, tr, "aether", models.RegimeBull, base, 10, 10)
	seed(t, tr, "aether", models.RegimeBear, base.Add(time.Hour*1000), 10, 0)

	assert.Equal(t, 1.5, tr.RegimeMultiplier("aether", models.RegimeBull))
	assert.Equal(t, 0.5, tr.RegimeMultiplier("aether", models.RegimeBear))
	assert.Equal(t, 1.0, tr.RegimeMultiplier("aether", models.RegimeVolatile))
	assert.Equal(t, 1.0, tr.CurrentMultiplier("aether"))
}

func TestResolveUnknownRecord(t *testing.T) {
	tr := New()
	_, err := tr.ResolvePrediction("missing", true)
	require.ErrorIs(t, err, models.ErrUnknownRecord)
}

func TestRecordPredictionValidates(t *testing.T) {
	tr := New()
	_, err := tr.RecordPrediction("orion", "AAPL", models.VoteBuy, 140, models.RegimeBull, base)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
	_, err = tr.RecordPrediction("orion", "AAPL", models.VoteBuy, 40, 0, base)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
	_, err = tr.RecordPrediction("", "AAPL", models.VoteBuy, 40, models.RegimeBull, base)
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
}

func TestExportLoadRestoresMultipliers(t *testing.T) {
	tr := New()
	seed(t, tr, "orion", models.RegimeBull, base, 12, 12)
	seed(t, tr, "atlas", models.RegimeBull, base, 12, 0)
	pending, err := tr.RecordPrediction("atlas", "MSFT", models.VoteHold, 20, models.RegimeBull, base.Add(time.Hour*500))
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Load(tr.Export()))

	assert.Equal(t, tr.Multipliers([]string{"orion", "atlas"}), restored.Multipliers([]string{"orion", "atlas"}))
	_, err = restored.ResolvePrediction(pending.ID, true)
	assert.NoError(t, err)

	restored.Reset()
	assert.Empty(t, restored.Export())
}

func TestLoadRejectsDuplicates(t *testing.T) {
	rec := models.PredictionRecord{ID: "a", Module: "orion", Vote: models.VoteBuy, Confidence: 50, Regime: models.RegimeBull}
	err := New().Load([]models.PredictionRecord{rec, rec})
	assert.ErrorIs(t, err, models.ErrInvalidOpinion)
}

func TestConcurrentRecordAndResolve(t *testing.T) {
	n := 0
	var mu sync.Mutex
	tr := New(WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("rec-%d", n)
	}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			module := fmt.Sprintf("m%d", g%4)
			for i := 0; i < 50; i++ {
				rec, err := tr.RecordPrediction(module, "BTC", models.VoteBuy, 60, models.RegimeVolatile, base.Add(time.Duration(i)*time.Minute))
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := tr.ResolvePrediction(rec.ID, i%2 == 0); err != nil {
					t.Error(err)
					return
				}
				_ = tr.CurrentMultiplier(module)
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, tr.Export(), 400)
	for _, m := range tr.Modules() {
		assert.Equal(t, 100, tr.Performance(m, nil).TotalPredictions)
		// newest 30 resolved span minutes 35..49 from two writers; 7 even minutes each.
		assert.InDelta(t, 0.5+14.0/30, tr.CurrentMultiplier(m), 1e-9)
	}
}
