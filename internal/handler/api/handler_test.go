package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Agora/internal/domain/models"
	"Agora/internal/repository"
	"Agora/internal/services/conflict"
	"Agora/internal/services/council"
	"Agora/internal/services/performance"
	"Agora/internal/services/risk"
	"Agora/internal/usecase"
	"Agora/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	tracker := performance.New(performance.WithClock(clock))
	gate, err := risk.New(risk.DefaultConfig(), risk.WithClock(clock))
	require.NoError(t, err)
	detector := conflict.New(nil)
	journal := repository.NewMemoryDecisionJournal(10)
	uc := usecase.NewDecisionUseCase(
		council.NewEngine(council.WithClock(clock)),
		detector, tracker, gate,
		repository.NoopPublisher{}, journal,
		metrics.NewWithRegistry(prometheus.NewRegistry()),
	)
	h := NewDecisionHandler(nil, uc, council.NewScorer(nil), detector, tracker, gate, journal)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

const buyRound = `{
	"instrument": "aapl",
	"opinions": [
		{"module": "atlas", "vote": "BUY", "confidence": 80, "rationale": "cheap"},
		{"module": "orion", "vote": "BUY", "confidence": 60, "rationale": "breakout"},
		{"module": "hermes", "vote": "BUY", "confidence": 70, "rationale": "flows"}
	],
	"trade": {"price": 100, "atr": 2, "equity": 100000}
}`

func TestEvaluateRoute(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/council/evaluate", buyRound)
	require.Equal(t, http.StatusOK, rec.Code)

	var ev usecase.Evaluation
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, "AAPL", ev.Decision.Instrument)
	assert.Equal(t, models.VoteBuy, ev.Decision.Verdict)
	require.NotNil(t, ev.Review)
	assert.True(t, ev.Review.Approved)
	assert.Equal(t, 100, ev.Decision.ConsensusPct)
	assert.Equal(t, int64(500), ev.Review.AdjustedQuantity)

	rec, env = do(t, e, http.MethodGet, "/api/v1/council/history/AAPL?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.CouncilDecision `json:"rows"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)

	// the decision was produced at fixedNow, well outside a one hour lookback
	_, env = do(t, e, http.MethodGet, "/api/v1/council/history/AAPL?window=1h", "")
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 0, list.Total)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/council/history/AAPL?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateRouteErrors(t *testing.T) {
	e := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/v1/council/evaluate", `{"instrument":"AAPL","opinions":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/council/evaluate", `{"instrument":"AAPL","opinions":[{"module":"atlas","vote":"MAYBE","confidence":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/council/evaluate", `{"instrument":"AAPL","opinions":[{"module":"atlas","vote":"BUY","confidence":101}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/council/evaluate", `{"opinions":[{"module":"atlas","vote":"BUY","confidence":50}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompositeRoute(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/council/composite", `{"scores":{"atlas":80,"orion":70},"as_opinions":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res CompositeResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "balanced", res.Composite.Profile)
	assert.Equal(t, 75.0, res.Composite.Score)
	assert.Equal(t, models.SignalStrongBuy, res.Composite.Signal)
	require.Len(t, res.Opinions, 2)
	assert.Equal(t, "atlas", res.Opinions[0].Module)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/council/composite", `{"scores":{"atlas":80},"profile":"astrology"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/council/composite", `{"scores":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictRouteNoData(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, http.MethodPost, "/api/v1/conflict/analyze", `{"opinions":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.ConflictAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.NoData)
	assert.Equal(t, models.SeverityNone, res.Severity)
}

func TestRiskRoutes(t *testing.T) {
	e := newTestServer(t)

	review := `{"signal":{"instrument":"NVDA","action":"BUY","price":100,"atr":2},"consensus_pct":80,"equity":100000}`
	rec, env := do(t, e, http.MethodPost, "/api/v1/risk/review", review)
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.RiskDecision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.True(t, d.Approved)
	assert.Equal(t, int64(500), d.AdjustedQuantity)

	rec, env = do(t, e, http.MethodPost, "/api/v1/risk/review", review)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.False(t, d.Approved)
	assert.Equal(t, models.RejectCooldown, d.Code)

	rec, env = do(t, e, http.MethodGet, "/api/v1/risk/cooldown/nvda", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cd CooldownResponse
	require.NoError(t, json.Unmarshal(env.Data, &cd))
	assert.True(t, cd.Active)
	assert.Equal(t, "NVDA", cd.Instrument)
	assert.Equal(t, (24 * time.Hour).Seconds(), cd.RemainingSeconds)

	rec, _ = do(t, e, http.MethodDelete, "/api/v1/risk/history", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, env = do(t, e, http.MethodGet, "/api/v1/risk/cooldown/NVDA", "")
	require.NoError(t, json.Unmarshal(env.Data, &cd))
	assert.False(t, cd.Active)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/risk/review", `{"signal":{"instrument":"NVDA","action":"BUY","price":0},"equity":100000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewRequiresConsensus(t *testing.T) {
	e := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/v1/risk/review", `{"signal":{"instrument":"AMD","action":"BUY","price":100,"atr":2},"equity":100000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, e, http.MethodGet, "/api/v1/risk/cooldown/AMD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cd CooldownResponse
	require.NoError(t, json.Unmarshal(env.Data, &cd))
	assert.False(t, cd.Active)

	rec, env = do(t, e, http.MethodPost, "/api/v1/risk/review", `{"signal":{"instrument":"AMD","action":"BUY","price":100,"atr":2},"consensus_pct":0,"equity":100000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.RiskDecision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.True(t, d.Approved)
	assert.Equal(t, int64(250), d.AdjustedQuantity)
}

func TestPortfolioAndStopRoutes(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/risk/portfolio", `{"portfolio":[{"symbol":"AAPL","entry_price":100,"quantity":100,"sector":"tech","is_open":true}],"equity":100000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.PortfolioRiskMetrics
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 1, m.OpenPositions)

	rec, env = do(t, e, http.MethodPost, "/api/v1/risk/stop-loss", `{"entry":100,"side":"BUY","atr":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.StopSuggestion
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, 96.0, s.StopLoss)
	assert.Equal(t, 108.0, s.TakeProfit)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/risk/stop-loss", `{"entry":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskConfigRoutes(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPut, "/api/v1/risk/config", `{"sizing_method":"KELLY","cooldown_hours":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg models.RiskConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, models.SizingKelly, cfg.SizingMethod)
	assert.Equal(t, 0.0, cfg.CooldownHours)
	assert.Equal(t, 0.02, cfg.MaxRiskPerTradePct)

	rec, _ = do(t, e, http.MethodPut, "/api/v1/risk/config", `{"max_sector_exposure_pct":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, env = do(t, e, http.MethodGet, "/api/v1/risk/config", "")
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, 0.25, cfg.MaxSectorExposurePct)
}

func TestPerformanceRoutes(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/v1/performance/predictions", `{"module":"atlas","instrument":"aapl","vote":"BUY","confidence":70,"regime":"BULL"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var r models.PredictionRecord
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, "AAPL", r.Instrument)
	assert.Equal(t, models.OutcomeUnresolved, r.Outcome)

	rec, env = do(t, e, http.MethodPost, "/api/v1/performance/predictions/"+r.ID+"/resolve", `{"was_correct":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, models.OutcomeIncorrect, r.Outcome)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/performance/predictions/nope/resolve", `{"was_correct":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/performance/predictions/"+r.ID+"/resolve", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/v1/performance/modules/atlas?regime=bull", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.ModulePerformance
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 1, p.TotalPredictions)
	assert.Equal(t, 1.0, p.WeightMultiplier)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/performance/modules/atlas?regime=moon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/v1/performance/modules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"module":"atlas"`)
}

func TestHealthRoutes(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
