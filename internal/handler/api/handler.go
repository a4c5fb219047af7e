package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
	"Agora/internal/domain/service"
	"Agora/internal/usecase"
	xhttp "Agora/pkg/http"
	xlogger "Agora/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Tracker is the performance tracker surface the API reads.
type Tracker interface {
	service.PredictionTracker
	Modules() []string
}

// CompositeScorer blends module scores under a named profile.
type CompositeScorer interface {
	Score(scores map[string]float64, profile string) (*models.CompositeScore, error)
	Profiles() []string
}

// DecisionHandler serves the council, conflict, risk and performance routes.
type DecisionHandler struct {
	logger    *xlogger.Logger
	uc        *usecase.DecisionUseCase
	scorer    CompositeScorer
	conflicts service.ConflictAnalyzer
	tracker   Tracker
	gate      service.RiskGate
	journal   domrepo.DecisionJournal
}

var _ xhttp.Handler = (*DecisionHandler)(nil)

func NewDecisionHandler(
	logger *xlogger.Logger,
	uc *usecase.DecisionUseCase,
	scorer CompositeScorer,
	conflicts service.ConflictAnalyzer,
	tracker Tracker,
	gate service.RiskGate,
	journal domrepo.DecisionJournal,
) *DecisionHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DecisionHandler{
		logger:    logger,
		uc:        uc,
		scorer:    scorer,
		conflicts: conflicts,
		tracker:   tracker,
		gate:      gate,
		journal:   journal,
	}
}

func (h *DecisionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)

	g := e.Group("/api/v1")

	g.POST("/council/evaluate", h.Evaluate)
	g.POST("/council/composite", h.Composite)
	g.GET("/council/profiles", h.Profiles)
	g.GET("/council/history/:instrument", h.History)

	g.POST("/conflict/analyze", h.AnalyzeConflict)

	g.POST("/risk/review", h.Review)
	g.POST("/risk/portfolio", h.Portfolio)
	g.POST("/risk/stop-loss", h.StopLoss)
	g.GET("/risk/config", h.GetRiskConfig)
	g.PUT("/risk/config", h.UpdateRiskConfig)
	g.GET("/risk/cooldown/:instrument", h.Cooldown)
	g.DELETE("/risk/history", h.ClearHistory)

	g.POST("/performance/predictions", h.RecordPrediction)
	g.POST("/performance/predictions/:id/resolve", h.ResolvePrediction)
	g.GET("/performance/modules", h.ListModules)
	g.GET("/performance/modules/:module", h.ModulePerformance)
}

func (h *DecisionHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Readyz also checks the decision journal.
func (h *DecisionHandler) Readyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.journal.Health(ctx); err != nil {
		h.logger.Warn("readiness check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "journal": err.Error()})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ready"})
}

// domainError maps domain sentinel errors to API errors.
func domainError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInsufficientInput):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUnknownRecord):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidOpinion),
		errors.Is(err, models.ErrInvalidSignal),
		errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, models.ErrInvalidEnum):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

func (h *DecisionHandler) fail(c echo.Context, op string, err error) error {
	appErr := domainError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
