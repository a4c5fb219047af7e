package api

import (
	"time"

	"Agora/internal/domain/models"
	xhttp "Agora/pkg/http"
	"Agora/pkg/util"

	"github.com/labstack/echo/v4"
)

func (h *DecisionHandler) RecordPrediction(c echo.Context) error {
	req := &RecordPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	rec, err := h.tracker.RecordPrediction(req.Module, util.NormalizeSymbol(req.Instrument), req.Vote, req.Confidence, req.Regime, ts)
	if err != nil {
		return h.fail(c, "record prediction", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *DecisionHandler) ResolvePrediction(c echo.Context) error {
	req := &ResolvePredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.tracker.ResolvePrediction(c.Param("id"), *req.WasCorrect)
	if err != nil {
		return h.fail(c, "resolve prediction", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

// ModulePerformance reports a module's record, optionally for ?regime=BULL.
func (h *DecisionHandler) ModulePerformance(c echo.Context) error {
	module := c.Param("module")
	var regime *models.Regime
	if q := c.QueryParam("regime"); q != "" {
		r, err := models.ParseRegime(q)
		if err != nil {
			return h.fail(c, "module performance", err)
		}
		regime = &r
	}
	return xhttp.SuccessResponse(c, h.tracker.Performance(module, regime))
}

func (h *DecisionHandler) ListModules(c echo.Context) error {
	modules := h.tracker.Modules()
	out := make([]models.ModulePerformance, 0, len(modules))
	for _, m := range modules {
		out = append(out, h.tracker.Performance(m, nil))
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}
