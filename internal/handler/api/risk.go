package api

import (
	"time"

	xhttp "Agora/pkg/http"
	xlogger "Agora/pkg/logger"
	"Agora/pkg/util"

	"github.com/labstack/echo/v4"
)

// Review returns 200 for rejections too; approved tells them apart.
func (h *DecisionHandler) Review(c echo.Context) error {
	req := &ReviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Review(c.Request().Context(), req.Input())
	if err != nil {
		return h.fail(c, "risk review", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionHandler) Portfolio(c echo.Context) error {
	req := &PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.AnalyzePortfolio(req.Portfolio, req.Equity)
	if err != nil {
		return h.fail(c, "portfolio risk", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionHandler) StopLoss(c echo.Context) error {
	req := &StopLossRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.gate.SuggestStopLoss(req.Entry, req.Side, req.ATR, req.Supports, req.Resistances)
	if err != nil {
		return h.fail(c, "stop loss", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionHandler) GetRiskConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.gate.Config())
}

func (h *DecisionHandler) UpdateRiskConfig(c echo.Context) error {
	req := &RiskConfigPatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	next := req.Apply(h.gate.Config())
	if err := h.gate.SetConfig(next); err != nil {
		return h.fail(c, "risk config", err)
	}
	h.logger.Info("risk config updated",
		xlogger.String("sizing_method", next.SizingMethod.String()),
		xlogger.String("stop_method", next.StopMethod.String()),
		xlogger.Float64("max_risk_per_trade_pct", next.MaxRiskPerTradePct),
		xlogger.Float64("max_portfolio_risk_r", next.MaxPortfolioRiskR),
	)
	return xhttp.SuccessResponse(c, h.gate.Config())
}

func (h *DecisionHandler) Cooldown(c echo.Context) error {
	instrument := util.NormalizeSymbol(c.Param("instrument"))
	rem := h.gate.CooldownRemaining(instrument)
	return xhttp.SuccessResponse(c, CooldownResponse{
		Instrument:       instrument,
		Active:           rem > 0,
		RemainingSeconds: rem.Seconds(),
		Remaining:        rem.Round(time.Second).String(),
	})
}

func (h *DecisionHandler) ClearHistory(c echo.Context) error {
	h.gate.ClearHistory()
	h.logger.Info("risk gate history cleared")
	return xhttp.NoContentResponse(c)
}
