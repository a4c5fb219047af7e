package api

import (
	"sort"
	"time"

	"Agora/internal/services/council"
	"Agora/internal/usecase"
	xhttp "Agora/pkg/http"

	"github.com/labstack/echo/v4"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (h *DecisionHandler) Evaluate(c echo.Context) error {
	req := &usecase.EvaluateInput{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Evaluate(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "council evaluate", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionHandler) Composite(c echo.Context) error {
	req := &CompositeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	score, err := h.scorer.Score(req.Scores, req.Profile)
	if err != nil {
		return h.fail(c, "composite score", err)
	}
	res := CompositeResponse{Composite: score}
	if req.AsOpinions {
		for _, m := range sortedKeys(req.Scores) {
			res.Opinions = append(res.Opinions, council.OpinionFromScore(m, req.Scores[m], ""))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionHandler) Profiles(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scorer.Profiles())
}

// History lists journaled decisions: ?limit=50&since=RFC3339.
func (h *DecisionHandler) History(c echo.Context) error {
	instrument := c.Param("instrument")
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("limit must be within 1..%d", maxHistoryLimit).WithParam("limit", limit))
	}
	// since wins over window; window is a lookback such as 24h
	since := xhttp.ParseTimeDefault(c.QueryParam("since"), time.Time{})
	if window := xhttp.ParseDurationDefault(c.QueryParam("window"), 0); since.IsZero() && window > 0 {
		since = time.Now().Add(-window)
	}

	rows, err := h.uc.History(c.Request().Context(), instrument, since, limit)
	if err != nil {
		return h.fail(c, "council history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DecisionHandler) AnalyzeConflict(c echo.Context) error {
	req := &ConflictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.conflicts.Analyze(req.Opinions, req.PriorRegime)
	if err != nil {
		return h.fail(c, "conflict analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
