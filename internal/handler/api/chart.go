package api

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"TickChart/internal/domain/models"
	"TickChart/internal/service/ratelimit"
	"TickChart/internal/usecase"
	xhttp "TickChart/pkg/http"
	xlogger "TickChart/pkg/logger"
)

const maxResultBody = 8 << 20

// ChartHandler exposes the chart session over HTTP and websocket.
type ChartHandler struct {
	logger  *xlogger.Logger
	session *usecase.ChartSession
	candles *usecase.CandlesUseCase
	limiter *ratelimit.Limiter
	hub     *Hub
}

func NewChartHandler(logger *xlogger.Logger, session *usecase.ChartSession, candles *usecase.CandlesUseCase, limiter *ratelimit.Limiter, hub *Hub) *ChartHandler {
	return &ChartHandler{logger: logger, session: session, candles: candles, limiter: limiter, hub: hub}
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/chart", h.Chart)
	g.POST("/chart/result", h.DeliverResult)
	g.POST("/chart/refresh", h.Refresh)
	g.PUT("/chart/timeframe", h.SetTimeframe)
	g.POST("/chart/select", h.Select)
	g.DELETE("/chart/select", h.ClearSelection)
	g.GET("/chart/legend/:time", h.Legend)
	g.GET("/chart/timeframes", h.Timeframes)
	if h.hub != nil {
		g.GET("/ws", h.hub.Serve)
	}
}

func (h *ChartHandler) Chart(c echo.Context) error {
	req := &models.ChartQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.candles.GetChart(usecase.GetChartParams{Limit: req.Limit})
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, snap)
}

// DeliverResult accepts the raw tool result the host received on startup.
func (h *ChartHandler) DeliverResult(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxResultBody))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("unreadable body").WithError(err))
	}

	// The fallback fetch may outlive a client that hangs up.
	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.session.DeliverInitialResult(ctx, raw); err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, h.session.Snapshot())
}

func (h *ChartHandler) Refresh(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many refresh requests"))
	}

	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// The session's request timeout bounds the fetch. A viewer hanging up must
	// not abort the shared refresh.
	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.session.Refresh(ctx, req.Symbol); err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, h.session.Snapshot())
}

func (h *ChartHandler) SetTimeframe(c echo.Context) error {
	req := &models.TimeframeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.session.SetTimeframe(req.Timeframe); err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, h.session.Snapshot())
}

func (h *ChartHandler) Select(c echo.Context) error {
	req := &models.SelectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := h.session.Select(*req.Time); err != nil {
		return h.sessionError(c, err)
	}
	return xhttp.SuccessResponse(c, h.session.Snapshot())
}

func (h *ChartHandler) ClearSelection(c echo.Context) error {
	h.session.ClearSelection()
	return xhttp.SuccessResponse(c, h.session.Snapshot())
}

// Legend looks up a candle summary without moving the selection.
func (h *ChartHandler) Legend(c echo.Context) error {
	t, err := strconv.ParseInt(c.Param("time"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid time %q", c.Param("time")))
	}
	sum, ok := h.candles.GetLegend(t)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no candle starts at that time"))
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *ChartHandler) Timeframes(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, usecase.Timeframes())
}

func (h *ChartHandler) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrRefreshInFlight):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("ERR_REFRESH_IN_FLIGHT", "a refresh is already in flight"))
	case errors.Is(err, usecase.ErrInvalidTimeframe):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, usecase.ErrSessionClosed):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("chart session closed"))
	default:
		h.logger.Error("chart request failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError(err.Error()).WithError(err))
	}
}
