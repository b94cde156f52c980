package api

import (
	"errors"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/extension"
	"AlphaPipe/internal/service/metrics"
	"AlphaPipe/internal/service/ratelimit"
	"AlphaPipe/internal/usecase"
	"AlphaPipe/pkg/cache"
	xhttp "AlphaPipe/pkg/http"
	xlogger "AlphaPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InsightsHandler exposes the run's insight history, runtime statistics,
// and chart series over HTTP.
type InsightsHandler struct {
	logger   *xlogger.Logger
	store    domrepo.PersistenceSink
	stats    *extension.Statistics
	chart    *extension.Charting
	pipeline usecase.PipelineController
	cache    cache.Service
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
}

func NewInsightsHandler(
	logger *xlogger.Logger,
	store domrepo.PersistenceSink,
	stats *extension.Statistics,
	chart *extension.Charting,
	pipeline usecase.PipelineController,
) *InsightsHandler {
	metrics.Register()
	return &InsightsHandler{
		logger:   logger.With("api"),
		store:    store,
		stats:    stats,
		chart:    chart,
		pipeline: pipeline,
		cacheTTL: 15 * time.Second,
		rl:       ratelimit.New(),
	}
}

// SetCache injects a response cache for the history endpoint.
func (h *InsightsHandler) SetCache(c cache.Service, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

func (h *InsightsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/insights", h.Insights)
	g.GET("/stats", h.Stats)
	g.GET("/chart", h.Chart)
}

func (h *InsightsHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":   "ok",
		"pipeline": h.pipeline.State().String(),
	})
}

func (h *InsightsHandler) Insights(c echo.Context) error {
	start := time.Now()
	endpoint := "insights"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.InsightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":insights", 10, 5) {
		h.logger.Warn("insights rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", 429))
	}

	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Time{})

	cacheKey := fmt.Sprintf("insights:%s:%s:%s:%d", req.Symbol, req.From, req.To, req.Limit)
	if h.cache != nil {
		var cached []models.ScoredInsight
		err := h.cache.Get(c.Request().Context(), cacheKey, &cached)
		if err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("insights cache_get_error", xlogger.Error(err))
		}
	}

	rows, err := h.store.Query(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("insights query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request().Context(), cacheKey, rows, h.cacheTTL); err != nil {
			h.logger.Warn("insights cache_set_error", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *InsightsHandler) Stats(c echo.Context) error {
	start := time.Now()
	endpoint := "stats"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	return xhttp.SuccessResponse(c, h.stats.Snapshot())
}

func (h *InsightsHandler) Chart(c echo.Context) error {
	start := time.Now()
	endpoint := "chart"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	samples := h.chart.Samples(req.Limit)
	return xhttp.ListResponse(c, samples, int64(len(samples)))
}
