package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/escalation"
	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/model"
	"github.com/screenops/alertcore/internal/ratelimit"
	"go.uber.org/zap"
)

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "alertcore API server is running",
	})
}

// RateLimitView - limiter 설정 응답
type RateLimitView struct {
	Enabled      bool  `json:"enabled"`
	MaxPerWindow int   `json:"max_per_window"`
	WindowMs     int64 `json:"window_ms"`
	Buckets      int   `json:"buckets"`
}

// DiagnosticsData - recorder snapshot + limiter + 규칙
type DiagnosticsData struct {
	Metrics         metrics.Snapshot     `json:"metrics"`
	RateLimit       RateLimitView        `json:"rate_limit"`
	EscalationRules escalation.RuleTable `json:"escalation_rules"`
}

type DiagnosticsResponse struct {
	Status string          `json:"status"`
	Data   DiagnosticsData `json:"data"`
}

// UpdateDiagnosticsConfigRequest - 변경할 필드만 전달
type UpdateDiagnosticsConfigRequest struct {
	Enabled         *bool  `json:"enabled"`
	MaxPerWindow    *int   `json:"max_per_window"`
	WindowMs        *int64 `json:"window_ms"`
	SlowOperationMs *int64 `json:"slow_operation_ms"`
}

type DiagnosticsHandler struct {
	recorder *metrics.Recorder
	limiter  *ratelimit.Limiter
	rules    *escalation.Table
	logger   *zap.Logger
}

func NewDiagnosticsHandler(recorder *metrics.Recorder, limiter *ratelimit.Limiter, rules *escalation.Table, logger *zap.Logger) *DiagnosticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagnosticsHandler{
		recorder: recorder,
		limiter:  limiter,
		rules:    rules,
		logger:   logger,
	}
}

// GetMetrics godoc
// @Summary Alert core diagnostics
// @Description Returns counters, latency statistics, rate limiter settings and active escalation rules.
// @Tags diagnostics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handler.DiagnosticsResponse
// @Router /api/v1/diagnostics/metrics [get]
func (h *DiagnosticsHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, DiagnosticsResponse{
		Status: "success",
		Data:   h.snapshot(),
	})
}

// UpdateConfig godoc
// @Summary Change rate limiter and slow operation settings at runtime
// @Tags diagnostics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body handler.UpdateDiagnosticsConfigRequest true "Fields to change"
// @Success 200 {object} handler.DiagnosticsResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/diagnostics/config [put]
func (h *DiagnosticsHandler) UpdateConfig(c *gin.Context) {
	var req UpdateDiagnosticsConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	if req.MaxPerWindow != nil && *req.MaxPerWindow <= 0 {
		badRequest(c, "max_per_window must be positive")
		return
	}
	if req.WindowMs != nil && *req.WindowMs <= 0 {
		badRequest(c, "window_ms must be positive")
		return
	}
	if req.SlowOperationMs != nil && *req.SlowOperationMs <= 0 {
		badRequest(c, "slow_operation_ms must be positive")
		return
	}

	cfg := h.limiter.Config()
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.MaxPerWindow != nil {
		cfg.MaxPerWindow = *req.MaxPerWindow
	}
	if req.WindowMs != nil {
		cfg.Window = time.Duration(*req.WindowMs) * time.Millisecond
	}
	h.limiter.SetConfig(cfg)

	if req.SlowOperationMs != nil {
		h.recorder.SetSlowThreshold(time.Duration(*req.SlowOperationMs) * time.Millisecond)
	}

	user := GetAuthUser(c)
	actor := ""
	if user != nil {
		actor = user.ID
	}
	h.logger.Info("diagnostics config updated",
		zap.String("actor", actor),
		zap.Bool("rate_limit_enabled", cfg.Enabled),
		zap.Int("max_per_window", cfg.MaxPerWindow),
		zap.Duration("window", cfg.Window),
	)

	c.JSON(http.StatusOK, DiagnosticsResponse{
		Status: "success",
		Data:   h.snapshot(),
	})
}

// ResetMetrics godoc
// @Summary Reset in-memory counters and latency samples
// @Tags diagnostics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handler.DiagnosticsResponse
// @Router /api/v1/diagnostics/reset [post]
func (h *DiagnosticsHandler) ResetMetrics(c *gin.Context) {
	h.recorder.Reset()
	c.JSON(http.StatusOK, DiagnosticsResponse{
		Status: "success",
		Data:   h.snapshot(),
	})
}

func (h *DiagnosticsHandler) snapshot() DiagnosticsData {
	cfg := h.limiter.Config()
	return DiagnosticsData{
		Metrics: h.recorder.Snapshot(),
		RateLimit: RateLimitView{
			Enabled:      cfg.Enabled,
			MaxPerWindow: cfg.MaxPerWindow,
			WindowMs:     cfg.Window.Milliseconds(),
			Buckets:      h.limiter.Len(),
		},
		EscalationRules: h.rules.Get(),
	}
}
