// Alert API 핸들러
//
// 요청 흐름:
//  1. monitor(device heartbeat, sync job, capture pipeline)가 POST /api/v1/alerts/raise로 알림 발생
//  2. 조건이 해소되면 POST /api/v1/alerts/auto-resolve
//  3. 운영자는 토큰의 tenant 범위 안에서 조회/acknowledge/resolve

package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

// alertService - Alert Engine (service.AlertService)
type alertService interface {
	RaiseAlert(ctx context.Context, req model.RaiseAlertRequest) (*model.RaiseAlertResult, error)
	AutoResolveAlert(ctx context.Context, req model.AutoResolveRequest) (int, error)
	GetAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) (*model.AlertList, error)
	GetAlert(ctx context.Context, alertID, tenantID string) (*model.Alert, error)
	GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error)
	AcknowledgeAlert(ctx context.Context, alertID, tenantID, actor string) (bool, error)
	ResolveAlert(ctx context.Context, alertID, tenantID, actor string, notes *string) (bool, error)
	BulkAcknowledge(ctx context.Context, tenantID string, ids []string, actor string) (*model.BulkResult, error)
	BulkResolve(ctx context.Context, tenantID string, ids []string, actor string, notes *string) (*model.BulkResult, error)
}

// Alert 핸들러 구조체 정의
type AlertHandler struct {
	alertService alertService
	logger       *zap.Logger
}

// Alert 핸들러 객체 생성
func NewAlertHandler(alertService alertService, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// RaiseAlert godoc
// @Summary Raise an alert
// @Description Creates a new alert or coalesces into the matching open alert. Rate-limited requests return rate_limited=true.
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.RaiseAlertRequest true "Alert payload"
// @Success 200 {object} model.RaiseAlertResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/raise [post]
func (h *AlertHandler) RaiseAlert(c *gin.Context) {
	var req model.RaiseAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	result, err := h.alertService.RaiseAlert(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.RaiseAlertResponse{
		Status: "success",
		Data:   *result,
	})
}

// AutoResolveAlert godoc
// @Summary Auto-resolve alerts
// @Description Resolves every open or acknowledged alert of the given type matching the supplied keys. Omitted keys match any value.
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.AutoResolveRequest true "Auto-resolve filter"
// @Success 200 {object} model.AutoResolveResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/auto-resolve [post]
func (h *AlertHandler) AutoResolveAlert(c *gin.Context) {
	var req model.AutoResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	count, err := h.alertService.AutoResolveAlert(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.AutoResolveResponse{
		Status:   "success",
		Resolved: count,
	})
}

// GetAlerts godoc
// @Summary List alerts
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses (open, acknowledged, resolved)"
// @Param severity query string false "Comma separated severities"
// @Param type query string false "Comma separated alert types"
// @Param device_id query string false "Device ID"
// @Param scene_id query string false "Scene ID"
// @Param schedule_id query string false "Schedule ID"
// @Param data_source_id query string false "Data source ID"
// @Param since query string false "RFC3339 lower bound on last occurrence"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} model.AlertListEnvelope
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts [get]
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	user := GetAuthUser(c)

	filter, err := parseAlertFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.TenantID = user.TenantID

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	list, err := h.alertService.GetAlerts(c.Request.Context(), filter, page)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list.Items == nil {
		list.Items = []model.Alert{}
	}

	c.JSON(http.StatusOK, model.AlertListEnvelope{
		Status: "success",
		Data:   *list,
	})
}

// GetAlertSummary godoc
// @Summary Alert counts by status and severity
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AlertSummaryEnvelope
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/summary [get]
func (h *AlertHandler) GetAlertSummary(c *gin.Context) {
	user := GetAuthUser(c)

	summary, err := h.alertService.GetAlertSummary(c.Request.Context(), user.TenantID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.AlertSummaryEnvelope{
		Status: "success",
		Data:   summary,
	})
}

// GetAlert godoc
// @Summary Get alert detail
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} model.AlertEnvelope
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	user := GetAuthUser(c)

	alert, err := h.alertService.GetAlert(c.Request.Context(), c.Param("id"), user.TenantID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.AlertEnvelope{
		Status: "success",
		Data:   alert,
	})
}

// AcknowledgeAlert godoc
// @Summary Acknowledge alert
// @Tags alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} model.AlertUpdateResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/acknowledge [post]
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	user := GetAuthUser(c)
	id := c.Param("id")

	ok, err := h.alertService.AcknowledgeAlert(c.Request.Context(), id, user.TenantID, user.ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, model.ErrorResponse{Status: "error", Error: "alert is not open"})
		return
	}

	c.JSON(http.StatusOK, model.AlertUpdateResponse{
		Status:  "success",
		Message: "Alert acknowledged",
		AlertID: id,
	})
}

// ResolveAlert godoc
// @Summary Resolve alert
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param request body model.ResolveAlertRequest false "Resolution notes"
// @Success 200 {object} model.AlertUpdateResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	user := GetAuthUser(c)
	id := c.Param("id")

	var req model.ResolveAlertRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid payload: "+err.Error())
			return
		}
	}

	ok, err := h.alertService.ResolveAlert(c.Request.Context(), id, user.TenantID, user.ID, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, model.ErrorResponse{Status: "error", Error: "alert is already resolved"})
		return
	}

	c.JSON(http.StatusOK, model.AlertUpdateResponse{
		Status:  "success",
		Message: "Alert resolved",
		AlertID: id,
	})
}

// BulkAcknowledge godoc
// @Summary Acknowledge several alerts
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.BulkAlertRequest true "Alert IDs"
// @Success 200 {object} model.BulkAlertResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/bulk/acknowledge [post]
func (h *AlertHandler) BulkAcknowledge(c *gin.Context) {
	user := GetAuthUser(c)

	var req model.BulkAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	result, err := h.alertService.BulkAcknowledge(c.Request.Context(), user.TenantID, req.IDs, user.ID)
	h.writeBulk(c, result, err)
}

// BulkResolve godoc
// @Summary Resolve several alerts
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.BulkAlertRequest true "Alert IDs and optional notes"
// @Success 200 {object} model.BulkAlertResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts/bulk/resolve [post]
func (h *AlertHandler) BulkResolve(c *gin.Context) {
	user := GetAuthUser(c)

	var req model.BulkAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	result, err := h.alertService.BulkResolve(c.Request.Context(), user.TenantID, req.IDs, user.ID, req.Notes)
	h.writeBulk(c, result, err)
}

// writeBulk - 중간 실패 시 처리된 결과는 로그로 남기고 에러 응답
func (h *AlertHandler) writeBulk(c *gin.Context, result *model.BulkResult, err error) {
	if err != nil {
		if result != nil {
			h.logger.Warn("bulk alert update aborted",
				zap.Int("requested", result.Requested),
				zap.Int("updated", result.Updated),
			)
		}
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.BulkAlertResponse{
		Status: "success",
		Data:   *result,
	})
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseAlertFilter - query string -> AlertFilter
// 목록 값은 콤마 구분 또는 반복 파라미터 모두 허용
func parseAlertFilter(c *gin.Context) (model.AlertFilter, error) {
	filter := model.AlertFilter{
		DeviceID:     strings.TrimSpace(c.Query("device_id")),
		SceneID:      strings.TrimSpace(c.Query("scene_id")),
		ScheduleID:   strings.TrimSpace(c.Query("schedule_id")),
		DataSourceID: strings.TrimSpace(c.Query("data_source_id")),
	}

	for _, v := range queryList(c, "status") {
		status := model.AlertStatus(v)
		if !status.Valid() {
			return filter, filterError("invalid status: " + v)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, v := range queryList(c, "severity") {
		severity := model.Severity(v)
		if !severity.Valid() {
			return filter, filterError("invalid severity: " + v)
		}
		filter.Severities = append(filter.Severities, severity)
	}
	for _, v := range queryList(c, "type") {
		alertType := model.AlertType(v)
		if !alertType.Valid() {
			return filter, filterError("invalid type: " + v)
		}
		filter.Types = append(filter.Types, alertType)
	}

	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, filterError("invalid since: expected RFC3339")
		}
		filter.Since = &since
	}
	return filter, nil
}

func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
