package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

// webhookService - tenant 운영 webhook 설정 (service.WebhookService)
type webhookService interface {
	ListWebhookConfigs(ctx context.Context, tenantID string) ([]model.WebhookConfig, error)
	GetWebhookConfig(ctx context.Context, tenantID string, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, tenantID string, req model.WebhookConfigRequest) (int, error)
	UpdateWebhookConfig(ctx context.Context, tenantID string, id int, req model.WebhookConfigRequest) error
	DeleteWebhookConfig(ctx context.Context, tenantID string, id int) error
}

// WebhookSettingsHandler - 웹훅 설정 관련 핸들러
type WebhookSettingsHandler struct {
	svc    webhookService
	logger *zap.Logger
}

func NewWebhookSettingsHandler(svc webhookService, logger *zap.Logger) *WebhookSettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookSettingsHandler{svc: svc, logger: logger}
}

// ListWebhookConfigs godoc
// @Summary List ops webhooks of the caller's tenant
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.WebhookConfigListResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [get]
func (h *WebhookSettingsHandler) ListWebhookConfigs(c *gin.Context) {
	user := GetAuthUser(c)
	configs, err := h.svc.ListWebhookConfigs(c.Request.Context(), user.TenantID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigListResponse{Status: "success", Data: configs})
}

// GetWebhookConfig godoc
// @Summary Get an ops webhook by ID
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Success 200 {object} model.WebhookConfigResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [get]
func (h *WebhookSettingsHandler) GetWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	cfg, err := h.svc.GetWebhookConfig(c.Request.Context(), GetAuthUser(c).TenantID, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigResponse{Status: "success", Data: cfg})
}

// CreateWebhookConfig godoc
// @Summary Create an ops webhook
// @Description Body may use alert variables; an empty body sends a default JSON payload.
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 201 {object} model.WebhookConfigMutationResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [post]
func (h *WebhookSettingsHandler) CreateWebhookConfig(c *gin.Context) {
	var req model.WebhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	id, err := h.svc.CreateWebhookConfig(c.Request.Context(), GetAuthUser(c).TenantID, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "Webhook created",
		ID:      id,
	})
}

// UpdateWebhookConfig godoc
// @Summary Update an ops webhook
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Param request body model.WebhookConfigRequest true "Webhook config"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [put]
func (h *WebhookSettingsHandler) UpdateWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	var req model.WebhookConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	if err := h.svc.UpdateWebhookConfig(c.Request.Context(), GetAuthUser(c).TenantID, id, req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "Webhook updated",
		ID:      id,
	})
}

// DeleteWebhookConfig godoc
// @Summary Delete an ops webhook
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook Config ID"
// @Success 200 {object} model.WebhookConfigMutationResponse
// @Failure 400,404,500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [delete]
func (h *WebhookSettingsHandler) DeleteWebhookConfig(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteWebhookConfig(c.Request.Context(), GetAuthUser(c).TenantID, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.WebhookConfigMutationResponse{
		Status:  "success",
		Message: "Webhook deleted",
		ID:      id,
	})
}

func webhookID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
