package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

// notificationService - 알림함/수신 정책 (service.NotificationService)
type notificationService interface {
	ListNotifications(ctx context.Context, userID, tenantID string, unreadOnly bool, page model.Pagination) (*model.NotificationList, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkClicked(ctx context.Context, id, userID string) error
	MarkEmailSent(ctx context.Context, id string) error
	GetPreference(ctx context.Context, userID, tenantID string) (*model.NotificationPreference, error)
	UpdatePreference(ctx context.Context, userID, tenantID string, req model.UpdatePreferenceRequest) (*model.NotificationPreference, error)
}

type NotificationHandler struct {
	svc    notificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc notificationService, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

// ListNotifications godoc
// @Summary List in-app notifications of the caller
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} model.NotificationListEnvelope
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	user := GetAuthUser(c)

	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid unread flag")
			return
		}
		unreadOnly = parsed
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	list, err := h.svc.ListNotifications(c.Request.Context(), user.ID, user.TenantID, unreadOnly, page)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.NotificationListEnvelope{
		Status: "success",
		Data:   *list,
	})
}

// MarkRead godoc
// @Summary Mark notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.NotificationUpdateResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user := GetAuthUser(c)
	id := c.Param("id")

	if err := h.svc.MarkRead(c.Request.Context(), id, user.ID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.NotificationUpdateResponse{Status: "success", NotificationID: id})
}

// MarkClicked godoc
// @Summary Mark notification as clicked
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.NotificationUpdateResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications/{id}/click [post]
func (h *NotificationHandler) MarkClicked(c *gin.Context) {
	user := GetAuthUser(c)
	id := c.Param("id")

	if err := h.svc.MarkClicked(c.Request.Context(), id, user.ID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.NotificationUpdateResponse{Status: "success", NotificationID: id})
}

// MarkEmailSent godoc
// @Summary Report email delivery (mail worker)
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.NotificationUpdateResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications/{id}/email-sent [post]
func (h *NotificationHandler) MarkEmailSent(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.MarkEmailSent(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.NotificationUpdateResponse{Status: "success", NotificationID: id})
}

// GetPreference godoc
// @Summary Get notification preference of the caller
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.PreferenceEnvelope
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications/preferences [get]
func (h *NotificationHandler) GetPreference(c *gin.Context) {
	user := GetAuthUser(c)

	pref, err := h.svc.GetPreference(c.Request.Context(), user.ID, user.TenantID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.PreferenceEnvelope{Status: "success", Data: pref})
}

// UpdatePreference godoc
// @Summary Update notification preference of the caller
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdatePreferenceRequest true "Fields to change"
// @Success 200 {object} model.PreferenceEnvelope
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/notifications/preferences [put]
func (h *NotificationHandler) UpdatePreference(c *gin.Context) {
	user := GetAuthUser(c)

	var req model.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	pref, err := h.svc.UpdatePreference(c.Request.Context(), user.ID, user.TenantID, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.PreferenceEnvelope{Status: "success", Data: pref})
}
