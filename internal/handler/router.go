package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

var (
	// 조회 가능한 사용자 role
	readerRoles = []string{model.RoleOwner, model.RoleAdmin, model.RoleOperator, model.RoleViewer}
	// acknowledge/resolve 가능한 role
	writerRoles = []string{model.RoleOwner, model.RoleAdmin, model.RoleOperator}
	// 런타임 설정 변경 가능한 role
	adminRoles = []string{model.RoleOwner, model.RoleAdmin}
)

// RouterDeps - 라우터 구성에 필요한 핸들러 묶음
type RouterDeps struct {
	Auth           tokenParser
	Alerts         *AlertHandler
	Notifications  *NotificationHandler
	Diagnostics    *DiagnosticsHandler
	Webhooks       *WebhookSettingsHandler
	AllowedOrigins []string
	// access log (nil이면 생략)
	Logger         *zap.Logger
	// Prometheus /metrics (nil이면 등록 안 함)
	MetricsHandler http.Handler
}

// NewRouter - gin 엔진 생성 및 라우트 등록
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Logger != nil {
		router.Use(RequestLogger(deps.Logger))
	}
	router.Use(CORSMiddleware(deps.AllowedOrigins))

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/openapi.json", OpenAPIDoc)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := router.Group("/api/v1")
	api.Use(AuthMiddleware(deps.Auth))

	alerts := api.Group("/alerts")
	{
		monitor := alerts.Group("", RequireRoles(model.RoleMonitor))
		monitor.POST("/raise", deps.Alerts.RaiseAlert)
		monitor.POST("/auto-resolve", deps.Alerts.AutoResolveAlert)

		read := alerts.Group("", RequireRoles(readerRoles...))
		read.GET("", deps.Alerts.GetAlerts)
		read.GET("/summary", deps.Alerts.GetAlertSummary)
		read.GET("/:id", deps.Alerts.GetAlert)

		write := alerts.Group("", RequireRoles(writerRoles...))
		write.POST("/:id/acknowledge", deps.Alerts.AcknowledgeAlert)
		write.POST("/:id/resolve", deps.Alerts.ResolveAlert)
		write.POST("/bulk/acknowledge", deps.Alerts.BulkAcknowledge)
		write.POST("/bulk/resolve", deps.Alerts.BulkResolve)
	}

	notifications := api.Group("/notifications")
	{
		notifications.POST("/:id/email-sent", RequireRoles(model.RoleMonitor), deps.Notifications.MarkEmailSent)

		inbox := notifications.Group("", RequireRoles(readerRoles...))
		inbox.GET("", deps.Notifications.ListNotifications)
		inbox.POST("/:id/read", deps.Notifications.MarkRead)
		inbox.POST("/:id/click", deps.Notifications.MarkClicked)
		inbox.GET("/preferences", deps.Notifications.GetPreference)
		inbox.PUT("/preferences", deps.Notifications.UpdatePreference)
	}

	diagnostics := api.Group("/diagnostics")
	{
		diagnostics.GET("/metrics", RequireRoles(readerRoles...), deps.Diagnostics.GetMetrics)
		diagnostics.PUT("/config", RequireRoles(adminRoles...), deps.Diagnostics.UpdateConfig)
		diagnostics.POST("/reset", RequireRoles(adminRoles...), deps.Diagnostics.ResetMetrics)
	}

	webhooks := api.Group("/settings/webhooks", RequireRoles(adminRoles...))
	{
		webhooks.GET("", deps.Webhooks.ListWebhookConfigs)
		webhooks.POST("", deps.Webhooks.CreateWebhookConfig)
		webhooks.GET("/:id", deps.Webhooks.GetWebhookConfig)
		webhooks.PUT("/:id", deps.Webhooks.UpdateWebhookConfig)
		webhooks.DELETE("/:id", deps.Webhooks.DeleteWebhookConfig)
	}

	return router
}
