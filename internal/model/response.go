package model

type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ============================================================================
// Alert API Response Envelope
// ============================================================================

type AlertEnvelope struct {
	Status string `json:"status"`
	Data   *Alert `json:"data"`
}

type AlertListEnvelope struct {
	Status string    `json:"status"`
	Data   AlertList `json:"data"`
}

type AlertSummaryEnvelope struct {
	Status string        `json:"status"`
	Data   *AlertSummary `json:"data"`
}

type RaiseAlertResponse struct {
	Status string           `json:"status"`
	Data   RaiseAlertResult `json:"data"`
}

type AutoResolveResponse struct {
	Status   string `json:"status"`
	Resolved int    `json:"resolved"`
}

type AlertUpdateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	AlertID string `json:"alert_id"`
}

type BulkAlertResponse struct {
	Status string     `json:"status"`
	Data   BulkResult `json:"data"`
}

// ============================================================================
// Notification API Response Envelope
// ============================================================================

type NotificationListEnvelope struct {
	Status string           `json:"status"`
	Data   NotificationList `json:"data"`
}

type PreferenceEnvelope struct {
	Status string                  `json:"status"`
	Data   *NotificationPreference `json:"data"`
}

type NotificationUpdateResponse struct {
	Status         string `json:"status"`
	NotificationID string `json:"notification_id"`
}
