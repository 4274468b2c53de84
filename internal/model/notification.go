package model

import "time"

// Channel - 알림 전달 채널
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// Notification - 수신자/채널 단위 전달 기록
type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TenantID    string     `json:"tenant_id"`
	AlertID     string     `json:"alert_id"`
	Channel     Channel    `json:"channel"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Severity    Severity   `json:"severity"`
	AlertType   AlertType  `json:"alert_type"`
	ActionURL   string     `json:"action_url"`
	ReadAt      *time.Time `json:"read_at"`
	ClickedAt   *time.Time `json:"clicked_at"`
	EmailSentAt *time.Time `json:"email_sent_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NotificationPreference - 사용자/tenant 단위 수신 정책
//
// TypesWhitelist가 비어있지 않으면 TypesBlacklist보다 우선
// QuietHoursStart/End는 "HH:MM" 형식, 자정을 넘어가는 구간 허용
type NotificationPreference struct {
	UserID             string      `json:"user_id"`
	TenantID           string      `json:"tenant_id"`
	ChannelInApp       bool        `json:"channel_in_app"`
	ChannelEmail       bool        `json:"channel_email"`
	MinSeverity        Severity    `json:"min_severity"`
	TypesWhitelist     []AlertType `json:"types_whitelist"`
	TypesBlacklist     []AlertType `json:"types_blacklist"`
	QuietHoursStart    *string     `json:"quiet_hours_start"`
	QuietHoursEnd      *string     `json:"quiet_hours_end"`
	QuietHoursTimezone *string     `json:"quiet_hours_timezone"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// DefaultNotificationPreference - preference row가 없을 때 적용하는 기본 정책
func DefaultNotificationPreference(userID, tenantID string) NotificationPreference {
	return NotificationPreference{
		UserID:       userID,
		TenantID:     tenantID,
		ChannelInApp: true,
		ChannelEmail: true,
		MinSeverity:  SeverityWarning,
	}
}

// TenantMember - tenant 구성원 (users + tenant_members)
type TenantMember struct {
	UserID      string `json:"user_id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// DispatchResult - 채널별 생성된 알림 개수
type DispatchResult struct {
	InAppCount int `json:"in_app_count"`
	EmailCount int `json:"email_count"`
}

// UpdatePreferenceRequest - preference 수정 요청
type UpdatePreferenceRequest struct {
	ChannelInApp       *bool       `json:"channel_in_app"`
	ChannelEmail       *bool       `json:"channel_email"`
	MinSeverity        *Severity   `json:"min_severity"`
	TypesWhitelist     []AlertType `json:"types_whitelist"`
	TypesBlacklist     []AlertType `json:"types_blacklist"`
	QuietHoursStart    *string     `json:"quiet_hours_start"`
	QuietHoursEnd      *string     `json:"quiet_hours_end"`
	QuietHoursTimezone *string     `json:"quiet_hours_timezone"`
}

// NotificationList - 알림함 목록
type NotificationList struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
}

// EmailJob - 메일 워커가 소비하는 발송 작업
// NotificationID는 큐 중복 제거 키로도 사용
type EmailJob struct {
	NotificationID string    `json:"notification_id"`
	AlertID        string    `json:"alert_id"`
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id"`
	To             string    `json:"to"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Severity       Severity  `json:"severity"`
	CreatedAt      time.Time `json:"created_at"`
}
