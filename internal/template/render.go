// Package template provides notification text rendering.
//
// 지원하는 변수 형식:
//
//	{{alert.id}}, {{alert.type}}, {{alert.type_label}}, {{alert.severity}},
//	{{alert.status}}, {{alert.title}}, {{alert.message}},
//	{{alert.occurrences}}, {{alert.created_at}}, {{alert.last_occurred_at}},
//	{{alert.resolved_at}}, {{alert.resolution_notes}}, {{alert.action_url}},
//	{{alert.device_id}}, {{alert.scene_id}}, {{alert.schedule_id}},
//	{{alert.data_source_id}}
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/screenops/alertcore/internal/model"
)

// AlertData - 템플릿 렌더링에 사용할 Alert 데이터
type AlertData struct {
	ID              string
	Type            string
	Severity        string
	Status          string
	Title           string
	Message         string
	Occurrences     int
	CreatedAt       time.Time
	LastOccurredAt  time.Time
	ResolvedAt      time.Time
	ResolutionNotes string
	ActionURL       string
	DeviceID        string
	SceneID         string
	ScheduleID      string
	DataSourceID    string
}

// AlertDataFromModel - model.Alert에서 AlertData 생성
func AlertDataFromModel(alert model.Alert, actionURL string) AlertData {
	data := AlertData{
		ID:              alert.ID,
		Type:            string(alert.Type),
		Severity:        string(alert.Severity),
		Status:          string(alert.Status),
		Title:           alert.Title,
		Message:         deref(alert.Message),
		Occurrences:     alert.Occurrences,
		CreatedAt:       alert.CreatedAt,
		LastOccurredAt:  alert.LastOccurredAt,
		ResolutionNotes: deref(alert.ResolutionNotes),
		ActionURL:       actionURL,
		DeviceID:        deref(alert.DeviceID),
		SceneID:         deref(alert.SceneID),
		ScheduleID:      deref(alert.ScheduleID),
		DataSourceID:    deref(alert.DataSourceID),
	}
	if alert.ResolvedAt != nil {
		data.ResolvedAt = *alert.ResolvedAt
	}
	return data
}

// TypeLabel - "device_offline" -> "Device offline"
func TypeLabel(t string) string {
	label := strings.ReplaceAll(t, "_", " ")
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// Render - 템플릿의 변수를 실제 값으로 치환
//
// alert가 nil이면 모든 변수가 빈 문자열로 치환됩니다.
// 알 수 없는 변수는 그대로 남습니다.
func Render(body string, alert *AlertData) string {
	if alert == nil {
		alert = &AlertData{}
	}

	pairs := []string{
		"{{alert.id}}", alert.ID,
		"{{alert.type}}", alert.Type,
		"{{alert.type_label}}", TypeLabel(alert.Type),
		"{{alert.severity}}", alert.Severity,
		"{{alert.status}}", alert.Status,
		"{{alert.title}}", alert.Title,
		"{{alert.message}}", alert.Message,
		"{{alert.occurrences}}", occurrences(alert.Occurrences),
		"{{alert.created_at}}", formatTime(alert.CreatedAt),
		"{{alert.last_occurred_at}}", formatTime(alert.LastOccurredAt),
		"{{alert.resolved_at}}", formatTime(alert.ResolvedAt),
		"{{alert.resolution_notes}}", alert.ResolutionNotes,
		"{{alert.action_url}}", alert.ActionURL,
		"{{alert.device_id}}", alert.DeviceID,
		"{{alert.scene_id}}", alert.SceneID,
		"{{alert.schedule_id}}", alert.ScheduleID,
		"{{alert.data_source_id}}", alert.DataSourceID,
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func occurrences(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
