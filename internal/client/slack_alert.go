// Slack Alert 메시지 관련 메서드 정의

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/screenops/alertcore/internal/model"
	tmpl "github.com/screenops/alertcore/internal/template"
	"go.uber.org/zap"
)

// SendAlert - 새 Alert를 채널에 전송하고 thread_ts 저장
func (c *SlackClient) SendAlert(ctx context.Context, alert model.Alert, actionURL string) error {
	if !c.IsConfigured() {
		return ErrSlackNotConfigured
	}

	fields := []SlackField{
		{Title: "Type", Value: tmpl.TypeLabel(string(alert.Type)), Short: true},
		{Title: "Severity", Value: string(alert.Severity), Short: true},
		{Title: "Tenant", Value: alert.TenantID, Short: true},
		{Title: "First seen", Value: alert.CreatedAt.UTC().Format(time.RFC3339), Short: true},
	}
	if alert.DeviceID != nil {
		fields = append(fields, SlackField{Title: "Device", Value: *alert.DeviceID, Short: true})
	}
	if alert.DataSourceID != nil {
		fields = append(fields, SlackField{Title: "Data source", Value: *alert.DataSourceID, Short: true})
	}
	if actionURL != "" {
		fields = append(fields, SlackField{Title: "Alert", Value: fmt.Sprintf("<%s|Open in dashboard>", actionURL), Short: false})
	}

	text := ""
	if alert.Message != nil {
		text = *alert.Message
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  colorBySeverity(alert.Severity),
				Title:  fmt.Sprintf("🔥 [%s] %s", alert.Severity, alert.Title),
				Text:   text,
				Fields: fields,
				Footer: "alertcore",
				Ts:     time.Now().Unix(),
			},
		},
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		return err
	}
	if resp.TS != "" {
		c.StoreThreadTS(alert.ID, resp.TS)
	}
	c.logger.Debug("Slack alert sent", zap.String("alert_id", alert.ID), zap.String("thread_ts", resp.TS))
	return nil
}

// SendResolved - 해제 메시지를 최초 메시지 스레드에 답글로 전송
// 스레드가 없으면(재시작 등) 채널에 새 메시지로 전송
func (c *SlackClient) SendResolved(ctx context.Context, alert model.Alert, notes *string) error {
	if !c.IsConfigured() {
		return ErrSlackNotConfigured
	}

	text := "Condition cleared"
	if notes != nil && *notes != "" {
		text = *notes
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  "#36a64f",
				Title:  fmt.Sprintf("✅ [resolved] %s", alert.Title),
				Text:   text,
				Footer: "alertcore",
				Ts:     time.Now().Unix(),
			},
		},
	}
	if threadTS, ok := c.GetThreadTS(alert.ID); ok {
		msg.ThreadTS = threadTS
	}

	if _, err := c.send(ctx, msg); err != nil {
		return err
	}
	c.DeleteThreadTS(alert.ID)
	return nil
}

// Severity에 따른 메시지 색상 반환
func colorBySeverity(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "#dc3545" // red
	case model.SeverityWarning:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}
