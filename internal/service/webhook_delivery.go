package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/screenops/alertcore/internal/model"
	tmpl "github.com/screenops/alertcore/internal/template"
	"go.uber.org/zap"
)

// webhookConfigReader - delivery 전용 조회 인터페이스
type webhookConfigReader interface {
	ListWebhookConfigs(ctx context.Context, tenantID string, enabledOnly bool) ([]model.WebhookConfig, error)
}

// WebhookDeliveryService - tenant가 등록한 webhook으로 critical Alert를 전송하는 ops mirror
//
// Slack mirror와 독립적으로 동작하며 개별 webhook 실패는 나머지 전송을 막지 않는다.
type WebhookDeliveryService struct {
	configDB   webhookConfigReader
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookDeliveryService(configDB webhookConfigReader, httpClient *http.Client, logger *zap.Logger) *WebhookDeliveryService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookDeliveryService{
		configDB:   configDB,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SendAlert - 발생 알림 전송
func (s *WebhookDeliveryService) SendAlert(ctx context.Context, alert model.Alert, actionURL string) error {
	return s.deliver(ctx, tmpl.AlertDataFromModel(alert, actionURL), alert.TenantID)
}

// SendResolved - 해제 알림 전송, notes가 있으면 resolution_notes로 노출
func (s *WebhookDeliveryService) SendResolved(ctx context.Context, alert model.Alert, notes *string) error {
	data := tmpl.AlertDataFromModel(alert, "")
	data.Status = string(model.AlertStatusResolved)
	if notes != nil {
		data.ResolutionNotes = *notes
	}
	return s.deliver(ctx, data, alert.TenantID)
}

func (s *WebhookDeliveryService) deliver(ctx context.Context, data tmpl.AlertData, tenantID string) error {
	configs, err := s.configDB.ListWebhookConfigs(ctx, tenantID, true)
	if err != nil {
		return fmt.Errorf("load webhook configs: %w", err)
	}

	var errs []error
	for _, cfg := range configs {
		body := cfg.Body
		if body == "" {
			body = defaultWebhookBody(data)
		} else {
			body = tmpl.Render(body, &data)
		}

		if err := s.sendHTTP(ctx, cfg, body); err != nil {
			s.logger.Warn("Webhook delivery failed",
				zap.Int("webhook_id", cfg.ID),
				zap.String("url", cfg.URL),
				zap.String("alert_id", data.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("webhook %d: %w", cfg.ID, err))
			continue
		}
		s.logger.Debug("Webhook delivered", zap.Int("webhook_id", cfg.ID), zap.String("alert_id", data.ID))
	}
	return errors.Join(errs...)
}

// sendHTTP - 단일 webhook config로 HTTP 요청 전송
func (s *WebhookDeliveryService) sendHTTP(ctx context.Context, cfg model.WebhookConfig, body string) error {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return err
	}

	// Content-Type 기본값 application/json
	hasContentType := false
	for _, h := range cfg.Headers {
		if h.Key == "" {
			continue
		}
		req.Header.Set(h.Key, h.Value)
		if http.CanonicalHeaderKey(h.Key) == "Content-Type" {
			hasContentType = true
		}
	}
	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// defaultWebhookBody - body 템플릿이 비어있을 때 보내는 JSON
func defaultWebhookBody(data tmpl.AlertData) string {
	payload := map[string]any{
		"alert_id":    data.ID,
		"type":        data.Type,
		"severity":    data.Severity,
		"status":      data.Status,
		"title":       data.Title,
		"message":     data.Message,
		"occurrences": data.Occurrences,
		"action_url":  data.ActionURL,
	}
	if data.ResolutionNotes != "" {
		payload["resolution_notes"] = data.ResolutionNotes
	}
	out, _ := json.Marshal(payload)
	return string(out)
}
