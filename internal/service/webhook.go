package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/screenops/alertcore/internal/db"
	"github.com/screenops/alertcore/internal/model"
)

// webhookRepo - tenant webhook 설정 persistence
type webhookRepo interface {
	ListWebhookConfigs(ctx context.Context, tenantID string, enabledOnly bool) ([]model.WebhookConfig, error)
	GetWebhookConfig(ctx context.Context, tenantID string, id int) (*model.WebhookConfig, error)
	CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error)
	UpdateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) error
	DeleteWebhookConfig(ctx context.Context, tenantID string, id int) error
}

// WebhookService - tenant 운영 webhook 설정 관리
type WebhookService struct {
	db webhookRepo
}

func NewWebhookService(db webhookRepo) *WebhookService {
	return &WebhookService{db: db}
}

func (s *WebhookService) ListWebhookConfigs(ctx context.Context, tenantID string) ([]model.WebhookConfig, error) {
	configs, err := s.db.ListWebhookConfigs(ctx, tenantID, false)
	if err != nil {
		return nil, &StoreError{Op: "list_webhooks", Err: err}
	}
	return configs, nil
}

func (s *WebhookService) GetWebhookConfig(ctx context.Context, tenantID string, id int) (*model.WebhookConfig, error) {
	cfg, err := s.db.GetWebhookConfig(ctx, tenantID, id)
	if err != nil {
		return nil, webhookStoreError("get_webhook", err)
	}
	return cfg, nil
}

func (s *WebhookService) CreateWebhookConfig(ctx context.Context, tenantID string, req model.WebhookConfigRequest) (int, error) {
	cfg, err := webhookFromRequest(tenantID, req)
	if err != nil {
		return 0, err
	}
	id, err := s.db.CreateWebhookConfig(ctx, cfg)
	if err != nil {
		return 0, &StoreError{Op: "create_webhook", Err: err}
	}
	return id, nil
}

func (s *WebhookService) UpdateWebhookConfig(ctx context.Context, tenantID string, id int, req model.WebhookConfigRequest) error {
	cfg, err := webhookFromRequest(tenantID, req)
	if err != nil {
		return err
	}
	cfg.ID = id
	if err := s.db.UpdateWebhookConfig(ctx, cfg); err != nil {
		return webhookStoreError("update_webhook", err)
	}
	return nil
}

func (s *WebhookService) DeleteWebhookConfig(ctx context.Context, tenantID string, id int) error {
	if err := s.db.DeleteWebhookConfig(ctx, tenantID, id); err != nil {
		return webhookStoreError("delete_webhook", err)
	}
	return nil
}

// webhookFromRequest - 검증 + 기본값(POST, enabled, 빈 헤더)
func webhookFromRequest(tenantID string, req model.WebhookConfigRequest) (model.WebhookConfig, error) {
	target := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return model.WebhookConfig{}, validationError("url", "must be an absolute http(s) URL")
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodPut {
		return model.WebhookConfig{}, validationError("method", "must be POST or PUT")
	}

	headers := []model.WebhookHeader{}
	for _, h := range req.Headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		headers = append(headers, model.WebhookHeader{Key: strings.TrimSpace(h.Key), Value: h.Value})
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return model.WebhookConfig{
		TenantID: tenantID,
		URL:      target,
		Method:   method,
		Headers:  headers,
		Body:     req.Body,
		Enabled:  enabled,
	}, nil
}

func webhookStoreError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return &StoreError{Op: op, Err: err}
}
