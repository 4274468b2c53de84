package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/screenops/alertcore/internal/model"
)

// EnsureWebhookSchema - tenant_webhooks 테이블 생성 (없으면)
func (db *Postgres) EnsureWebhookSchema(ctx context.Context) error {
	return db.execAll(ctx, []string{
		`CREATE TABLE IF NOT EXISTS tenant_webhooks (
			id         SERIAL       PRIMARY KEY,
			tenant_id  TEXT         NOT NULL,
			url        TEXT         NOT NULL,
			method     TEXT         NOT NULL DEFAULT 'POST',
			headers    JSONB        NOT NULL DEFAULT '[]',
			body       TEXT         NOT NULL DEFAULT '',
			enabled    BOOLEAN      NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tenant_webhooks_tenant ON tenant_webhooks (tenant_id)`,
	})
}

const webhookColumns = `id, tenant_id, url, method, headers, body, enabled, updated_at`

// ListWebhookConfigs - tenant 웹훅 목록 (최신순), enabledOnly면 활성화된 것만
func (db *Postgres) ListWebhookConfigs(ctx context.Context, tenantID string, enabledOnly bool) ([]model.WebhookConfig, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM tenant_webhooks
		WHERE tenant_id = $1 AND (NOT $2::boolean OR enabled)
		ORDER BY updated_at DESC, id DESC`, tenantID, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook configs: %w", err)
	}
	defer rows.Close()

	configs := []model.WebhookConfig{}
	for rows.Next() {
		var cfg model.WebhookConfig
		var headersJSON []byte
		if err := rows.Scan(&cfg.ID, &cfg.TenantID, &cfg.URL, &cfg.Method, &headersJSON, &cfg.Body, &cfg.Enabled, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook config: %w", err)
		}
		if err := unmarshalHeaders(headersJSON, &cfg); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhook configs: %w", err)
	}
	return configs, nil
}

// GetWebhookConfig - tenant 범위 단건 조회
func (db *Postgres) GetWebhookConfig(ctx context.Context, tenantID string, id int) (*model.WebhookConfig, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+webhookColumns+`
		FROM tenant_webhooks
		WHERE tenant_id = $1 AND id = $2`, tenantID, id)

	var cfg model.WebhookConfig
	var headersJSON []byte
	if err := row.Scan(&cfg.ID, &cfg.TenantID, &cfg.URL, &cfg.Method, &headersJSON, &cfg.Body, &cfg.Enabled, &cfg.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query webhook config: %w", err)
	}
	if err := unmarshalHeaders(headersJSON, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateWebhookConfig - 신규 웹훅 설정 저장
func (db *Postgres) CreateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) (int, error) {
	headersJSON, err := json.Marshal(cfg.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal headers: %w", err)
	}

	var id int
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO tenant_webhooks (tenant_id, url, method, headers, body, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`, cfg.TenantID, cfg.URL, cfg.Method, headersJSON, cfg.Body, cfg.Enabled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert webhook config: %w", err)
	}
	return id, nil
}

// UpdateWebhookConfig - tenant 범위 수정, 대상이 없으면 ErrNotFound
func (db *Postgres) UpdateWebhookConfig(ctx context.Context, cfg model.WebhookConfig) error {
	headersJSON, err := json.Marshal(cfg.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE tenant_webhooks
		SET url = $1, method = $2, headers = $3, body = $4, enabled = $5, updated_at = NOW()
		WHERE tenant_id = $6 AND id = $7`,
		cfg.URL, cfg.Method, headersJSON, cfg.Body, cfg.Enabled, cfg.TenantID, cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWebhookConfig - tenant 범위 삭제, 대상이 없으면 ErrNotFound
func (db *Postgres) DeleteWebhookConfig(ctx context.Context, tenantID string, id int) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tenant_webhooks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func unmarshalHeaders(data []byte, cfg *model.WebhookConfig) error {
	cfg.Headers = []model.WebhookHeader{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &cfg.Headers); err != nil {
		return fmt.Errorf("failed to unmarshal headers: %w", err)
	}
	return nil
}
