package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/screenops/alertcore/internal/model"
)

const alertColumns = `
	id, tenant_id, type, severity, status,
	device_id, scene_id, schedule_id, data_source_id,
	title, message, meta, occurrences,
	created_at, last_occurred_at, updated_at,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at, resolution_notes`

// EnsureAlertSchema - alerts 테이블 생성
//
// alerts_open_dedup_idx: dedup key당 open Alert 1개 제약.
// NULL 키는 ''로 정규화해서 NULL끼리 같은 값으로 취급
func (db *Postgres) EnsureAlertSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL DEFAULT 'warning',
			status TEXT NOT NULL DEFAULT 'open',
			device_id TEXT,
			scene_id TEXT,
			schedule_id TEXT,
			data_source_id TEXT,
			title TEXT NOT NULL DEFAULT '',
			message TEXT,
			meta JSONB NOT NULL DEFAULT '{}',
			occurrences INTEGER NOT NULL DEFAULT 1 CHECK (occurrences >= 1),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			acknowledged_by TEXT,
			acknowledged_at TIMESTAMPTZ,
			resolved_by TEXT,
			resolved_at TIMESTAMPTZ,
			resolution_notes TEXT
		)
		`,
		`
		CREATE UNIQUE INDEX IF NOT EXISTS alerts_open_dedup_idx ON alerts (
			tenant_id, type,
			COALESCE(device_id, ''), COALESCE(scene_id, ''),
			COALESCE(schedule_id, ''), COALESCE(data_source_id, '')
		) WHERE status = 'open'
		`,
		`CREATE INDEX IF NOT EXISTS alerts_tenant_status_idx ON alerts(tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS alerts_last_occurred_at_idx ON alerts(last_occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS alerts_device_id_idx ON alerts(device_id) WHERE device_id IS NOT NULL`,
	}
	return db.execAll(ctx, queries)
}

// FindOpenAlert - dedup key가 정확히 일치하는 open Alert 조회
// 없으면 (nil, nil)
func (db *Postgres) FindOpenAlert(ctx context.Context, key model.DedupKey) (*model.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE tenant_id = $1
		  AND type = $2
		  AND status = 'open'
		  AND device_id IS NOT DISTINCT FROM $3
		  AND scene_id IS NOT DISTINCT FROM $4
		  AND schedule_id IS NOT DISTINCT FROM $5
		  AND data_source_id IS NOT DISTINCT FROM $6
		LIMIT 1`

	alert, err := scanAlert(db.Pool.QueryRow(ctx, query,
		key.TenantID, string(key.Type),
		key.DeviceID, key.SceneID, key.ScheduleID, key.DataSourceID,
	))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}
	return alert, nil
}

// InsertAlert - 신규 open Alert 저장
// 같은 dedup key의 open Alert가 이미 있으면 ErrDuplicateOpenAlert
func (db *Postgres) InsertAlert(ctx context.Context, alert model.Alert) (*model.Alert, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	metaJSON, err := marshalMeta(alert.Meta)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO alerts (
			id, tenant_id, type, severity, status,
			device_id, scene_id, schedule_id, data_source_id,
			title, message, meta, occurrences,
			created_at, last_occurred_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 'open', $5, $6, $7, $8, $9, $10, $11, 1, $12, $12, $12)
		ON CONFLICT DO NOTHING
		RETURNING ` + alertColumns

	inserted, err := scanAlert(db.Pool.QueryRow(ctx, query,
		alert.ID, alert.TenantID, string(alert.Type), string(alert.Severity),
		alert.DeviceID, alert.SceneID, alert.ScheduleID, alert.DataSourceID,
		alert.Title, alert.Message, metaJSON, alert.CreatedAt,
	))
	if err != nil {
		if IsNoRows(err) || isUniqueViolation(err) {
			return nil, ErrDuplicateOpenAlert
		}
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return inserted, nil
}

// UpdateAlert - coalesce 결과 저장
// prevOccurrences가 현재 값과 다르거나 더 이상 open이 아니면 ErrConcurrentUpdate
func (db *Postgres) UpdateAlert(ctx context.Context, alert model.Alert, prevOccurrences int) (*model.Alert, error) {
	metaJSON, err := marshalMeta(alert.Meta)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE alerts
		SET severity = $2,
			message = COALESCE($3, message),
			meta = $4,
			occurrences = $5,
			last_occurred_at = $6,
			updated_at = $6
		WHERE id = $1 AND occurrences = $7 AND status = 'open'
		RETURNING ` + alertColumns

	updated, err := scanAlert(db.Pool.QueryRow(ctx, query,
		alert.ID, string(alert.Severity), alert.Message, metaJSON,
		alert.Occurrences, alert.LastOccurredAt, prevOccurrences,
	))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return updated, nil
}

// Transition - 단건 상태 전이 조건
type Transition struct {
	AlertID string
	// 비어있으면 tenant 제한 없음
	TenantID string
	From     []model.AlertStatus
	To       model.AlertStatus
	Actor    string
	Notes    *string
	At       time.Time
}

// TransitionAlert - 현재 상태가 From 중 하나일 때만 To로 전이
// 조건 불일치(이미 처리됨, 없음)는 (nil, false, nil)
func (db *Postgres) TransitionAlert(ctx context.Context, t Transition) (*model.Alert, bool, error) {
	var set string
	args := []any{t.AlertID, toStrings(t.From), string(t.To), t.Actor, t.At, t.TenantID}
	switch t.To {
	case model.AlertStatusAcknowledged:
		set = `acknowledged_by = $4, acknowledged_at = $5`
	case model.AlertStatusResolved:
		set = `resolved_by = $4, resolved_at = $5, resolution_notes = $7`
		args = append(args, t.Notes)
	default:
		return nil, false, fmt.Errorf("unsupported transition target: %s", t.To)
	}

	query := `
		UPDATE alerts
		SET status = $3, updated_at = $5, ` + set + `
		WHERE id = $1 AND status = ANY($2) AND ($6::text = '' OR tenant_id = $6)
		RETURNING ` + alertColumns

	alert, err := scanAlert(db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to transition alert %s: %w", t.AlertID, err)
	}
	return alert, true, nil
}

// AutoResolveAlerts - 필터에 맞는 open/acknowledged Alert 일괄 resolve
// nil 키는 와일드카드
func (db *Postgres) AutoResolveAlerts(ctx context.Context, filter model.AutoResolveFilter, actor string, notes *string, at time.Time) ([]model.Alert, error) {
	query := `
		UPDATE alerts
		SET status = 'resolved',
			resolved_by = $2,
			resolved_at = $3,
			resolution_notes = $4,
			updated_at = $3
		WHERE type = $1
		  AND status IN ('open', 'acknowledged')
		  AND ($5::text IS NULL OR tenant_id = $5)
		  AND ($6::text IS NULL OR device_id = $6)
		  AND ($7::text IS NULL OR scene_id = $7)
		  AND ($8::text IS NULL OR schedule_id = $8)
		  AND ($9::text IS NULL OR data_source_id = $9)
		RETURNING ` + alertColumns

	rows, err := db.Pool.Query(ctx, query,
		string(filter.Type), actor, at, notes,
		filter.TenantID, filter.DeviceID, filter.SceneID, filter.ScheduleID, filter.DataSourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-resolve alerts: %w", err)
	}
	return collectAlerts(rows)
}

// GetAlertByID - 단건 조회, tenantID가 비어있으면 tenant 제한 없음
func (db *Postgres) GetAlertByID(ctx context.Context, id, tenantID string) (*model.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE id = $1 AND ($2::text = '' OR tenant_id = $2)`

	alert, err := scanAlert(db.Pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

// ListAlerts - 필터/페이지네이션 목록 + 전체 개수
func (db *Postgres) ListAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) ([]model.Alert, int, error) {
	page = page.Normalize()
	where, args := buildAlertWhere(filter)

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY last_occurred_at DESC, id
		LIMIT $%d OFFSET $%d`, alertColumns, where, len(args)+1, len(args)+2)

	rows, err := db.Pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	list, err := collectAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// GetAlertSummary - (status, severity) 그룹별 개수 집계
func (db *Postgres) GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT status, severity, COUNT(*)
		FROM alerts
		WHERE ($1::text = '' OR tenant_id = $1)
		GROUP BY status, severity`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert summary: %w", err)
	}
	defer rows.Close()

	summary := model.NewAlertSummary()
	for rows.Next() {
		var status, severity string
		var count int
		if err := rows.Scan(&status, &severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert summary: %w", err)
		}
		summary.Add(model.AlertStatus(status), model.Severity(severity), count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert summary: %w", err)
	}
	return summary, nil
}

func buildAlertWhere(f model.AlertFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", toStrings(f.Statuses))
	}
	if len(f.Severities) > 0 {
		add("severity = ANY($%d)", toStrings(f.Severities))
	}
	if len(f.Types) > 0 {
		add("type = ANY($%d)", toStrings(f.Types))
	}
	if f.DeviceID != "" {
		add("device_id = $%d", f.DeviceID)
	}
	if f.SceneID != "" {
		add("scene_id = $%d", f.SceneID)
	}
	if f.ScheduleID != "" {
		add("schedule_id = $%d", f.ScheduleID)
	}
	if f.DataSourceID != "" {
		add("data_source_id = $%d", f.DataSourceID)
	}
	if f.Since != nil {
		add("last_occurred_at >= $%d", *f.Since)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanAlert(row pgx.Row) (*model.Alert, error) {
	var a model.Alert
	var metaJSON []byte
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.Type, &a.Severity, &a.Status,
		&a.DeviceID, &a.SceneID, &a.ScheduleID, &a.DataSourceID,
		&a.Title, &a.Message, &metaJSON, &a.Occurrences,
		&a.CreatedAt, &a.LastOccurredAt, &a.UpdatedAt,
		&a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedBy, &a.ResolvedAt, &a.ResolutionNotes,
	); err != nil {
		return nil, err
	}
	a.Meta = map[string]any{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &a.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	return &a, nil
}

func collectAlerts(rows pgx.Rows) ([]model.Alert, error) {
	defer rows.Close()

	var list []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	if list == nil {
		list = []model.Alert{}
	}
	return list, nil
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}
	return b, nil
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
