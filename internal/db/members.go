package db

import (
	"context"
	"fmt"

	"github.com/screenops/alertcore/internal/model"
)

// EnsureDirectorySchema - users/tenant_members 및 tenant 참조 테이블 생성
// 다른 서비스가 관리하는 테이블이므로 없을 때만 최소 컬럼으로 생성
func (db *Postgres) EnsureDirectorySchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS tenant_members (
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL DEFAULT 'viewer',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, user_id)
		)
		`,
	}
	for _, table := range tenantRefTables {
		queries = append(queries, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL
		)
		`, table))
	}
	return db.execAll(ctx, queries)
}

// tenant 추론 순서 (rate limit source key 우선순위와 동일하게 device 먼저)
var tenantRefTables = []string{"devices", "data_sources", "scenes", "schedules"}

// ResolveTenantID - device/data source/scene/schedule 중 먼저 찾은 row의 tenant_id
// 찾지 못하면 ("", nil)
func (db *Postgres) ResolveTenantID(ctx context.Context, refs model.TenantRefs) (string, error) {
	ids := []*string{refs.DeviceID, refs.DataSourceID, refs.SceneID, refs.ScheduleID}
	for i, id := range ids {
		if id == nil || *id == "" {
			continue
		}
		var tenantID string
		err := db.Pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT tenant_id FROM %s WHERE id = $1`, tenantRefTables[i]), *id,
		).Scan(&tenantID)
		if err != nil {
			if IsNoRows(err) {
				continue
			}
			return "", fmt.Errorf("failed to resolve tenant from %s: %w", tenantRefTables[i], err)
		}
		return tenantID, nil
	}
	return "", nil
}

// ListTenantMembers - tenant 구성원 중 roles에 해당하는 사용자
func (db *Postgres) ListTenantMembers(ctx context.Context, tenantID string, roles []string) ([]model.TenantMember, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT u.id, m.tenant_id, u.email, u.display_name, m.role
		FROM tenant_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.role = ANY($2)
		ORDER BY u.id`, tenantID, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant members: %w", err)
	}
	defer rows.Close()

	var members []model.TenantMember
	for rows.Next() {
		var m model.TenantMember
		if err := rows.Scan(&m.UserID, &m.TenantID, &m.Email, &m.DisplayName, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan tenant member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tenant members: %w", err)
	}
	return members, nil
}
