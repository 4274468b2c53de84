package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/screenops/alertcore/internal/model"
)

const notificationColumns = `
	id, user_id, tenant_id, alert_id, channel, title, message, severity, alert_type,
	action_url, read_at, clicked_at, email_sent_at, created_at`

const preferenceColumns = `
	user_id, tenant_id, channel_in_app, channel_email, min_severity,
	types_whitelist, types_blacklist,
	quiet_hours_start, quiet_hours_end, quiet_hours_timezone, updated_at`

// EnsureNotificationSchema - notifications, notification_preferences 테이블 생성
func (db *Postgres) EnsureNotificationSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			alert_id TEXT NOT NULL REFERENCES alerts(id),
			channel TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			action_url TEXT NOT NULL DEFAULT '',
			read_at TIMESTAMPTZ,
			clicked_at TIMESTAMPTZ,
			email_sent_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications(user_id, tenant_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS notifications_email_pending_idx ON notifications(created_at) WHERE channel = 'email' AND email_sent_at IS NULL`,
		`
		CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			channel_in_app BOOLEAN NOT NULL DEFAULT TRUE,
			channel_email BOOLEAN NOT NULL DEFAULT TRUE,
			min_severity TEXT NOT NULL DEFAULT 'warning',
			types_whitelist TEXT[] NOT NULL DEFAULT '{}',
			types_blacklist TEXT[] NOT NULL DEFAULT '{}',
			quiet_hours_start TEXT,
			quiet_hours_end TEXT,
			quiet_hours_timezone TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, tenant_id)
		)
		`,
	}
	return db.execAll(ctx, queries)
}

// GetNotificationPreferences - tenant 내 userIDs의 preference row
// row가 없는 사용자는 결과에서 빠짐 (호출자가 기본값 적용)
func (db *Postgres) GetNotificationPreferences(ctx context.Context, tenantID string, userIDs []string) ([]model.NotificationPreference, error) {
	if len(userIDs) == 0 {
		return []model.NotificationPreference{}, nil
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+preferenceColumns+`
		FROM notification_preferences
		WHERE tenant_id = $1 AND user_id = ANY($2)`, tenantID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification preferences: %w", err)
	}
	defer rows.Close()

	prefs := []model.NotificationPreference{}
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification preference: %w", err)
		}
		prefs = append(prefs, *pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification preferences: %w", err)
	}
	return prefs, nil
}

// UpsertNotificationPreference - (user_id, tenant_id) 기준 저장
func (db *Postgres) UpsertNotificationPreference(ctx context.Context, pref model.NotificationPreference) (*model.NotificationPreference, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO notification_preferences (
			user_id, tenant_id, channel_in_app, channel_email, min_severity,
			types_whitelist, types_blacklist,
			quiet_hours_start, quiet_hours_end, quiet_hours_timezone, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET
			channel_in_app = EXCLUDED.channel_in_app,
			channel_email = EXCLUDED.channel_email,
			min_severity = EXCLUDED.min_severity,
			types_whitelist = EXCLUDED.types_whitelist,
			types_blacklist = EXCLUDED.types_blacklist,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			quiet_hours_timezone = EXCLUDED.quiet_hours_timezone,
			updated_at = NOW()
		RETURNING `+preferenceColumns,
		pref.UserID, pref.TenantID, pref.ChannelInApp, pref.ChannelEmail, string(pref.MinSeverity),
		toStrings(pref.TypesWhitelist), toStrings(pref.TypesBlacklist),
		pref.QuietHoursStart, pref.QuietHoursEnd, pref.QuietHoursTimezone,
	)
	saved, err := scanPreference(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert notification preference: %w", err)
	}
	return saved, nil
}

// InsertNotification - 수신자/채널 단위 알림 기록 저장
func (db *Postgres) InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, tenant_id, alert_id, channel, title, message,
			severity, alert_type, action_url, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.TenantID, n.AlertID, string(n.Channel), n.Title, n.Message,
		string(n.Severity), string(n.AlertType), n.ActionURL, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return &n, nil
}

// ListNotifications - 사용자 알림함 (최신순)
func (db *Postgres) ListNotifications(ctx context.Context, userID, tenantID string, unreadOnly bool, page model.Pagination) ([]model.Notification, int, error) {
	page = page.Normalize()

	where := `WHERE user_id = $1 AND tenant_id = $2 AND channel = 'in_app' AND (NOT $3 OR read_at IS NULL)`
	args := []any{userID, tenantID, unreadOnly}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		`+where+`
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5`, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	list := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read notifications: %w", err)
	}
	return list, total, nil
}

// MarkNotificationRead - 본인 알림만 처리, 이미 읽은 경우 read_at 유지
func (db *Postgres) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkNotificationClicked - 클릭은 읽음도 함께 기록
func (db *Postgres) MarkNotificationClicked(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE notifications
		SET clicked_at = COALESCE(clicked_at, $3),
			read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification clicked: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkEmailSent - mail worker 발송 완료 기록
func (db *Postgres) MarkEmailSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE notifications
		SET email_sent_at = $2
		WHERE id = $1 AND channel = 'email' AND email_sent_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark email sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	if err := row.Scan(
		&n.ID, &n.UserID, &n.TenantID, &n.AlertID, &n.Channel, &n.Title, &n.Message,
		&n.Severity, &n.AlertType, &n.ActionURL,
		&n.ReadAt, &n.ClickedAt, &n.EmailSentAt, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanPreference(row pgx.Row) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	var whitelist, blacklist []string
	if err := row.Scan(
		&p.UserID, &p.TenantID, &p.ChannelInApp, &p.ChannelEmail, &p.MinSeverity,
		&whitelist, &blacklist,
		&p.QuietHoursStart, &p.QuietHoursEnd, &p.QuietHoursTimezone, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.TypesWhitelist = toAlertTypes(whitelist)
	p.TypesBlacklist = toAlertTypes(blacklist)
	return &p, nil
}

func toAlertTypes(in []string) []model.AlertType {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.AlertType, len(in))
	for i, v := range in {
		out[i] = model.AlertType(v)
	}
	return out
}
