package service

import (
	"context"
	"strings"
	"time"

	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

// inboxStore - 알림함/preference persistence
type inboxStore interface {
	ListNotifications(ctx context.Context, userID, tenantID string, unreadOnly bool, page model.Pagination) ([]model.Notification, int, error)
	MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) (bool, error)
	MarkNotificationClicked(ctx context.Context, id, userID string, at time.Time) (bool, error)
	MarkEmailSent(ctx context.Context, id string, at time.Time) (bool, error)
	GetNotificationPreferences(ctx context.Context, tenantID string, userIDs []string) ([]model.NotificationPreference, error)
	UpsertNotificationPreference(ctx context.Context, pref model.NotificationPreference) (*model.NotificationPreference, error)
}

// NotificationService - 사용자 알림함과 수신 정책 관리
type NotificationService struct {
	store  inboxStore
	logger *zap.Logger
	now    func() time.Time
}

func NewNotificationService(store inboxStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationService) ListNotifications(ctx context.Context, userID, tenantID string, unreadOnly bool, page model.Pagination) (*model.NotificationList, error) {
	items, total, err := s.store.ListNotifications(ctx, userID, tenantID, unreadOnly, page.Normalize())
	if err != nil {
		return nil, &StoreError{Op: "list_notifications", Err: err}
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &model.NotificationList{Items: items, Total: total}, nil
}

// MarkRead - 본인 알림만 처리, 없으면 ErrNotFound
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.store.MarkNotificationRead(ctx, id, userID, s.now())
	if err != nil {
		return &StoreError{Op: "mark_notification_read", Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkClicked - 클릭 시 읽음 처리도 함께
func (s *NotificationService) MarkClicked(ctx context.Context, id, userID string) error {
	ok, err := s.store.MarkNotificationClicked(ctx, id, userID, s.now())
	if err != nil {
		return &StoreError{Op: "mark_notification_clicked", Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkEmailSent - mail worker 발송 완료 보고
func (s *NotificationService) MarkEmailSent(ctx context.Context, id string) error {
	ok, err := s.store.MarkEmailSent(ctx, id, s.now())
	if err != nil {
		return &StoreError{Op: "mark_email_sent", Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.Debug("Email notification delivered", zap.String("notification_id", id))
	return nil
}

// GetPreference - row가 없으면 기본 정책 반환
func (s *NotificationService) GetPreference(ctx context.Context, userID, tenantID string) (*model.NotificationPreference, error) {
	prefs, err := s.store.GetNotificationPreferences(ctx, tenantID, []string{userID})
	if err != nil {
		return nil, &StoreError{Op: "get_notification_preference", Err: err}
	}
	for _, p := range prefs {
		if p.UserID == userID {
			return &p, nil
		}
	}
	pref := model.DefaultNotificationPreference(userID, tenantID)
	return &pref, nil
}

// UpdatePreference - 요청에 포함된 필드만 덮어쓰기
// quiet hours 값이 빈 문자열이면 해제
func (s *NotificationService) UpdatePreference(ctx context.Context, userID, tenantID string, req model.UpdatePreferenceRequest) (*model.NotificationPreference, error) {
	if err := validatePreference(req); err != nil {
		return nil, err
	}

	current, err := s.GetPreference(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	next := *current
	if req.ChannelInApp != nil {
		next.ChannelInApp = *req.ChannelInApp
	}
	if req.ChannelEmail != nil {
		next.ChannelEmail = *req.ChannelEmail
	}
	if req.MinSeverity != nil {
		next.MinSeverity = *req.MinSeverity
	}
	if req.TypesWhitelist != nil {
		next.TypesWhitelist = req.TypesWhitelist
	}
	if req.TypesBlacklist != nil {
		next.TypesBlacklist = req.TypesBlacklist
	}
	if req.QuietHoursStart != nil {
		next.QuietHoursStart = normalizeRef(req.QuietHoursStart)
	}
	if req.QuietHoursEnd != nil {
		next.QuietHoursEnd = normalizeRef(req.QuietHoursEnd)
	}
	if req.QuietHoursTimezone != nil {
		next.QuietHoursTimezone = normalizeRef(req.QuietHoursTimezone)
	}
	if (next.QuietHoursStart == nil) != (next.QuietHoursEnd == nil) {
		return nil, validationError("quiet_hours", "start and end must be set together")
	}
	next.UpdatedAt = s.now()

	saved, err := s.store.UpsertNotificationPreference(ctx, next)
	if err != nil {
		return nil, &StoreError{Op: "upsert_notification_preference", Err: err}
	}
	s.logger.Info("Notification preference updated",
		zap.String("user_id", userID),
		zap.String("tenant_id", tenantID),
	)
	return saved, nil
}

func validatePreference(req model.UpdatePreferenceRequest) error {
	if req.MinSeverity != nil && !req.MinSeverity.Valid() {
		return validationError("min_severity", "unknown severity "+string(*req.MinSeverity))
	}
	for _, t := range req.TypesWhitelist {
		if !t.Valid() {
			return validationError("types_whitelist", "unknown alert type "+string(t))
		}
	}
	for _, t := range req.TypesBlacklist {
		if !t.Valid() {
			return validationError("types_blacklist", "unknown alert type "+string(t))
		}
	}
	if req.QuietHoursStart != nil && strings.TrimSpace(*req.QuietHoursStart) != "" && !ValidClock(*req.QuietHoursStart) {
		return validationError("quiet_hours_start", "expected HH:MM")
	}
	if req.QuietHoursEnd != nil && strings.TrimSpace(*req.QuietHoursEnd) != "" && !ValidClock(*req.QuietHoursEnd) {
		return validationError("quiet_hours_end", "expected HH:MM")
	}
	if req.QuietHoursTimezone != nil && strings.TrimSpace(*req.QuietHoursTimezone) != "" && !ValidTimezone(*req.QuietHoursTimezone) {
		return validationError("quiet_hours_timezone", "unknown timezone "+*req.QuietHoursTimezone)
	}
	return nil
}
