// Notification Dispatcher
// Alert 이벤트를 tenant 구성원별 알림 기록으로 펼치는 로직
//
// 수신자 결정:
//  1. tenant 구성원 중 elevated role(owner/admin/operator) 조회
//  2. 구성원별 preference 조회 (row가 없으면 기본 정책)
//  3. min severity, type whitelist/blacklist, quiet hours로 필터링
//
// 채널:
//   - in_app: 새 Alert, coalesce, resolved 모두 기록
//   - email: 새 Alert일 때만 기록 후 mail queue에 job 적재 (발송은 외부 worker)
//
// 한 수신자의 실패는 다른 수신자 전송을 막지 않음, 실패는 errors.Join으로 모아서 반환

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/model"
	tmpl "github.com/screenops/alertcore/internal/template"
	"go.uber.org/zap"
)

// notificationStore - 수신자/preference 조회 및 알림 기록 저장
type notificationStore interface {
	ListTenantMembers(ctx context.Context, tenantID string, roles []string) ([]model.TenantMember, error)
	GetNotificationPreferences(ctx context.Context, tenantID string, userIDs []string) ([]model.NotificationPreference, error)
	InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
}

// mailQueue - email job 적재 (client.MailQueue)
type mailQueue interface {
	Enqueue(ctx context.Context, job model.EmailJob) error
}

// opsMirror - 운영 채널 mirror (client.SlackClient, WebhookDeliveryService)
type opsMirror interface {
	SendAlert(ctx context.Context, alert model.Alert, actionURL string) error
	SendResolved(ctx context.Context, alert model.Alert, notes *string) error
}

type NotificationDispatcher struct {
	store   notificationStore
	queue   mailQueue
	mirrors []opsMirror
	cfg     config.NotifyConfig
	metrics *metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

type DispatcherOption func(*NotificationDispatcher)

// WithMailQueue - nil이면 email row만 기록
func WithMailQueue(queue mailQueue) DispatcherOption {
	return func(d *NotificationDispatcher) { d.queue = queue }
}

// WithOpsMirror - critical Alert를 운영 채널에도 전송, 여러 번 지정하면 모두 전송
func WithOpsMirror(mirror opsMirror) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if mirror != nil {
			d.mirrors = append(d.mirrors, mirror)
		}
	}
}

func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *NotificationDispatcher) { d.now = now }
}

func NewNotificationDispatcher(store notificationStore, cfg config.NotifyConfig, recorder *metrics.Recorder, logger *zap.Logger, opts ...DispatcherOption) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.ElevatedRoles) == 0 {
		cfg.ElevatedRoles = []string{model.RoleOwner, model.RoleAdmin, model.RoleOperator}
	}
	cfg.ActionBaseURL = strings.TrimRight(cfg.ActionBaseURL, "/")
	d := &NotificationDispatcher{
		store:   store,
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// recipient - 구성원 + 적용할 preference
type recipient struct {
	member model.TenantMember
	pref   model.NotificationPreference
}

// DispatchAlertNotifications - 새 Alert 또는 coalesce 이벤트 알림
// isNew가 false면 email은 만들지 않음
func (d *NotificationDispatcher) DispatchAlertNotifications(ctx context.Context, alert model.Alert, isNew bool) (model.DispatchResult, error) {
	defer d.metrics.Track(metrics.OpDispatch)()

	var result model.DispatchResult
	recipients, err := d.recipients(ctx, alert)
	if err != nil {
		return result, err
	}

	now := d.now()
	actionURL := d.actionURL(alert.ID)
	data := tmpl.AlertDataFromModel(alert, actionURL)
	title, message := inAppText(alert, isNew)

	var errs []error
	for _, r := range recipients {
		if !d.eligible(r, alert, now) {
			continue
		}

		if r.pref.ChannelInApp {
			if _, err := d.store.InsertNotification(ctx, model.Notification{
				UserID:    r.member.UserID,
				TenantID:  alert.TenantID,
				AlertID:   alert.ID,
				Channel:   model.ChannelInApp,
				Title:     title,
				Message:   message,
				Severity:  alert.Severity,
				AlertType: alert.Type,
				ActionURL: actionURL,
				CreatedAt: now,
			}); err != nil {
				errs = append(errs, fmt.Errorf("in-app notification for user %s: %w", r.member.UserID, err))
			} else {
				result.InAppCount++
				d.metrics.Inc(metrics.CounterNotificationsInApp)
			}
		}

		if r.pref.ChannelEmail && isNew {
			if err := d.dispatchEmail(ctx, r.member, alert, &data, actionURL, now); err != nil {
				errs = append(errs, err)
			} else {
				result.EmailCount++
				d.metrics.Inc(metrics.CounterNotificationsEmail)
			}
		}
	}

	if isNew && alert.Severity == model.SeverityCritical {
		d.mirrorAlert(ctx, alert, actionURL)
	}

	return result, errors.Join(errs...)
}

// AnnounceEscalation - coalesce 중 critical로 승격된 Alert를 ops mirror에 게시
// 생성 시점에 critical이 아니었던 Alert도 해제 시 같은 thread로 이어지도록 함
func (d *NotificationDispatcher) AnnounceEscalation(ctx context.Context, alert model.Alert) error {
	if alert.Severity != model.SeverityCritical {
		return nil
	}
	d.mirrorAlert(ctx, alert, d.actionURL(alert.ID))
	return nil
}

func (d *NotificationDispatcher) mirrorAlert(ctx context.Context, alert model.Alert, actionURL string) {
	for _, mirror := range d.mirrors {
		if err := mirror.SendAlert(ctx, alert, actionURL); err != nil {
			d.logger.Warn("ops mirror send failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
}

// DispatchResolvedNotification - 해제 알림, info Alert는 생략하고 in-app만 기록
func (d *NotificationDispatcher) DispatchResolvedNotification(ctx context.Context, alert model.Alert, notes *string) (model.DispatchResult, error) {
	defer d.metrics.Track(metrics.OpDispatchResolved)()

	var result model.DispatchResult
	if alert.Severity == model.SeverityInfo {
		return result, nil
	}

	recipients, err := d.recipients(ctx, alert)
	if err != nil {
		return result, err
	}

	now := d.now()
	actionURL := d.actionURL(alert.ID)
	message := "Condition cleared"
	if notes != nil && strings.TrimSpace(*notes) != "" {
		message = strings.TrimSpace(*notes)
	}

	var errs []error
	for _, r := range recipients {
		if !d.eligible(r, alert, now) || !r.pref.ChannelInApp {
			continue
		}
		if _, err := d.store.InsertNotification(ctx, model.Notification{
			UserID:    r.member.UserID,
			TenantID:  alert.TenantID,
			AlertID:   alert.ID,
			Channel:   model.ChannelInApp,
			Title:     "Resolved: " + alert.Title,
			Message:   message,
			Severity:  alert.Severity,
			AlertType: alert.Type,
			ActionURL: actionURL,
			CreatedAt: now,
		}); err != nil {
			errs = append(errs, fmt.Errorf("resolved notification for user %s: %w", r.member.UserID, err))
			continue
		}
		result.InAppCount++
		d.metrics.Inc(metrics.CounterNotificationsInApp)
	}

	if alert.Severity == model.SeverityCritical {
		for _, mirror := range d.mirrors {
			if err := mirror.SendResolved(ctx, alert, notes); err != nil {
				d.logger.Warn("ops mirror resolve failed", zap.String("alert_id", alert.ID), zap.Error(err))
			}
		}
	}

	return result, errors.Join(errs...)
}

// recipients - elevated role 구성원과 preference 조회
func (d *NotificationDispatcher) recipients(ctx context.Context, alert model.Alert) ([]recipient, error) {
	members, err := d.store.ListTenantMembers(ctx, alert.TenantID, d.cfg.ElevatedRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant members: %w", err)
	}
	if len(members) == 0 {
		d.logger.Debug("no recipients for alert",
			zap.String("alert_id", alert.ID), zap.String("tenant_id", alert.TenantID))
		return nil, nil
	}

	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	prefs, err := d.store.GetNotificationPreferences(ctx, alert.TenantID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification preferences: %w", err)
	}
	byUser := make(map[string]model.NotificationPreference, len(prefs))
	for _, p := range prefs {
		byUser[p.UserID] = p
	}

	out := make([]recipient, 0, len(members))
	for _, m := range members {
		pref, ok := byUser[m.UserID]
		if !ok {
			pref = model.DefaultNotificationPreference(m.UserID, alert.TenantID)
		}
		out = append(out, recipient{member: m, pref: pref})
	}
	return out, nil
}

// eligible - preference 필터 통과 여부, 걸러진 경우 suppressed 카운터 증가
func (d *NotificationDispatcher) eligible(r recipient, alert model.Alert, now time.Time) bool {
	reason := suppressReason(r.pref, alert, now)
	if reason == "" {
		return true
	}
	d.metrics.Inc(metrics.CounterNotificationsMuted)
	d.logger.Debug("notification suppressed",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", r.member.UserID),
		zap.String("reason", reason),
	)
	return false
}

// suppressReason - 걸러지는 이유, 통과하면 빈 문자열
func suppressReason(pref model.NotificationPreference, alert model.Alert, now time.Time) string {
	minSeverity := pref.MinSeverity
	if !minSeverity.Valid() {
		minSeverity = model.SeverityWarning
	}
	if !alert.Severity.AtLeast(minSeverity) {
		return "below_min_severity"
	}
	if len(pref.TypesWhitelist) > 0 {
		if !containsType(pref.TypesWhitelist, alert.Type) {
			return "type_not_whitelisted"
		}
	} else if containsType(pref.TypesBlacklist, alert.Type) {
		return "type_blacklisted"
	}
	if InQuietHours(pref.QuietHoursStart, pref.QuietHoursEnd, pref.QuietHoursTimezone, now) {
		return "quiet_hours"
	}
	return ""
}

// dispatchEmail - email row 기록 후 queue 적재
// queue 실패는 row를 남겨둔 채 로그만 기록 (worker가 email_sent_at IS NULL로 재수집)
func (d *NotificationDispatcher) dispatchEmail(ctx context.Context, member model.TenantMember, alert model.Alert, data *tmpl.AlertData, actionURL string, now time.Time) error {
	if strings.TrimSpace(member.Email) == "" {
		return fmt.Errorf("email notification for user %s: no email address", member.UserID)
	}

	subject := tmpl.Render(d.cfg.EmailSubjectTemplate, data)
	if strings.TrimSpace(subject) == "" {
		subject = fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	}
	body := tmpl.Render(d.cfg.EmailBodyTemplate, data)

	saved, err := d.store.InsertNotification(ctx, model.Notification{
		UserID:    member.UserID,
		TenantID:  alert.TenantID,
		AlertID:   alert.ID,
		Channel:   model.ChannelEmail,
		Title:     subject,
		Message:   body,
		Severity:  alert.Severity,
		AlertType: alert.Type,
		ActionURL: actionURL,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("email notification for user %s: %w", member.UserID, err)
	}

	if d.queue == nil {
		return nil
	}
	if err := d.queue.Enqueue(ctx, model.EmailJob{
		NotificationID: saved.ID,
		AlertID:        alert.ID,
		TenantID:       alert.TenantID,
		UserID:         member.UserID,
		To:             member.Email,
		Subject:        subject,
		Body:           body,
		Severity:       alert.Severity,
		CreatedAt:      now,
	}); err != nil {
		d.metrics.Inc(metrics.CounterMailQueueFailures)
		d.logger.Warn("failed to enqueue email job",
			zap.String("notification_id", saved.ID),
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (d *NotificationDispatcher) actionURL(alertID string) string {
	if d.cfg.ActionBaseURL == "" {
		return "/alerts/" + alertID
	}
	return d.cfg.ActionBaseURL + "/alerts/" + alertID
}

// inAppText - 알림함에 표시할 제목/본문
func inAppText(alert model.Alert, isNew bool) (string, string) {
	message := ""
	if alert.Message != nil {
		message = strings.TrimSpace(*alert.Message)
	}
	if message == "" {
		message = tmpl.TypeLabel(string(alert.Type))
	}
	if isNew {
		return alert.Title, message
	}
	return fmt.Sprintf("%s (x%d)", alert.Title, alert.Occurrences), message
}

func containsType(types []model.AlertType, t model.AlertType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
