// Alert 처리 비즈니스 로직 정의
// monitor가 올린 알림을 중복 제거/escalation 후 저장하고 Notification Dispatcher로 전달
//
// RaiseAlert 처리 흐름:
//  1. type/severity/title 검증, tenant 확인 (없으면 device 등에서 추론)
//  2. rate limiter 허용 여부 확인 (카운트는 증가시키지 않음)
//  3. dedup key로 open Alert 조회
//  4. 있으면 coalesce: occurrences++, meta 병합, severity 재계산 후 저장, in-app 알림
//  5. 없고 rate limit 초과면 버림 (rateLimited=true)
//  6. 없으면 admission 기록 후 insert, in-app + email 알림
//     unique index 충돌(동시 insert)이면 3번부터 다시 시도해서 coalesce
//
// 알림 전송 실패는 로그/카운터로만 남기고 Alert 처리 결과에는 영향을 주지 않음

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/screenops/alertcore/internal/db"
	"github.com/screenops/alertcore/internal/escalation"
	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/model"
	"github.com/screenops/alertcore/internal/ratelimit"
	"go.uber.org/zap"
)

// SystemActor - 자동 해제 시 resolved_by 값
const SystemActor = "system"

// coalesce/insert 경합 시 재시도 횟수
const maxRaiseAttempts = 3

// alertStore - Alert persistence 인터페이스
type alertStore interface {
	ResolveTenantID(ctx context.Context, refs model.TenantRefs) (string, error)
	FindOpenAlert(ctx context.Context, key model.DedupKey) (*model.Alert, error)
	InsertAlert(ctx context.Context, alert model.Alert) (*model.Alert, error)
	UpdateAlert(ctx context.Context, alert model.Alert, prevOccurrences int) (*model.Alert, error)
	TransitionAlert(ctx context.Context, t db.Transition) (*model.Alert, bool, error)
	AutoResolveAlerts(ctx context.Context, filter model.AutoResolveFilter, actor string, notes *string, at time.Time) ([]model.Alert, error)
	GetAlertByID(ctx context.Context, id, tenantID string) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) ([]model.Alert, int, error)
	GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error)
}

// alertNotifier - Notification Dispatcher 인터페이스
type alertNotifier interface {
	DispatchAlertNotifications(ctx context.Context, alert model.Alert, isNew bool) (model.DispatchResult, error)
	DispatchResolvedNotification(ctx context.Context, alert model.Alert, notes *string) (model.DispatchResult, error)
	AnnounceEscalation(ctx context.Context, alert model.Alert) error
}

// AlertService - Alert Engine
type AlertService struct {
	store    alertStore
	notifier alertNotifier
	limiter  *ratelimit.Limiter
	rules    *escalation.Table
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

type AlertOption func(*AlertService)

func WithAlertClock(now func() time.Time) AlertOption {
	return func(s *AlertService) { s.now = now }
}

// NewAlertService - notifier가 nil이면 알림 전송 생략
func NewAlertService(store alertStore, notifier alertNotifier, limiter *ratelimit.Limiter, rules *escalation.Table, recorder *metrics.Recorder, logger *zap.Logger, opts ...AlertOption) *AlertService {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if rules == nil {
		rules = escalation.NewTable(escalation.DefaultRules())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AlertService{
		store:    store,
		notifier: notifier,
		limiter:  limiter,
		rules:    rules,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RaiseAlert - 알림 발생 (생성 또는 coalesce)
func (s *AlertService) RaiseAlert(ctx context.Context, req model.RaiseAlertRequest) (*model.RaiseAlertResult, error) {
	defer s.metrics.Track(metrics.OpRaiseAlert)()
	s.metrics.Inc(metrics.CounterAlertsRaised)

	if err := validateRaise(req); err != nil {
		s.metrics.Inc(metrics.CounterAlertsInvalid)
		return nil, err
	}

	tenantID, err := s.resolveTenant(ctx, req)
	if err != nil {
		return nil, s.storeFailure("resolve_tenant", err)
	}
	if tenantID == "" {
		s.metrics.Inc(metrics.CounterAlertsInvalid)
		return nil, validationError("tenant_id", "could not be resolved")
	}

	now := s.now()
	limitKey := ratelimit.Key(string(req.Type), sourceID(req, tenantID))
	admitted := false

	key := model.DedupKey{
		TenantID:     tenantID,
		Type:         req.Type,
		DeviceID:     normalizeRef(req.DeviceID),
		SceneID:      normalizeRef(req.SceneID),
		ScheduleID:   normalizeRef(req.ScheduleID),
		DataSourceID: normalizeRef(req.DataSourceID),
	}

	for attempt := 1; attempt <= maxRaiseAttempts; attempt++ {
		existing, err := s.store.FindOpenAlert(ctx, key)
		if err != nil {
			return nil, s.storeFailure("find_open_alert", err)
		}

		if existing != nil {
			updated, err := s.coalesce(ctx, *existing, req, now)
			if errors.Is(err, db.ErrConcurrentUpdate) {
				s.logger.Debug("coalesce lost update race, retrying",
					zap.String("alert_id", existing.ID), zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return nil, s.storeFailure("update_alert", err)
			}
			s.notify(ctx, *updated, false)
			if existing.Severity != model.SeverityCritical && updated.Severity == model.SeverityCritical {
				s.announceEscalation(ctx, *updated)
			}
			return &model.RaiseAlertResult{AlertID: updated.ID, IsNew: false}, nil
		}

		// lookup 이후에만 admission 확인, insert race로 재시도해도 한 번만 카운트
		if !admitted {
			decision := s.limiter.TryAdmit(limitKey)
			if decision.Limited {
				s.metrics.Inc(metrics.CounterAlertsRateLimited)
				s.logger.Info("alert rate limited",
					zap.String("tenant_id", tenantID),
					zap.String("type", string(req.Type)),
					zap.String("key", limitKey),
					zap.Duration("reset_in", decision.ResetIn),
				)
				return &model.RaiseAlertResult{RateLimited: true}, nil
			}
			admitted = true
		}

		created, err := s.store.InsertAlert(ctx, model.Alert{
			TenantID:       tenantID,
			Type:           req.Type,
			Severity:       req.Severity,
			Status:         model.AlertStatusOpen,
			DeviceID:       key.DeviceID,
			SceneID:        key.SceneID,
			ScheduleID:     key.ScheduleID,
			DataSourceID:   key.DataSourceID,
			Title:          strings.TrimSpace(req.Title),
			Message:        req.Message,
			Meta:           mergeMeta(nil, req.Meta),
			Occurrences:    1,
			CreatedAt:      now,
			LastOccurredAt: now,
		})
		if errors.Is(err, db.ErrDuplicateOpenAlert) {
			// 동시에 같은 key로 insert한 요청이 있음 -> 다시 조회해서 coalesce
			s.metrics.Inc(metrics.CounterDedupRaces)
			s.logger.Debug("open alert inserted concurrently, falling back to coalesce",
				zap.String("tenant_id", tenantID), zap.String("type", string(req.Type)))
			continue
		}
		if err != nil {
			return nil, s.storeFailure("insert_alert", err)
		}

		s.metrics.Inc(metrics.CounterAlertsCreated)
		s.logger.Info("alert created",
			zap.String("alert_id", created.ID),
			zap.String("tenant_id", created.TenantID),
			zap.String("type", string(created.Type)),
			zap.String("severity", string(created.Severity)),
		)
		s.notify(ctx, *created, true)
		return &model.RaiseAlertResult{AlertID: created.ID, IsNew: true}, nil
	}

	return nil, s.storeFailure("raise_alert", db.ErrConcurrentUpdate)
}

// coalesce - 기존 open Alert에 새 발생을 병합
func (s *AlertService) coalesce(ctx context.Context, existing model.Alert, req model.RaiseAlertRequest, now time.Time) (*model.Alert, error) {
	next := existing
	next.Occurrences = existing.Occurrences + 1
	next.Meta = mergeMeta(existing.Meta, req.Meta)
	next.Message = req.Message
	next.LastOccurredAt = now

	escalated := s.rules.Escalate(escalation.Input{
		Type:        existing.Type,
		Severity:    existing.Severity,
		Meta:        next.Meta,
		Occurrences: next.Occurrences,
		CreatedAt:   existing.CreatedAt,
	}, now)
	next.Severity = model.MaxSeverity(existing.Severity, req.Severity, escalated)

	updated, err := s.store.UpdateAlert(ctx, next, existing.Occurrences)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.CounterAlertsCoalesced)
	if updated.Severity != existing.Severity {
		s.metrics.Inc(metrics.CounterAlertsEscalated)
		s.logger.Info("alert severity raised",
			zap.String("alert_id", updated.ID),
			zap.String("from", string(existing.Severity)),
			zap.String("to", string(updated.Severity)),
			zap.Int("occurrences", updated.Occurrences),
		)
	}
	return updated, nil
}

// AcknowledgeAlert - open -> acknowledged, open이 아니면 false
func (s *AlertService) AcknowledgeAlert(ctx context.Context, alertID, tenantID, actor string) (bool, error) {
	defer s.metrics.Track(metrics.OpAcknowledgeAlert)()

	_, ok, err := s.store.TransitionAlert(ctx, db.Transition{
		AlertID:  alertID,
		TenantID: tenantID,
		From:     []model.AlertStatus{model.AlertStatusOpen},
		To:       model.AlertStatusAcknowledged,
		Actor:    actor,
		At:       s.now(),
	})
	if err != nil {
		return false, s.storeFailure("acknowledge_alert", err)
	}
	if ok {
		s.metrics.Inc(metrics.CounterAlertsAcknowledged)
	}
	return ok, nil
}

// ResolveAlert - {open, acknowledged} -> resolved
func (s *AlertService) ResolveAlert(ctx context.Context, alertID, tenantID, actor string, notes *string) (bool, error) {
	defer s.metrics.Track(metrics.OpResolveAlert)()

	_, ok, err := s.store.TransitionAlert(ctx, db.Transition{
		AlertID:  alertID,
		TenantID: tenantID,
		From:     []model.AlertStatus{model.AlertStatusOpen, model.AlertStatusAcknowledged},
		To:       model.AlertStatusResolved,
		Actor:    actor,
		Notes:    notes,
		At:       s.now(),
	})
	if err != nil {
		return false, s.storeFailure("resolve_alert", err)
	}
	if ok {
		s.metrics.Inc(metrics.CounterAlertsResolved)
	}
	return ok, nil
}

// AutoResolveAlert - 조건 해소 시 일치하는 Alert를 모두 resolve 하고 resolved 알림 전송
// nil 키는 와일드카드
func (s *AlertService) AutoResolveAlert(ctx context.Context, req model.AutoResolveRequest) (int, error) {
	defer s.metrics.Track(metrics.OpAutoResolve)()

	if !req.Type.Valid() {
		s.metrics.Inc(metrics.CounterAlertsInvalid)
		return 0, validationError("type", "unknown alert type "+string(req.Type))
	}

	resolved, err := s.store.AutoResolveAlerts(ctx, model.AutoResolveFilter{
		Type:         req.Type,
		TenantID:     normalizeRef(req.TenantID),
		DeviceID:     normalizeRef(req.DeviceID),
		SceneID:      normalizeRef(req.SceneID),
		ScheduleID:   normalizeRef(req.ScheduleID),
		DataSourceID: normalizeRef(req.DataSourceID),
	}, SystemActor, req.Notes, s.now())
	if err != nil {
		return 0, s.storeFailure("auto_resolve_alerts", err)
	}

	if len(resolved) > 0 {
		s.metrics.Add(metrics.CounterAlertsAutoResolved, len(resolved))
		s.logger.Info("alerts auto-resolved",
			zap.String("type", string(req.Type)),
			zap.Int("count", len(resolved)),
		)
	}

	for _, alert := range resolved {
		s.notifyResolved(ctx, alert, req.Notes)
	}
	return len(resolved), nil
}

func (s *AlertService) GetAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) (*model.AlertList, error) {
	defer s.metrics.Track(metrics.OpGetAlerts)()

	items, total, err := s.store.ListAlerts(ctx, filter, page.Normalize())
	if err != nil {
		return nil, s.storeFailure("list_alerts", err)
	}
	return &model.AlertList{Items: items, Total: total}, nil
}

func (s *AlertService) GetAlert(ctx context.Context, alertID, tenantID string) (*model.Alert, error) {
	alert, err := s.store.GetAlertByID(ctx, alertID, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeFailure("get_alert", err)
	}
	return alert, nil
}

func (s *AlertService) GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error) {
	summary, err := s.store.GetAlertSummary(ctx, tenantID)
	if err != nil {
		return nil, s.storeFailure("alert_summary", err)
	}
	return summary, nil
}

// BulkAcknowledge - row 단위로 AcknowledgeAlert와 같은 전이 규칙 적용
func (s *AlertService) BulkAcknowledge(ctx context.Context, tenantID string, ids []string, actor string) (*model.BulkResult, error) {
	return s.bulk(ctx, ids, func(id string) (bool, error) {
		return s.AcknowledgeAlert(ctx, id, tenantID, actor)
	})
}

// BulkResolve - row 단위로 ResolveAlert와 같은 전이 규칙 적용
func (s *AlertService) BulkResolve(ctx context.Context, tenantID string, ids []string, actor string, notes *string) (*model.BulkResult, error) {
	return s.bulk(ctx, ids, func(id string) (bool, error) {
		return s.ResolveAlert(ctx, id, tenantID, actor, notes)
	})
}

// bulk - 중복 id는 한 번만 처리, store 오류 시 그때까지의 결과와 함께 중단
func (s *AlertService) bulk(ctx context.Context, ids []string, apply func(id string) (bool, error)) (*model.BulkResult, error) {
	result := &model.BulkResult{AlertIDs: []string{}}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result.Requested++

		if err := ctx.Err(); err != nil {
			return result, err
		}
		ok, err := apply(id)
		if err != nil {
			return result, err
		}
		if ok {
			result.Updated++
			result.AlertIDs = append(result.AlertIDs, id)
		}
	}
	return result, nil
}

// Limiter - 런타임 설정 변경/진단용
func (s *AlertService) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// Rules - 런타임 규칙 교체/진단용
func (s *AlertService) Rules() *escalation.Table {
	return s.rules
}

// notify - fire-and-forget: 실패는 로그와 카운터로만 남기고 호출자에게 전파하지 않음
func (s *AlertService) notify(ctx context.Context, alert model.Alert, isNew bool) {
	if s.notifier == nil {
		return
	}
	result, err := s.notifier.DispatchAlertNotifications(ctx, alert, isNew)
	if err != nil {
		s.metrics.Inc(metrics.CounterDispatchFailures)
		s.logger.Warn("notification dispatch failed",
			zap.String("alert_id", alert.ID),
			zap.Bool("is_new", isNew),
			zap.Int("in_app", result.InAppCount),
			zap.Int("email", result.EmailCount),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("notifications dispatched",
		zap.String("alert_id", alert.ID),
		zap.Bool("is_new", isNew),
		zap.Int("in_app", result.InAppCount),
		zap.Int("email", result.EmailCount),
	)
}

// announceEscalation - critical로 승격된 Alert를 ops 채널에 처음 알림
func (s *AlertService) announceEscalation(ctx context.Context, alert model.Alert) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.AnnounceEscalation(ctx, alert); err != nil {
		s.metrics.Inc(metrics.CounterDispatchFailures)
		s.logger.Warn("escalation announcement failed", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

func (s *AlertService) notifyResolved(ctx context.Context, alert model.Alert, notes *string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.DispatchResolvedNotification(ctx, alert, notes); err != nil {
		s.metrics.Inc(metrics.CounterDispatchFailures)
		s.logger.Warn("resolved notification dispatch failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
}

func (s *AlertService) storeFailure(op string, err error) error {
	s.metrics.Inc(metrics.CounterStoreFailures)
	s.logger.Error("alert store failure", zap.String("op", op), zap.Error(err))
	return &StoreError{Op: op, Err: err}
}

func (s *AlertService) resolveTenant(ctx context.Context, req model.RaiseAlertRequest) (string, error) {
	if tenant := normalizeRef(req.TenantID); tenant != nil {
		return *tenant, nil
	}
	return s.store.ResolveTenantID(ctx, model.TenantRefs{
		DeviceID:     normalizeRef(req.DeviceID),
		DataSourceID: normalizeRef(req.DataSourceID),
		SceneID:      normalizeRef(req.SceneID),
		ScheduleID:   normalizeRef(req.ScheduleID),
	})
}

func validateRaise(req model.RaiseAlertRequest) error {
	if !req.Type.Valid() {
		return validationError("type", "unknown alert type "+string(req.Type))
	}
	if !req.Severity.Valid() {
		return validationError("severity", "unknown severity "+string(req.Severity))
	}
	if strings.TrimSpace(req.Title) == "" {
		return validationError("title", "required")
	}
	return nil
}

// sourceID - rate limit 버킷 source: device -> data source -> tenant
func sourceID(req model.RaiseAlertRequest, tenantID string) string {
	if ref := normalizeRef(req.DeviceID); ref != nil {
		return *ref
	}
	if ref := normalizeRef(req.DataSourceID); ref != nil {
		return *ref
	}
	return tenantID
}

// normalizeRef - 빈 문자열은 nil로 취급
func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// mergeMeta - 얕은 병합, 새 값이 우선
func mergeMeta(base, update map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}
