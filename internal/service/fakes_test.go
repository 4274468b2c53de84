package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/screenops/alertcore/internal/db"
	"github.com/screenops/alertcore/internal/model"
)

// fakeAlertStore - open Alert unique index와 occurrences 낙관적 갱신을 흉내내는 in-memory store
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []*model.Alert
	nextID int

	tenantByDevice map[string]string

	findErr   error
	insertErr error
	updateErr error

	// 동시 요청 시뮬레이션용 hook (lock 밖에서 호출)
	beforeInsert func()
	beforeUpdate func(id string)
	// 매 조회마다 호출 (동시 요청을 한 지점에 모으는 용도)
	beforeFind func()

	inserts int
	updates int
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{tenantByDevice: map[string]string{}}
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func matchesKey(a *model.Alert, key model.DedupKey) bool {
	return a.TenantID == key.TenantID &&
		a.Type == key.Type &&
		sameRef(a.DeviceID, key.DeviceID) &&
		sameRef(a.SceneID, key.SceneID) &&
		sameRef(a.ScheduleID, key.ScheduleID) &&
		sameRef(a.DataSourceID, key.DataSourceID)
}

func cloneAlert(a *model.Alert) *model.Alert {
	out := *a
	if a.Meta != nil {
		out.Meta = make(map[string]any, len(a.Meta))
		for k, v := range a.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}

func (f *fakeAlertStore) ResolveTenantID(ctx context.Context, refs model.TenantRefs) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if refs.DeviceID != nil {
		return f.tenantByDevice[*refs.DeviceID], nil
	}
	return "", nil
}

func (f *fakeAlertStore) FindOpenAlert(ctx context.Context, key model.DedupKey) (*model.Alert, error) {
	if f.beforeFind != nil {
		f.beforeFind()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.alerts {
		if a.Status == model.AlertStatusOpen && matchesKey(a, key) {
			return cloneAlert(a), nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, alert model.Alert) (*model.Alert, error) {
	if hook := f.beforeInsert; hook != nil {
		f.beforeInsert = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, a := range f.alerts {
		if a.Status == model.AlertStatusOpen && matchesKey(a, alert.DedupKey()) {
			return nil, db.ErrDuplicateOpenAlert
		}
	}
	return f.insertLocked(alert), nil
}

func (f *fakeAlertStore) insertLocked(alert model.Alert) *model.Alert {
	f.nextID++
	f.inserts++
	alert.ID = fmt.Sprintf("alert-%d", f.nextID)
	alert.UpdatedAt = alert.CreatedAt
	stored := cloneAlert(&alert)
	f.alerts = append(f.alerts, stored)
	return cloneAlert(stored)
}

// seed - 테스트 준비용 직접 insert
func (f *fakeAlertStore) seed(alert model.Alert) *model.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(alert)
}

func (f *fakeAlertStore) UpdateAlert(ctx context.Context, alert model.Alert, prevOccurrences int) (*model.Alert, error) {
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook(alert.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for _, a := range f.alerts {
		if a.ID != alert.ID {
			continue
		}
		if a.Status != model.AlertStatusOpen || a.Occurrences != prevOccurrences {
			return nil, db.ErrConcurrentUpdate
		}
		f.updates++
		a.Severity = alert.Severity
		if alert.Message != nil {
			a.Message = alert.Message
		}
		a.Meta = alert.Meta
		a.Occurrences = alert.Occurrences
		a.LastOccurredAt = alert.LastOccurredAt
		a.UpdatedAt = alert.LastOccurredAt
		return cloneAlert(a), nil
	}
	return nil, db.ErrConcurrentUpdate
}

// bump - 다른 요청이 먼저 coalesce 한 상황
func (f *fakeAlertStore) bump(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID == id {
			a.Occurrences++
		}
	}
}

func (f *fakeAlertStore) TransitionAlert(ctx context.Context, t db.Transition) (*model.Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID != t.AlertID || (t.TenantID != "" && a.TenantID != t.TenantID) {
			continue
		}
		allowed := false
		for _, from := range t.From {
			if a.Status == from {
				allowed = true
			}
		}
		if !allowed {
			return nil, false, nil
		}
		a.Status = t.To
		at := t.At
		actor := t.Actor
		switch t.To {
		case model.AlertStatusAcknowledged:
			a.AcknowledgedBy = &actor
			a.AcknowledgedAt = &at
		case model.AlertStatusResolved:
			a.ResolvedBy = &actor
			a.ResolvedAt = &at
			a.ResolutionNotes = t.Notes
		}
		return cloneAlert(a), true, nil
	}
	return nil, false, nil
}

func wildcard(filter *string, value *string) bool {
	return filter == nil || sameRef(filter, value)
}

func (f *fakeAlertStore) AutoResolveAlerts(ctx context.Context, filter model.AutoResolveFilter, actor string, notes *string, at time.Time) ([]model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Alert
	for _, a := range f.alerts {
		if a.Type != filter.Type || a.Status == model.AlertStatusResolved {
			continue
		}
		if filter.TenantID != nil && a.TenantID != *filter.TenantID {
			continue
		}
		if !wildcard(filter.DeviceID, a.DeviceID) || !wildcard(filter.SceneID, a.SceneID) ||
			!wildcard(filter.ScheduleID, a.ScheduleID) || !wildcard(filter.DataSourceID, a.DataSourceID) {
			continue
		}
		a.Status = model.AlertStatusResolved
		resolvedAt := at
		resolvedBy := actor
		a.ResolvedAt = &resolvedAt
		a.ResolvedBy = &resolvedBy
		a.ResolutionNotes = notes
		out = append(out, *cloneAlert(a))
	}
	return out, nil
}

func (f *fakeAlertStore) GetAlertByID(ctx context.Context, id, tenantID string) (*model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID == id && (tenantID == "" || a.TenantID == tenantID) {
			return cloneAlert(a), nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeAlertStore) ListAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) ([]model.Alert, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Alert
	for _, a := range f.alerts {
		if filter.TenantID != "" && a.TenantID != filter.TenantID {
			continue
		}
		out = append(out, *cloneAlert(a))
	}
	return out, len(out), nil
}

func (f *fakeAlertStore) GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := model.NewAlertSummary()
	for _, a := range f.alerts {
		if tenantID == "" || a.TenantID == tenantID {
			summary.Add(a.Status, a.Severity, 1)
		}
	}
	return summary, nil
}

// openAlerts - key에 해당하는 open Alert 목록
func (f *fakeAlertStore) openAlerts(key model.DedupKey) []model.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Alert
	for _, a := range f.alerts {
		if a.Status == model.AlertStatusOpen && matchesKey(a, key) {
			out = append(out, *cloneAlert(a))
		}
	}
	return out
}

type dispatchCall struct {
	alert model.Alert
	isNew bool
	notes *string
}

type fakeNotifier struct {
	mu        sync.Mutex
	calls     []dispatchCall
	resolved  []dispatchCall
	announced []model.Alert
	err       error
}

func (f *fakeNotifier) DispatchAlertNotifications(ctx context.Context, alert model.Alert, isNew bool) (model.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{alert: alert, isNew: isNew})
	if f.err != nil {
		return model.DispatchResult{}, f.err
	}
	return model.DispatchResult{InAppCount: 1}, nil
}

func (f *fakeNotifier) DispatchResolvedNotification(ctx context.Context, alert model.Alert, notes *string) (model.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, dispatchCall{alert: alert, notes: notes})
	if f.err != nil {
		return model.DispatchResult{}, f.err
	}
	return model.DispatchResult{InAppCount: 1}, nil
}

func (f *fakeNotifier) AnnounceEscalation(ctx context.Context, alert model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, alert)
	return f.err
}

// fakeNotificationStore - 수신자/preference/알림 기록
type fakeNotificationStore struct {
	mu         sync.Mutex
	members    []model.TenantMember
	prefs      []model.NotificationPreference
	inserted   []model.Notification
	failUsers  map[string]bool
	membersErr error
	roles      []string
	nextID     int
}

func (f *fakeNotificationStore) ListTenantMembers(ctx context.Context, tenantID string, roles []string) ([]model.TenantMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = roles
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	var out []model.TenantMember
	for _, m := range f.members {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) GetNotificationPreferences(ctx context.Context, tenantID string, userIDs []string) ([]model.NotificationPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NotificationPreference
	for _, p := range f.prefs {
		if p.TenantID != tenantID {
			continue
		}
		for _, id := range userIDs {
			if p.UserID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) InsertNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers[n.UserID] {
		return nil, errors.New("connection reset")
	}
	f.nextID++
	n.ID = fmt.Sprintf("n-%d", f.nextID)
	f.inserted = append(f.inserted, n)
	return &n, nil
}

func (f *fakeNotificationStore) byChannel(ch model.Channel) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.inserted {
		if n.Channel == ch {
			out = append(out, n)
		}
	}
	return out
}

type fakeMailQueue struct {
	mu   sync.Mutex
	jobs []model.EmailJob
	err  error
}

func (f *fakeMailQueue) Enqueue(ctx context.Context, job model.EmailJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeMirror struct {
	mu        sync.Mutex
	sent     []string
	resolved []string
}

func (f *fakeMirror) SendAlert(ctx context.Context, alert model.Alert, actionURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, alert.ID)
	return nil
}

func (f *fakeMirror) SendResolved(ctx context.Context, alert model.Alert, notes *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, alert.ID)
	return nil
}

// testClock - 수동으로 진행시키는 시계
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func strPtr(s string) *string {
	return &s
}
