package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/escalation"
	"github.com/screenops/alertcore/internal/metrics"
	"github.com/screenops/alertcore/internal/model"
	"github.com/screenops/alertcore/internal/ratelimit"
	"github.com/screenops/alertcore/internal/service"
	"github.com/stretchr/testify/require"
)

// token -> 사용자
type fakeTokens map[string]*model.AuthUser

func (f fakeTokens) ParseAccessToken(token string) (*model.AuthUser, error) {
	if user, ok := f[token]; ok {
		return user, nil
	}
	return nil, service.ErrUnauthorized
}

var testTokens = fakeTokens{
	"monitor":  {ID: "svc-monitor", Role: model.RoleMonitor},
	"owner":    {ID: "u-owner", TenantID: "t1", Role: model.RoleOwner},
	"operator": {ID: "u-op", TenantID: "t1", Role: model.RoleOperator},
	"viewer":   {ID: "u-viewer", TenantID: "t1", Role: model.RoleViewer},
}

type fakeAlertService struct {
	raiseReq    model.RaiseAlertRequest
	raiseResult *model.RaiseAlertResult
	autoReq     model.AutoResolveRequest
	autoCount   int

	listFilter model.AlertFilter
	listPage   model.Pagination
	list       *model.AlertList

	alert   *model.Alert
	summary *model.AlertSummary

	transitionOK bool
	lastTenant   string
	lastActor    string
	lastNotes    *string
	lastIDs      []string
	bulk         *model.BulkResult

	err error
}

func (f *fakeAlertService) RaiseAlert(ctx context.Context, req model.RaiseAlertRequest) (*model.RaiseAlertResult, error) {
	f.raiseReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.raiseResult, nil
}

func (f *fakeAlertService) AutoResolveAlert(ctx context.Context, req model.AutoResolveRequest) (int, error) {
	f.autoReq = req
	return f.autoCount, f.err
}

func (f *fakeAlertService) GetAlerts(ctx context.Context, filter model.AlertFilter, page model.Pagination) (*model.AlertList, error) {
	f.listFilter = filter
	f.listPage = page
	if f.err != nil {
		return nil, f.err
	}
	if f.list == nil {
		return &model.AlertList{}, nil
	}
	return f.list, nil
}

func (f *fakeAlertService) GetAlert(ctx context.Context, alertID, tenantID string) (*model.Alert, error) {
	f.lastTenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return f.alert, nil
}

func (f *fakeAlertService) GetAlertSummary(ctx context.Context, tenantID string) (*model.AlertSummary, error) {
	f.lastTenant = tenantID
	return f.summary, f.err
}

func (f *fakeAlertService) AcknowledgeAlert(ctx context.Context, alertID, tenantID, actor string) (bool, error) {
	f.lastTenant, f.lastActor = tenantID, actor
	return f.transitionOK, f.err
}

func (f *fakeAlertService) ResolveAlert(ctx context.Context, alertID, tenantID, actor string, notes *string) (bool, error) {
	f.lastTenant, f.lastActor, f.lastNotes = tenantID, actor, notes
	return f.transitionOK, f.err
}

func (f *fakeAlertService) BulkAcknowledge(ctx context.Context, tenantID string, ids []string, actor string) (*model.BulkResult, error) {
	f.lastTenant, f.lastActor, f.lastIDs = tenantID, actor, ids
	return f.bulk, f.err
}

func (f *fakeAlertService) BulkResolve(ctx context.Context, tenantID string, ids []string, actor string, notes *string) (*model.BulkResult, error) {
	f.lastTenant, f.lastActor, f.lastIDs, f.lastNotes = tenantID, actor, ids, notes
	return f.bulk, f.err
}

type fakeNotificationService struct {
	unreadOnly bool
	page       model.Pagination
	list       *model.NotificationList
	pref       *model.NotificationPreference
	update     model.UpdatePreferenceRequest
	marked     []string
	lastUser   string
	err        error
}

func (f *fakeNotificationService) ListNotifications(ctx context.Context, userID, tenantID string, unreadOnly bool, page model.Pagination) (*model.NotificationList, error) {
	f.lastUser, f.unreadOnly, f.page = userID, unreadOnly, page
	if f.err != nil {
		return nil, f.err
	}
	if f.list == nil {
		return &model.NotificationList{Items: []model.Notification{}}, nil
	}
	return f.list, nil
}

func (f *fakeNotificationService) MarkRead(ctx context.Context, id, userID string) error {
	f.lastUser = userID
	f.marked = append(f.marked, "read:"+id)
	return f.err
}

func (f *fakeNotificationService) MarkClicked(ctx context.Context, id, userID string) error {
	f.lastUser = userID
	f.marked = append(f.marked, "click:"+id)
	return f.err
}

func (f *fakeNotificationService) MarkEmailSent(ctx context.Context, id string) error {
	f.marked = append(f.marked, "email:"+id)
	return f.err
}

func (f *fakeNotificationService) GetPreference(ctx context.Context, userID, tenantID string) (*model.NotificationPreference, error) {
	f.lastUser = userID
	return f.pref, f.err
}

func (f *fakeNotificationService) UpdatePreference(ctx context.Context, userID, tenantID string, req model.UpdatePreferenceRequest) (*model.NotificationPreference, error) {
	f.lastUser, f.update = userID, req
	return f.pref, f.err
}

type fakeWebhookService struct {
	configs    []model.WebhookConfig
	lastTenant string
	lastID     int
	lastReq    model.WebhookConfigRequest
	err        error
}

func (f *fakeWebhookService) ListWebhookConfigs(ctx context.Context, tenantID string) ([]model.WebhookConfig, error) {
	f.lastTenant = tenantID
	return f.configs, f.err
}

func (f *fakeWebhookService) GetWebhookConfig(ctx context.Context, tenantID string, id int) (*model.WebhookConfig, error) {
	f.lastTenant, f.lastID = tenantID, id
	if f.err != nil {
		return nil, f.err
	}
	return &model.WebhookConfig{ID: id, TenantID: tenantID}, nil
}

func (f *fakeWebhookService) CreateWebhookConfig(ctx context.Context, tenantID string, req model.WebhookConfigRequest) (int, error) {
	f.lastTenant, f.lastReq = tenantID, req
	return 42, f.err
}

func (f *fakeWebhookService) UpdateWebhookConfig(ctx context.Context, tenantID string, id int, req model.WebhookConfigRequest) error {
	f.lastTenant, f.lastID, f.lastReq = tenantID, id, req
	return f.err
}

func (f *fakeWebhookService) DeleteWebhookConfig(ctx context.Context, tenantID string, id int) error {
	f.lastTenant, f.lastID = tenantID, id
	return f.err
}

type testServer struct {
	router   *gin.Engine
	alerts   *fakeAlertService
	inbox    *fakeNotificationService
	webhooks *fakeWebhookService
	limiter  *ratelimit.Limiter
	recorder *metrics.Recorder
	rules    *escalation.Table
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		alerts:   &fakeAlertService{},
		inbox:    &fakeNotificationService{},
		webhooks: &fakeWebhookService{},
		limiter:  ratelimit.New(ratelimit.DefaultConfig()),
		recorder: metrics.NewRecorder(nil, nil),
		rules:    escalation.NewTable(escalation.DefaultRules()),
	}
	ts.router = NewRouter(RouterDeps{
		Auth:           testTokens,
		Alerts:         NewAlertHandler(ts.alerts, nil),
		Notifications:  NewNotificationHandler(ts.inbox, nil),
		Diagnostics:    NewDiagnosticsHandler(ts.recorder, ts.limiter, ts.rules, nil),
		Webhooks:       NewWebhookSettingsHandler(ts.webhooks, nil),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func strPtr(s string) *string {
	return &s
}
