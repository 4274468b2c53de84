package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type slackRecorder struct {
	mu       sync.Mutex
	messages []SlackMessage
	auth     []string
}

func newSlackServer(t *testing.T, resp SlackResponse) (*httptest.Server, *slackRecorder) {
	t.Helper()
	rec := &slackRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg SlackMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rec.mu.Lock()
		rec.messages = append(rec.messages, msg)
		rec.auth = append(rec.auth, r.Header.Get("Authorization"))
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func testSlackAlert() model.Alert {
	device := "dev-1"
	message := "device has not reported for 35 minutes"
	return model.Alert{
		ID:        "alert-1",
		TenantID:  "tenant-1",
		Type:      model.AlertTypeDeviceOffline,
		Severity:  model.SeverityCritical,
		Status:    model.AlertStatusOpen,
		DeviceID:  &device,
		Title:     "Lobby screen offline",
		Message:   &message,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSlackClient_NotConfigured(t *testing.T) {
	c := NewSlackClient(config.SlackConfig{}, zap.NewNop())

	assert.False(t, c.IsConfigured())
	assert.ErrorIs(t, c.SendAlert(context.Background(), testSlackAlert(), ""), ErrSlackNotConfigured)
	assert.ErrorIs(t, c.SendResolved(context.Background(), testSlackAlert(), nil), ErrSlackNotConfigured)
}

func TestSlackClient_SendAlertThenResolvedInThread(t *testing.T) {
	srv, rec := newSlackServer(t, SlackResponse{OK: true, TS: "1700000000.000100"})
	c := NewSlackClient(
		config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"},
		zap.NewNop(),
		WithSlackAPIURL(srv.URL),
	)

	alert := testSlackAlert()
	require.NoError(t, c.SendAlert(context.Background(), alert, "https://app.example.com/alerts/alert-1"))

	ts, ok := c.GetThreadTS(alert.ID)
	require.True(t, ok)
	assert.Equal(t, "1700000000.000100", ts)

	notes := "device back online"
	require.NoError(t, c.SendResolved(context.Background(), alert, &notes))

	_, ok = c.GetThreadTS(alert.ID)
	assert.False(t, ok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.messages, 2)
	assert.Equal(t, "Bearer xoxb-test", rec.auth[0])

	first := rec.messages[0]
	assert.Equal(t, "C123", first.Channel)
	assert.Empty(t, first.ThreadTS)
	require.Len(t, first.Attachments, 1)
	assert.Equal(t, "#dc3545", first.Attachments[0].Color)
	assert.Contains(t, first.Attachments[0].Title, "Lobby screen offline")

	second := rec.messages[1]
	assert.Equal(t, "1700000000.000100", second.ThreadTS)
	require.Len(t, second.Attachments, 1)
	assert.Equal(t, "device back online", second.Attachments[0].Text)
}

func TestSlackClient_ResolvedWithoutThread(t *testing.T) {
	srv, rec := newSlackServer(t, SlackResponse{OK: true, TS: "1.2"})
	c := NewSlackClient(
		config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"},
		nil,
		WithSlackAPIURL(srv.URL),
	)

	require.NoError(t, c.SendResolved(context.Background(), testSlackAlert(), nil))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.messages, 1)
	assert.Empty(t, rec.messages[0].ThreadTS)
	assert.Equal(t, "Condition cleared", rec.messages[0].Attachments[0].Text)
}

func TestSlackClient_APIError(t *testing.T) {
	srv, _ := newSlackServer(t, SlackResponse{OK: false, Error: "channel_not_found"})
	c := NewSlackClient(
		config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C404"},
		zap.NewNop(),
		WithSlackAPIURL(srv.URL),
	)

	err := c.SendAlert(context.Background(), testSlackAlert(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")

	_, ok := c.GetThreadTS("alert-1")
	assert.False(t, ok)
}

func TestColorBySeverity(t *testing.T) {
	assert.Equal(t, "#dc3545", colorBySeverity(model.SeverityCritical))
	assert.Equal(t, "#ffc107", colorBySeverity(model.SeverityWarning))
	assert.Equal(t, "#17a2b8", colorBySeverity(model.SeverityInfo))
}
