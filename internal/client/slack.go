// 외부 Slack API와 통신하는 클라이언트 정의
// 운영 채널 mirror: 새 critical Alert를 채널에 올리고 해제 시 같은 스레드에 답글
//
// 설정(config.SlackConfig):
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack 채널 ID (C...)
//   - FRONTEND_URL: 메시지에 넣을 대시보드 링크 base
//
// Webhook 대신 Bot Token을 사용하는 이유:
//   - thread_ts 반환: 메시지 전송 후 timestamp를 받아 쓰레드 관리 가능
//   - 스레드 답글: resolved 알림을 최초 메시지와 같은 스레드로 전송 가능

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/screenops/alertcore/internal/config"
	"go.uber.org/zap"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

var ErrSlackNotConfigured = errors.New("slack bot token or channel ID not configured")

// SlackClient(메시지 메타데이터) 구조체 정의
type SlackClient struct {
	botToken    string
	channelID   string
	frontendURL string
	apiURL      string
	httpClient  *http.Client
	logger      *zap.Logger

	// threadMap: alert ID -> thread_ts 매핑
	// sync.Map 사용 이유: 동시성 안전 (여러 알림이 동시에 처리될 수 있음)
	threadMap sync.Map
}

// SlackMessage(메시지 내용) 구조체 정의
type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

// SlackAttachment(메시지 포맷) 구조체 정의
type SlackAttachment struct {
	// - critical: #dc3545 (빨강)
	// - warning: #ffc107 (노랑)
	// - resolved: #36a64f (초록)
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField(메시지 포맷 필드) 구조체 정의
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackResponse(메시지 응답) 구조체 정의
type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

type SlackOption func(*SlackClient)

// WithSlackAPIURL - 테스트용 API 주소
func WithSlackAPIURL(url string) SlackOption {
	return func(c *SlackClient) { c.apiURL = url }
}

func WithSlackHTTPClient(httpClient *http.Client) SlackOption {
	return func(c *SlackClient) { c.httpClient = httpClient }
}

// SlackClient 객체 생성
func NewSlackClient(cfg config.SlackConfig, logger *zap.Logger, opts ...SlackOption) *SlackClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SlackClient{
		botToken:    cfg.BotToken,
		channelID:   cfg.ChannelID,
		frontendURL: cfg.FrontendURL,
		apiURL:      slackPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SlackClient에 Bot Token과 Channel ID가 모두 설정되어 있는지 체크
func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

// Slack API 호출
func (c *SlackClient) send(ctx context.Context, msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}

// 최초 메시지 전송 후 thread_ts를 저장
func (c *SlackClient) StoreThreadTS(alertID, threadTS string) {
	c.threadMap.Store(alertID, threadTS)
}

// resolved 메시지 전송 전 thread_ts를 조회
func (c *SlackClient) GetThreadTS(alertID string) (string, bool) {
	val, ok := c.threadMap.Load(alertID)
	if !ok {
		return "", false
	}
	return val.(string), true
}

// resolved 메시지 전송 후 thread_ts를 제거
func (c *SlackClient) DeleteThreadTS(alertID string) {
	c.threadMap.Delete(alertID)
}
