// 외부 mail worker로 email job을 넘기는 큐 클라이언트
// 실제 SMTP 발송은 worker 담당, 이 서비스는 notification row 생성 후 job만 적재
//
// Driver(config.MailQueueConfig.Driver):
//   - none: 큐 미사용 (email row는 email_sent_at IS NULL 상태로 남음)
//   - redis: LPUSH로 JSON job 적재 (worker는 BRPOP)
//   - nats: JetStream stream에 publish, Nats-Msg-Id로 중복 제거

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/model"
	"go.uber.org/zap"
)

const mailStreamMaxAge = 72 * time.Hour

// MailQueue - email job 적재 인터페이스
type MailQueue interface {
	Enqueue(ctx context.Context, job model.EmailJob) error
	Close() error
}

// NewMailQueue - 설정된 driver로 큐 생성, driver가 none이면 nil 반환
func NewMailQueue(ctx context.Context, cfg config.MailQueueConfig, logger *zap.Logger) (MailQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		logger.Info("Mail queue disabled")
		return nil, nil
	case "redis":
		q, err := NewRedisMailQueue(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Mail queue connected", zap.String("driver", "redis"), zap.String("key", cfg.RedisKey))
		return q, nil
	case "nats":
		q, err := NewNATSMailQueue(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Mail queue connected", zap.String("driver", "nats"), zap.String("subject", cfg.NATSSubject))
		return q, nil
	default:
		return nil, fmt.Errorf("unknown mail queue driver %q", cfg.Driver)
	}
}

// ============================================================================
// Redis
// ============================================================================

type RedisMailQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

func NewRedisMailQueue(ctx context.Context, cfg config.MailQueueConfig, logger *zap.Logger) (*RedisMailQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisMailQueueWithClient(client, cfg.RedisKey, logger), nil
}

// NewRedisMailQueueWithClient - 이미 연결된 client 재사용
func NewRedisMailQueueWithClient(client *redis.Client, key string, logger *zap.Logger) *RedisMailQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMailQueue{client: client, key: key, logger: logger}
}

func (q *RedisMailQueue) Enqueue(ctx context.Context, job model.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("push email job: %w", err)
	}
	q.logger.Debug("Email job enqueued",
		zap.String("notification_id", job.NotificationID),
		zap.String("alert_id", job.AlertID),
	)
	return nil
}

func (q *RedisMailQueue) Close() error {
	return q.client.Close()
}

// ============================================================================
// NATS JetStream
// ============================================================================

type NATSMailQueue struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *zap.Logger
}

func NewNATSMailQueue(cfg config.MailQueueConfig, logger *zap.Logger) (*NATSMailQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect mail queue nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for mail queue: %w", err)
	}
	if err := ensureMailStream(js, cfg.NATSStream, cfg.NATSSubject); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSMailQueue{nc: nc, js: js, subject: cfg.NATSSubject, logger: logger}, nil
}

func ensureMailStream(js nats.JetStreamContext, streamName, subject string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    mailStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}

func (q *NATSMailQueue) Enqueue(ctx context.Context, job model.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	msg := nats.NewMsg(q.subject)
	msg.Data = body
	if id := strings.TrimSpace(job.NotificationID); id != "" {
		msg.Header.Set(nats.MsgIdHdr, id)
	}
	if _, err := q.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	q.logger.Debug("Email job published",
		zap.String("notification_id", job.NotificationID),
		zap.String("alert_id", job.AlertID),
	)
	return nil
}

func (q *NATSMailQueue) Close() error {
	if q.nc != nil {
		q.nc.Close()
	}
	return nil
}
