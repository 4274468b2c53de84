// Package ratelimit provides fixed-window admission control for new alerts.
//
// 버킷 키는 "{type}:{sourceId}" 형식이며, Check는 허용 여부만 계산한다.
// 새 Alert row를 insert 하기 직전에는 TryAdmit으로 확인과 카운트 증가를
// 한 번의 lock 안에서 수행한다.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxPerWindow  = 5
	DefaultWindow        = 60 * time.Second
	DefaultSweepInterval = 5 * time.Minute
)

// Config - 런타임 변경 가능한 limiter 설정
type Config struct {
	MaxPerWindow int
	Window       time.Duration
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		MaxPerWindow: DefaultMaxPerWindow,
		Window:       DefaultWindow,
		Enabled:      true,
	}
}

func (c Config) normalize() Config {
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = DefaultMaxPerWindow
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Decision - Check 결과
type Decision struct {
	Limited   bool
	Remaining int
	ResetIn   time.Duration
}

type bucket struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Limiter - (type, source)별 fixed window 카운터
//
// 모든 메서드는 여러 goroutine에서 동시에 호출해도 안전하다.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket

	now           func() time.Time
	sweepInterval time.Duration
	logger        *zap.Logger

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:           cfg.normalize(),
		buckets:       make(map[string]*bucket),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key - 버킷 키 생성
func Key(alertType, sourceID string) string {
	if sourceID == "" {
		sourceID = "global"
	}
	return alertType + ":" + sourceID
}

// Check - 새 Alert 생성 허용 여부 확인 (카운트는 증가시키지 않음)
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cfg.Enabled {
		return Decision{Remaining: l.cfg.MaxPerWindow}
	}

	now := l.now()
	b := l.bucketLocked(key, now)
	return l.decisionLocked(b, now)
}

// RecordAdmission - 한도와 무관하게 카운트 증가
func (l *Limiter) RecordAdmission(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cfg.Enabled {
		return Decision{Remaining: l.cfg.MaxPerWindow}
	}

	now := l.now()
	b := l.bucketLocked(key, now)
	b.count++
	return l.decisionLocked(b, now)
}

// TryAdmit - 한도 확인과 카운트 증가를 원자적으로 수행
// 한도에 도달했으면 카운트를 올리지 않고 Limited를 반환
func (l *Limiter) TryAdmit(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cfg.Enabled {
		return Decision{Remaining: l.cfg.MaxPerWindow}
	}

	now := l.now()
	b := l.bucketLocked(key, now)
	if b.count >= l.cfg.MaxPerWindow {
		return l.decisionLocked(b, now)
	}
	b.count++
	d := l.decisionLocked(b, now)
	d.Limited = false
	return d
}

// bucketLocked - 버킷이 없거나 window가 지났으면 초기화 후 반환
func (l *Limiter) bucketLocked(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) > l.cfg.Window {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

func (l *Limiter) decisionLocked(b *bucket, now time.Time) Decision {
	remaining := l.cfg.MaxPerWindow - b.count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := b.windowStart.Add(l.cfg.Window).Sub(now)
	if resetIn < 0 {
		resetIn = 0
	}
	return Decision{
		Limited:   b.count >= l.cfg.MaxPerWindow,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// SetConfig - 설정 변경 (기존 버킷은 유지)
func (l *Limiter) SetConfig(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg.normalize()
	l.mu.Unlock()
}

func (l *Limiter) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Reset - 모든 버킷 제거
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
}

// Len - 현재 버킷 개수
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep - window의 2배 이상 사용되지 않은 버킷 제거, 제거 개수 반환
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.cfg.Window)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Start - 주기적으로 Sweep을 수행하는 goroutine 시작
// ctx가 취소되거나 Stop이 호출되면 종료
func (l *Limiter) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					l.logger.Debug("rate limiter swept stale buckets", zap.Int("removed", removed))
				}
			}
		}
	}(l.done)
}

// Stop - sweep goroutine 종료 대기
func (l *Limiter) Stop() {
	l.lifecycleMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
