// Package metrics records alert-core counters and rolling per-operation
// latency samples, mirrored to Prometheus.
package metrics

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultSlowThreshold = 500 * time.Millisecond
	DefaultSampleSize    = 100

	// CounterSlowOperations - slow threshold를 넘은 operation 수
	CounterSlowOperations = "slow_operations"
)

// OperationStats - operation별 rolling window 통계
type OperationStats struct {
	Count   int64   `json:"count"`
	Samples int     `json:"samples"`
	AvgMs   float64 `json:"avg_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MaxMs   float64 `json:"max_ms"`
	Slow    int64   `json:"slow"`
}

// Snapshot - Recorder 상태 복사본
type Snapshot struct {
	Counters        map[string]int64          `json:"counters"`
	Operations      map[string]OperationStats `json:"operations"`
	SlowThresholdMs float64                   `json:"slow_threshold_ms"`
}

type operation struct {
	samples []time.Duration
	next    int
	count   int64
	slow    int64
}

func (o *operation) add(d time.Duration, size int) {
	if len(o.samples) < size {
		o.samples = append(o.samples, d)
	} else {
		o.samples[o.next] = d
		o.next = (o.next + 1) % size
	}
	o.count++
}

// Recorder - 카운터와 latency 샘플 기록
//
// Recorder is safe for concurrent use. nil *Recorder는 아무 동작도 하지 않음.
type Recorder struct {
	mu            sync.Mutex
	counters      map[string]int64
	operations    map[string]*operation
	slowThreshold time.Duration
	sampleSize    int
	logger        *zap.Logger

	promCounters *prometheus.CounterVec
	promLatency  *prometheus.HistogramVec
}

type Option func(*Recorder)

func WithSlowThreshold(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.slowThreshold = d
		}
	}
}

func WithSampleSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.sampleSize = n
		}
	}
}

// NewRecorder - reg가 nil이면 Prometheus 등록 생략
func NewRecorder(logger *zap.Logger, reg prometheus.Registerer, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		counters:      make(map[string]int64),
		operations:    make(map[string]*operation),
		slowThreshold: DefaultSlowThreshold,
		sampleSize:    DefaultSampleSize,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	if reg != nil {
		r.promCounters = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alertcore",
			Name:      "events_total",
			Help:      "Alert core events by name",
		}, []string{"name"}))
		r.promLatency = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alertcore",
			Name:      "operation_duration_seconds",
			Help:      "Alert core operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}))
	}
	return r
}

// registerOrReuse - 이미 등록된 collector가 있으면 재사용
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Recorder) Inc(name string) {
	r.Add(name, 1)
}

func (r *Recorder) Add(name string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.mu.Lock()
	r.counters[name] += int64(n)
	r.mu.Unlock()

	if r.promCounters != nil {
		r.promCounters.WithLabelValues(name).Add(float64(n))
	}
}

// Counter - 현재 카운터 값
func (r *Recorder) Counter(name string) int64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Observe - latency 샘플 기록, threshold 이상이면 slow로 로깅
func (r *Recorder) Observe(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	o, ok := r.operations[op]
	if !ok {
		o = &operation{}
		r.operations[op] = o
	}
	o.add(d, r.sampleSize)
	slow := d >= r.slowThreshold
	if slow {
		o.slow++
		r.counters[CounterSlowOperations]++
	}
	threshold := r.slowThreshold
	r.mu.Unlock()

	if r.promLatency != nil {
		r.promLatency.WithLabelValues(op).Observe(d.Seconds())
	}
	if slow {
		if r.promCounters != nil {
			r.promCounters.WithLabelValues(CounterSlowOperations).Inc()
		}
		r.logger.Warn("slow operation",
			zap.String("operation", op),
			zap.Duration("duration", d),
			zap.Duration("threshold", threshold),
		)
	}
}

// Track - defer 용 helper
//
//	defer recorder.Track("raise_alert")()
func (r *Recorder) Track(op string) func() {
	start := time.Now()
	return func() {
		r.Observe(op, time.Since(start))
	}
}

func (r *Recorder) SetSlowThreshold(d time.Duration) {
	if r == nil || d <= 0 {
		return
	}
	r.mu.Lock()
	r.slowThreshold = d
	r.mu.Unlock()
}

// Reset - 카운터와 샘플 초기화 (Prometheus 값은 유지)
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.counters = make(map[string]int64)
	r.operations = make(map[string]*operation)
	r.mu.Unlock()
}

func (r *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   map[string]int64{},
		Operations: map[string]OperationStats{},
	}
	if r == nil {
		return snap
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	for name, o := range r.operations {
		snap.Operations[name] = o.stats()
	}
	snap.SlowThresholdMs = toMs(r.slowThreshold)
	return snap
}

func (o *operation) stats() OperationStats {
	stats := OperationStats{Count: o.count, Samples: len(o.samples), Slow: o.slow}
	if len(o.samples) == 0 {
		return stats
	}

	sorted := make([]time.Duration, len(o.samples))
	copy(sorted, o.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	idx := (len(sorted)*95+99)/100 - 1
	if idx < 0 {
		idx = 0
	}

	stats.AvgMs = toMs(total / time.Duration(len(sorted)))
	stats.P95Ms = toMs(sorted[idx])
	stats.MaxMs = toMs(sorted[len(sorted)-1])
	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
