// Package escalation maps an alert's current state to a possibly escalated
// severity using a per-type rule table.
//
// 지원하는 trigger:
//
//	minutes_offline - meta.minutesOffline >= threshold
//	hours_stale     - meta.hoursStale >= threshold
//	failure_count   - meta.failureCount >= threshold
//	occurrences     - occurrences >= threshold && now-createdAt <= window_hours
package escalation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/screenops/alertcore/internal/model"
)

// Trigger - 규칙이 검사하는 조건 종류
type Trigger string

const (
	TriggerMinutesOffline Trigger = "minutes_offline"
	TriggerHoursStale     Trigger = "hours_stale"
	TriggerFailureCount   Trigger = "failure_count"
	TriggerOccurrences    Trigger = "occurrences"
)

// MetaField - trigger가 읽는 meta 키 (occurrences는 meta를 읽지 않음)
func (t Trigger) MetaField() string {
	switch t {
	case TriggerMinutesOffline:
		return "minutesOffline"
	case TriggerHoursStale:
		return "hoursStale"
	case TriggerFailureCount:
		return "failureCount"
	default:
		return ""
	}
}

func (t Trigger) Valid() bool {
	switch t {
	case TriggerMinutesOffline, TriggerHoursStale, TriggerFailureCount, TriggerOccurrences:
		return true
	}
	return false
}

// Rule - 알림 종류별 단일 escalation 규칙
type Rule struct {
	Trigger     Trigger `yaml:"trigger" json:"trigger"`
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	WindowHours float64 `yaml:"window_hours,omitempty" json:"window_hours,omitempty"`
}

// RuleTable - AlertType별 규칙
type RuleTable map[model.AlertType]Rule

// Input - Escalate 입력값
type Input struct {
	Type        model.AlertType
	Severity    model.Severity
	Meta        map[string]any
	Occurrences int
	CreatedAt   time.Time
}

// DefaultRules - 기본 규칙 테이블
func DefaultRules() RuleTable {
	return RuleTable{
		model.AlertTypeDeviceOffline:          {Trigger: TriggerMinutesOffline, Threshold: 30},
		model.AlertTypeDeviceCacheStale:       {Trigger: TriggerHoursStale, Threshold: 24},
		model.AlertTypeDataSourceSyncFailed:   {Trigger: TriggerFailureCount, Threshold: 5},
		model.AlertTypeSocialFeedSyncFailed:   {Trigger: TriggerFailureCount, Threshold: 5},
		model.AlertTypeDeviceScreenshotFailed: {Trigger: TriggerOccurrences, Threshold: 5, WindowHours: 1},
		model.AlertTypeDeviceError:            {Trigger: TriggerOccurrences, Threshold: 10, WindowHours: 1},
	}
}

// Escalate - 규칙을 만족하면 critical, 아니면 현재 심각도를 그대로 반환
// 부수효과 없음
func Escalate(rules RuleTable, in Input, now time.Time) model.Severity {
	if in.Severity == model.SeverityCritical {
		return model.SeverityCritical
	}
	rule, ok := rules[in.Type]
	if !ok {
		return in.Severity
	}
	if rule.Matches(in, now) {
		return model.SeverityCritical
	}
	return in.Severity
}

// Matches - 규칙 조건 충족 여부
func (r Rule) Matches(in Input, now time.Time) bool {
	if r.Trigger == TriggerOccurrences {
		if float64(in.Occurrences) < r.Threshold {
			return false
		}
		if r.WindowHours <= 0 {
			return true
		}
		window := time.Duration(r.WindowHours * float64(time.Hour))
		return now.Sub(in.CreatedAt) <= window
	}

	field := r.Trigger.MetaField()
	if field == "" {
		return false
	}
	value, ok := metaNumber(in.Meta, field)
	return ok && value >= r.Threshold
}

// Validate - 알 수 없는 type/trigger, 0 이하 threshold 검사
func (t RuleTable) Validate() error {
	for alertType, rule := range t {
		if !alertType.Valid() {
			return fmt.Errorf("unknown alert type %q", alertType)
		}
		if !rule.Trigger.Valid() {
			return fmt.Errorf("%s: unknown trigger %q", alertType, rule.Trigger)
		}
		if rule.Threshold <= 0 {
			return fmt.Errorf("%s: threshold must be positive", alertType)
		}
		if rule.WindowHours < 0 {
			return fmt.Errorf("%s: window_hours must not be negative", alertType)
		}
	}
	return nil
}

// Clone - 얕은 복사
func (t RuleTable) Clone() RuleTable {
	out := make(RuleTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// metaNumber - JSON 디코딩 결과(float64), 정수, 숫자 문자열을 모두 float64로 변환
func metaNumber(meta map[string]any, key string) (float64, bool) {
	raw, ok := meta[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Table - 런타임에 교체 가능한 규칙 테이블 (rule 파일 reload, 테스트)
type Table struct {
	mu    sync.RWMutex
	rules RuleTable
}

func NewTable(rules RuleTable) *Table {
	return &Table{rules: rules.Clone()}
}

func (t *Table) Get() RuleTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rules.Clone()
}

func (t *Table) Set(rules RuleTable) {
	clone := rules.Clone()
	t.mu.Lock()
	t.rules = clone
	t.mu.Unlock()
}

// Escalate - 현재 테이블로 Escalate 수행
func (t *Table) Escalate(in Input, now time.Time) model.Severity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Escalate(t.rules, in, now)
}
