// Alert 도메인 모델 정의
// monitor(디바이스 heartbeat, sync job, capture pipeline)가 올리는 알림과
// handler, service, db 레이어에서 공통으로 사용하는 타입을 model 레이어에 정의

package model

import "time"

// AlertType - 알림 종류 (고정 enum)
type AlertType string

const (
	AlertTypeDeviceOffline          AlertType = "device_offline"
	AlertTypeDeviceScreenshotFailed AlertType = "device_screenshot_failed"
	AlertTypeDeviceCacheStale       AlertType = "device_cache_stale"
	AlertTypeDeviceError            AlertType = "device_error"
	AlertTypeScheduleMissingScene   AlertType = "schedule_missing_scene"
	AlertTypeScheduleConflict       AlertType = "schedule_conflict"
	AlertTypeDataSourceSyncFailed   AlertType = "data_source_sync_failed"
	AlertTypeSocialFeedSyncFailed   AlertType = "social_feed_sync_failed"
	AlertTypeContentExpired         AlertType = "content_expired"
	AlertTypeStorageQuotaWarning    AlertType = "storage_quota_warning"
	AlertTypeAPIRateLimit           AlertType = "api_rate_limit"
)

var alertTypes = []AlertType{
	AlertTypeDeviceOffline,
	AlertTypeDeviceScreenshotFailed,
	AlertTypeDeviceCacheStale,
	AlertTypeDeviceError,
	AlertTypeScheduleMissingScene,
	AlertTypeScheduleConflict,
	AlertTypeDataSourceSyncFailed,
	AlertTypeSocialFeedSyncFailed,
	AlertTypeContentExpired,
	AlertTypeStorageQuotaWarning,
	AlertTypeAPIRateLimit,
}

// AlertTypes - 전체 AlertType 목록 (선언 순서)
func AlertTypes() []AlertType {
	out := make([]AlertType, len(alertTypes))
	copy(out, alertTypes)
	return out
}

func (t AlertType) Valid() bool {
	for _, known := range alertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity - 심각도. info < warning < critical 순서가 고정되어 있음
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank - 심각도 비교용 순위 (알 수 없는 값은 0)
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast - s가 min 이상인지 확인
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// MaxSeverity - 가장 높은 심각도 반환
func MaxSeverity(first Severity, rest ...Severity) Severity {
	max := first
	for _, s := range rest {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}

// AlertStatus - open -> acknowledged -> resolved
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	}
	return false
}

// Alert - 운영자에게 노출되는 알림 단위
//
// (tenant_id, type, device_id, scene_id, schedule_id, data_source_id) 조합당
// open 상태 Alert는 최대 1개만 존재
type Alert struct {
	ID       string      `json:"id"`
	TenantID string      `json:"tenant_id"`
	Type     AlertType   `json:"type"`
	Severity Severity    `json:"severity"`
	Status   AlertStatus `json:"status"`

	// 중복 제거 키 (null은 null과만 일치)
	DeviceID     *string `json:"device_id"`
	SceneID      *string `json:"scene_id"`
	ScheduleID   *string `json:"schedule_id"`
	DataSourceID *string `json:"data_source_id"`

	Title   string         `json:"title"`
	Message *string        `json:"message"`
	Meta    map[string]any `json:"meta" swaggertype:"object"`

	Occurrences    int       `json:"occurrences"`
	CreatedAt      time.Time `json:"created_at"`
	LastOccurredAt time.Time `json:"last_occurred_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	AcknowledgedBy  *string    `json:"acknowledged_by"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at"`
	ResolvedBy      *string    `json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes *string    `json:"resolution_notes"`
}

// DedupKey - open Alert 조회에 사용하는 상관관계 키
type DedupKey struct {
	TenantID     string
	Type         AlertType
	DeviceID     *string
	SceneID      *string
	ScheduleID   *string
	DataSourceID *string
}

func (a Alert) DedupKey() DedupKey {
	return DedupKey{
		TenantID:     a.TenantID,
		Type:         a.Type,
		DeviceID:     a.DeviceID,
		SceneID:      a.SceneID,
		ScheduleID:   a.ScheduleID,
		DataSourceID: a.DataSourceID,
	}
}

// TenantRefs - tenant_id가 없을 때 tenant를 찾기 위한 참조 키
type TenantRefs struct {
	DeviceID     *string
	DataSourceID *string
	SceneID      *string
	ScheduleID   *string
}

// AutoResolveFilter - 자동 해제 대상 필터
// nil 필드는 와일드카드 (RaiseAlert의 null 일치와 다름)
type AutoResolveFilter struct {
	Type         AlertType
	TenantID     *string
	DeviceID     *string
	SceneID      *string
	ScheduleID   *string
	DataSourceID *string
}

// AlertFilter - Alert 목록 조회 필터
type AlertFilter struct {
	TenantID     string
	Statuses     []AlertStatus
	Severities   []Severity
	Types        []AlertType
	DeviceID     string
	SceneID      string
	ScheduleID   string
	DataSourceID string
	Since        *time.Time
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Pagination - limit/offset 페이지네이션
type Pagination struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize - 기본값/상한 적용
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// AlertList - 목록 + 전체 개수
type AlertList struct {
	Items []Alert `json:"items"`
	Total int     `json:"total"`
}

// AlertSummary - 상태별/심각도별 개수
// BySeverity는 resolved 되지 않은 Alert만 집계
type AlertSummary struct {
	Total      int                 `json:"total"`
	ByStatus   map[AlertStatus]int `json:"by_status"`
	BySeverity map[Severity]int    `json:"by_severity"`
}

func NewAlertSummary() *AlertSummary {
	return &AlertSummary{
		ByStatus: map[AlertStatus]int{
			AlertStatusOpen:         0,
			AlertStatusAcknowledged: 0,
			AlertStatusResolved:     0,
		},
		BySeverity: map[Severity]int{
			SeverityInfo:     0,
			SeverityWarning:  0,
			SeverityCritical: 0,
		},
	}
}

// Add - (status, severity) 그룹 개수 누적
func (s *AlertSummary) Add(status AlertStatus, severity Severity, count int) {
	s.Total += count
	s.ByStatus[status] += count
	if status != AlertStatusResolved {
		s.BySeverity[severity] += count
	}
}

// ============================================================================
// 요청 구조체
// ============================================================================

// RaiseAlertRequest - monitor가 보내는 알림 발생 요청
type RaiseAlertRequest struct {
	Type         AlertType      `json:"type" binding:"required"`
	Severity     Severity       `json:"severity" binding:"required"`
	Title        string         `json:"title" binding:"required"`
	Message      *string        `json:"message"`
	TenantID     *string        `json:"tenant_id"`
	DeviceID     *string        `json:"device_id"`
	SceneID      *string        `json:"scene_id"`
	ScheduleID   *string        `json:"schedule_id"`
	DataSourceID *string        `json:"data_source_id"`
	Meta         map[string]any `json:"meta" swaggertype:"object"`
}

// RaiseAlertResult - RaiseAlert 결과
// rate limit으로 버려진 경우 AlertID는 빈 값, RateLimited=true
type RaiseAlertResult struct {
	AlertID     string `json:"alert_id,omitempty"`
	IsNew       bool   `json:"is_new"`
	RateLimited bool   `json:"rate_limited"`
}

// AutoResolveRequest - 조건 해소 시 monitor가 보내는 자동 해제 요청
type AutoResolveRequest struct {
	Type         AlertType `json:"type" binding:"required"`
	TenantID     *string   `json:"tenant_id"`
	DeviceID     *string   `json:"device_id"`
	SceneID      *string   `json:"scene_id"`
	ScheduleID   *string   `json:"schedule_id"`
	DataSourceID *string   `json:"data_source_id"`
	Notes        *string   `json:"notes"`
}

// ResolveAlertRequest - 수동 해제 요청
type ResolveAlertRequest struct {
	Notes *string `json:"notes"`
}

// BulkAlertRequest - 일괄 acknowledge/resolve 요청
type BulkAlertRequest struct {
	IDs   []string `json:"ids" binding:"required,min=1"`
	Notes *string  `json:"notes"`
}

// BulkResult - 일괄 처리 결과
type BulkResult struct {
	Requested int      `json:"requested"`
	Updated   int      `json:"updated"`
	AlertIDs  []string `json:"alert_ids"`
}
