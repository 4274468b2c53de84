package service

import (
	"strconv"
	"strings"
	"time"

	// 컨테이너 이미지에 zoneinfo가 없어도 IANA timezone 사용
	_ "time/tzdata"
)

// InQuietHours - now가 수신자의 방해 금지 구간 안인지 확인
//
// start/end는 "HH:MM" 또는 "HH:MM:SS", 비교는 분 단위로 양 끝 포함
// start > end 이면 자정을 넘어가는 구간 (예: 22:00-06:00)
// 시각이 비었거나 형식이 틀리면 구간 없음, timezone이 틀리면 UTC 기준
func InQuietHours(start, end, timezone *string, now time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	from, ok := parseClock(*start)
	if !ok {
		return false
	}
	to, ok := parseClock(*end)
	if !ok {
		return false
	}

	local := now.In(quietHoursLocation(timezone))
	current := local.Hour()*60 + local.Minute()

	if from <= to {
		return current >= from && current <= to
	}
	return current >= from || current <= to
}

// ValidClock - preference 저장 전 형식 검증
func ValidClock(value string) bool {
	_, ok := parseClock(value)
	return ok
}

// ValidTimezone - IANA timezone 이름 검증
func ValidTimezone(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

func quietHoursLocation(timezone *string) *time.Location {
	if timezone == nil || strings.TrimSpace(*timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(*timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseClock - 자정 기준 분 단위로 변환
func parseClock(value string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, false
		}
	}
	return hour*60 + minute, true
}
