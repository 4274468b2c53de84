package model

// AuthUser - bearer token에서 추출한 호출자 정보
// monitor 서비스 토큰은 Role이 "monitor"
type AuthUser struct {
	ID       string
	TenantID string
	Role     string
}

const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
	RoleMonitor  = "monitor"
)

// IsMonitor - tenant에 종속되지 않은 monitor 서비스 토큰 여부
func (u *AuthUser) IsMonitor() bool {
	return u != nil && u.Role == RoleMonitor
}
