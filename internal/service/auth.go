package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/model"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("auth config invalid")
)

// AuthService - bearer token 검증
// 토큰 발급(로그인/세션)은 별도 서비스 담당, 여기서는 HS256 서명 검증과 claim 추출만 수행
type AuthService struct {
	jwtSecret []byte
}

type authClaims struct {
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(cfg config.AuthConfig) (*AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}, nil
}

// ParseAccessToken - 토큰에서 호출자 추출
// monitor 토큰은 tenantId가 없어도 허용, 그 외 role은 tenantId 필수
func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	user := &model.AuthUser{
		ID:       strings.TrimSpace(claims.Subject),
		TenantID: strings.TrimSpace(claims.TenantID),
		Role:     strings.ToLower(strings.TrimSpace(claims.Role)),
	}
	if user.ID == "" || user.Role == "" {
		return nil, ErrUnauthorized
	}
	if user.TenantID == "" && !user.IsMonitor() {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// IssueToken - 서비스 토큰 발급 (monitor 배포, 테스트용)
func (s *AuthService) IssueToken(user model.AuthUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		TenantID: user.TenantID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
