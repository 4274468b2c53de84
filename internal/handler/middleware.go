package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"github.com/screenops/alertcore/internal/service"
	"go.uber.org/zap"
)

const authUserKey = "auth_user"

// tokenParser - bearer token 검증 (service.AuthService)
type tokenParser interface {
	ParseAccessToken(token string) (*model.AuthUser, error)
}

func AuthMiddleware(authService tokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthorized)
			return
		}

		user, err := authService.ParseAccessToken(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthorized)
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// RequireRoles - AuthMiddleware 뒤에 사용, 허용된 role이 아니면 403
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, service.ErrUnauthorized)
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			abortWithError(c, http.StatusForbidden, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger - 요청 단위 access log (5xx는 Error, 4xx는 Warn)
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := GetAuthUser(c); user != nil {
			fields = append(fields, zap.String("tenant_id", user.TenantID), zap.String("user_id", user.ID))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Debug("request handled", fields...)
		}
	}
}
