package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/screenops/alertcore/internal/model"
	"github.com/screenops/alertcore/internal/service"
	"go.uber.org/zap"
)

// statusFor - service 에러를 HTTP status로 변환
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError - 500은 내부 에러를 숨기고 로그로만 남김
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, model.ErrorResponse{Status: "error", Error: "internal server error"})
		return
	}
	c.JSON(status, model.ErrorResponse{Status: "error", Error: err.Error()})
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Status: "error", Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Status: "error", Error: msg})
}
