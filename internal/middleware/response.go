package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"go.uber.org/zap"
)

const retryAfterSeconds = "1"

// AbortWithError 以统一格式返回错误并中止请求
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}

	status := appErr.HTTPStatus()
	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	}
	switch {
	case apperrors.IsCritical(appErr):
		logger.LogError(err, "请求处理失败", fields...)
	case status >= 500:
		logger.Warn("请求处理失败", append(fields, zap.Error(err))...)
	}

	// 可重试的错误提示客户端稍后重试
	if apperrors.IsRetryable(appErr) {
		c.Header("Retry-After", retryAfterSeconds)
	}

	c.AbortWithStatusJSON(status, apperrors.NewErrorResponse(appErr, GetRequestID(c)))
}
