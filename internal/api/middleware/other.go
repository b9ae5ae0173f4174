package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jobs/taskengine/internal/engine"
	"go.uber.org/zap"
)

var (
	ErrUnauthenticated = errors.New("missing or invalid user identity")
	ErrProbeFailed     = errors.New("probe failed")
)

// ErrorResponse 统一错误响应格式
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorHandlingMiddleware 统一错误处理中间件
func ErrorHandlingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "An internal error occurred",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, resp := classify(err)
		if status >= http.StatusInternalServerError && !errors.Is(err, engine.ErrNotReady) && !errors.Is(err, ErrProbeFailed) {
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
		} else {
			logger.Debug("request rejected",
				zap.Error(err),
				zap.Int("status", status),
				zap.String("path", c.Request.URL.Path))
		}
		c.JSON(status, resp)
	}
}

// classify 根据错误类型返回适当的响应
func classify(err error) (int, ErrorResponse) {
	var coded interface{ StatusCode() int }
	switch {
	case errors.As(err, &coded):
		return coded.StatusCode(), ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()}
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: err.Error()}
	case engine.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "Resource not found", Details: err.Error()}
	case engine.IsValidationError(err):
		return http.StatusConflict, ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, engine.ErrNotReady):
		return http.StatusServiceUnavailable, ErrorResponse{Code: "NOT_READY", Message: "Engine is starting up"}
	case errors.Is(err, ErrProbeFailed):
		return http.StatusServiceUnavailable, ErrorResponse{Code: "UNHEALTHY", Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "An error occurred while processing your request",
		Details: err.Error(),
	}
}
