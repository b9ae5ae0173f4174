package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jobs/taskengine/pkg/config"
)

const (
	HeaderUserID = "X-User-Id"
	userIDKey    = "user_id"
)

// Identity 从Bearer JWT的sub声明解析执行用户，未启用认证时读取X-User-Id
func Identity(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	return func(c *gin.Context) {
		var (
			raw string
			err error
		)
		if cfg.Enabled {
			raw, err = subject(c.GetHeader("Authorization"), secret)
		} else {
			raw = c.GetHeader(HeaderUserID)
		}
		if err == nil && raw == "" {
			err = fmt.Errorf("no user id")
		}
		var id uuid.UUID
		if err == nil {
			id, err = uuid.Parse(raw)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: ErrUnauthenticated.Error(),
				Details: err.Error(),
			})
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func subject(header string, secret []byte) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("missing bearer token")
	}
	parsed, err := jwt.Parse(strings.TrimSpace(token), func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}

// UserID 返回Identity解析出的用户
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
