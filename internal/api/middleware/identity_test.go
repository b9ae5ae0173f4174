package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jobs/taskengine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Identity(cfg), func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id.String())
	})
	return r
}

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func get(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityJWT(t *testing.T) {
	r := identityRouter(config.AuthConfig{Enabled: true, JWTSecret: "s3cret"})
	user := uuid.New()

	token := sign(t, "s3cret", jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	w := get(r, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.String(), w.Body.String())

	wrong := sign(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"sub": user.String()})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+wrong).Code)

	expired := sign(t, "s3cret", jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+expired).Code)

	notUUID := sign(t, "s3cret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+notUUID).Code)

	hs512 := sign(t, "s3cret", jwt.SigningMethodHS512, jwt.MapClaims{"sub": user.String()})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer "+hs512).Code)

	assert.Equal(t, http.StatusUnauthorized, get(r, HeaderUserID, user.String()).Code)
}

func TestIdentityHeader(t *testing.T) {
	r := identityRouter(config.AuthConfig{})
	user := uuid.New()

	w := get(r, HeaderUserID, user.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, HeaderUserID, "nope").Code)
}
