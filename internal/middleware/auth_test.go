package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := func(c *gin.Context) { c.String(http.StatusOK, Actor(c)) }
	r.GET("/x", mw, handler)
	r.POST("/x", mw, handler)
	return r
}

func serve(r *gin.Engine, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestRequireRole(t *testing.T) {
	SetJWTSecret("mw-secret")
	r := newRouter(RequireRole(RoleAdmin, RoleAccountant))
	valid := func(role string) string {
		return sign(t, jwt.MapClaims{"sub": "u-7", "role": role, "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, []byte("mw-secret"))
	}

	tests := []struct {
		name string
		auth string
		code int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign(t, jwt.MapClaims{"role": RoleAdmin}, jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.MapClaims{"role": RoleAdmin, "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte("mw-secret")), http.StatusUnauthorized},
		{"no role", "Bearer " + sign(t, jwt.MapClaims{"sub": "u-7"}, jwt.SigningMethodHS256, []byte("mw-secret")), http.StatusForbidden},
		{"service role", "Bearer " + valid(RoleService), http.StatusForbidden},
		{"accountant", "Bearer " + valid(RoleAccountant), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, "/x", tt.auth)
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := serve(r, http.MethodGet, "/x", "Bearer "+valid(RoleAdmin))
	assert.Equal(t, "u-7", rec.Body.String())
}

func TestCronAuth(t *testing.T) {
	r := newRouter(CronAuth("s3cret"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/x", "Bearer s3cret").Code)
	assert.Equal(t, "cron", serve(r, http.MethodPost, "/x", "Bearer s3cret").Body.String())
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/x", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/x?secret=s3cret", "").Code, "query secret is GET only")
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x?secret=s3cret", "").Code)

	unset := newRouter(CronAuth(""))
	assert.Equal(t, http.StatusUnauthorized, serve(unset, http.MethodPost, "/x", "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(unset, http.MethodGet, "/x", "").Code)
}

func TestActorDefaultsToSystem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "system", Actor(c))
	c.Set("userID", "u-1")
	assert.Equal(t, "u-1", Actor(c))
}
