package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path, token string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStudentJWTAndSameStudent(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	studentToken, err := auth.IssueToken(service.TokenTypeStudent, "Ana@Example.com", nil, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.IssueToken(service.TokenTypeAdmin, "admin@example.com", []string{"exams:read"}, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/s/:email", RequireStudentJWT(auth), RequireSameStudent("email"), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Email)
	})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/s/ana@example.com", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/s/ana@example.com", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/s/ana@example.com", adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/s/bob@example.com", studentToken, nil).Code)

	w := do(r, http.MethodGet, "/s/ANA@example.com", studentToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())
}

func TestRequirePermission(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	reader, err := auth.IssueToken(service.TokenTypeAdmin, "a@example.com", []string{string(model.PermissionExamsRead)}, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	admin := r.Group("/", RequireAdminJWT(auth))
	admin.GET("/read", RequirePermission(model.PermissionExamsRead), func(c *gin.Context) { c.Status(http.StatusOK) })
	admin.GET("/write", RequirePermission(model.PermissionExamsWrite), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/read", reader, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/write", reader, nil).Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	now := time.Now()

	assert.True(t, rl.allow("1.1.1.1", now))
	assert.True(t, rl.allow("1.1.1.1", now))
	assert.False(t, rl.allow("1.1.1.1", now))
	assert.True(t, rl.allow("2.2.2.2", now))

	// One token per second refills.
	assert.True(t, rl.allow("1.1.1.1", now.Add(1100*time.Millisecond)))

	rl.Cleanup(now.Add(10 * time.Minute))
	assert.Empty(t, rl.visitors)
}

func TestRateLimiterMiddlewareRejects(t *testing.T) {
	r := gin.New()
	r.GET("/run", NewRateLimiter(1, 1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/run", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/run", "", nil).Code)
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("question ", 500)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := do(r, http.MethodGet, "/large", "", map[string]string{"Accept-Encoding": "gzip, br"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, large, string(plain))

	w = do(r, http.MethodGet, "/small", "", map[string]string{"Accept-Encoding": "br"})
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	w = do(r, http.MethodGet, "/large", "", nil)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/x", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, "no-store", do(r, http.MethodGet, "/x", "", nil).Header().Get("Cache-Control"))
}
