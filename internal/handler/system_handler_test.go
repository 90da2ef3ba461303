package handler

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReportsDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &SystemHandler{
		startTime: time.Now(),
		log:       zerolog.Nop(),
		checks: []healthCheck{
			{name: "postgres", check: func(context.Context) error { return nil }},
			{name: "redis", check: func(context.Context) error { return errors.New("connection refused") }},
		},
	}

	r := gin.New()
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"up"`)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)

	h.checks = h.checks[:1]
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 0s", formatDuration(time.Hour))
	assert.Equal(t, "1d 2h 0m 0s", formatDuration(26*time.Hour))
}

func TestSystemMetricsSSEOutlivesServerWriteTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &SystemHandler{
		startTime: time.Now(),
		interval:  20 * time.Millisecond,
		log:       zerolog.Nop(),
	}
	r := gin.New()
	r.GET("/api/v1/admin/system/metrics", h.SystemMetricsSSE)

	const writeTimeout = 100 * time.Millisecond
	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/admin/system/metrics", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	start := time.Now()
	events := 0
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "data: ") {
			continue
		}
		events++
		if time.Since(start) > 4*writeTimeout {
			break
		}
	}
	require.NoError(t, scanner.Err())
	assert.Greater(t, time.Since(start), 4*writeTimeout)
	assert.GreaterOrEqual(t, events, 5)
}
