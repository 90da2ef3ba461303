package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/response"
)

const (
	metricsInterval    = 7 * time.Second
	healthCheckTimeout = 2 * time.Second
	// sseWriteWindow bounds each SSE write; the deadline is pushed forward per event.
	sseWriteWindow = 10 * time.Second
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// SystemHandler serves the health probe and streams process and pool stats via SSE.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	checks    []healthCheck
	startTime time.Time
	interval  time.Duration
	log       zerolog.Logger

	// CPU delta state
	prevIdle  uint64
	prevTotal uint64
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	h := &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		interval:  metricsInterval,
		log:       log.With().Str("component", "system_handler").Logger(),
		checks: []healthCheck{
			{name: "postgres", check: pool.Ping},
			{name: "redis", check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	}
	h.prevIdle, h.prevTotal, _ = readCPUStat()
	return h
}

// Health godoc
// GET /health
// Reports 200 when every dependency answers a ping, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, hc := range h.checks {
		if err := hc.check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", hc.name).Msg("Health check failed")
			deps[hc.name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[hc.name] = "up"
	}

	response.Success(c, status, gin.H{
		"status":       http.StatusText(status),
		"dependencies": deps,
		"uptime":       formatDuration(time.Since(h.startTime)),
	})
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	LoadAvg1      float64 `json:"load_avg_1"`
	LoadAvg5      float64 `json:"load_avg_5"`
	LoadAvg15     float64 `json:"load_avg_15"`

	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes"`
	GoVersion   string `json:"go_version"`

	// Connection pools
	DBAcquiredConns int32  `json:"db_acquired_conns"`
	DBIdleConns     int32  `json:"db_idle_conns"`
	DBMaxConns      int32  `json:"db_max_conns"`
	RedisTotalConns uint32 `json:"redis_total_conns"`
	RedisIdleConns  uint32 `json:"redis_idle_conns"`
	RedisTimeouts   uint32 `json:"redis_timeouts"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	interval := h.interval
	if interval <= 0 {
		interval = metricsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rc := http.NewResponseController(c.Writer)
	if err := h.writeMetrics(c, rc); err != nil {
		h.log.Warn().Err(err).Msg("System metrics SSE write failed")
		return
	}

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			if err := h.writeMetrics(c, rc); err != nil {
				h.log.Warn().Err(err).Msg("System metrics SSE write failed")
				return
			}
		}
	}
}

// writeMetrics sends one event. The server write timeout is set once per
// request, so each event moves the connection deadline forward first.
func (h *SystemHandler) writeMetrics(c *gin.Context, rc *http.ResponseController) error {
	data, err := json.Marshal(h.collect())
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := rc.SetWriteDeadline(time.Now().Add(sseWriteWindow)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("extend write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func (h *SystemHandler) collect() systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
	}

	idle, total, err := readCPUStat()
	if err == nil && total > h.prevTotal {
		idleDelta := float64(idle - h.prevIdle)
		totalDelta := float64(total - h.prevTotal)
		m.CPUPercent = (1 - idleDelta/totalDelta) * 100
		h.prevIdle = idle
		h.prevTotal = total
	}

	if memTotal, memAvail, err := readMemInfo(); err == nil && memTotal > 0 {
		m.MemTotalBytes = memTotal
		m.MemUsedBytes = memTotal - memAvail
	}
	m.LoadAvg1, m.LoadAvg5, m.LoadAvg15, _ = readLoadAvg()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.NumGC = ms.NumGC
	m.AppRSSBytes, _ = readProcessRSS()

	if h.pool != nil {
		st := h.pool.Stat()
		m.DBAcquiredConns = st.AcquiredConns()
		m.DBIdleConns = st.IdleConns()
		m.DBMaxConns = st.MaxConns()
	}
	if h.rdb != nil {
		ps := h.rdb.PoolStats()
		m.RedisTotalConns = ps.TotalConns
		m.RedisIdleConns = ps.IdleConns
		m.RedisTimeouts = ps.Timeouts
	}

	return m
}

// readCPUStat returns idle and total ticks from the aggregate line of /proc/stat.
func readCPUStat() (idle, total uint64, err error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, err
	}
	line := strings.SplitN(string(data), "\n", 2)[0]
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected /proc/stat format")
	}

	for i := 1; i < len(fields); i++ {
		val, _ := strconv.ParseUint(fields[i], 10, 64)
		total += val
		if i == 4 {
			idle = val
		}
	}
	return idle, total, nil
}

// readMemInfo returns MemTotal and MemAvailable in bytes.
func readMemInfo() (total, available uint64, err error) {
	values, err := scanKB("/proc/meminfo", "MemTotal:", "MemAvailable:")
	if err != nil {
		return 0, 0, err
	}
	return values["MemTotal:"], values["MemAvailable:"], nil
}

func readProcessRSS() (uint64, error) {
	values, err := scanKB("/proc/self/status", "VmRSS:")
	if err != nil {
		return 0, err
	}
	rss, ok := values["VmRSS:"]
	if !ok {
		return 0, fmt.Errorf("VmRSS not found")
	}
	return rss, nil
}

// scanKB reads "Key:   123 kB" lines and returns the requested keys in bytes.
func scanKB(path string, keys ...string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]uint64, len(keys))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(out) < len(keys) {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		for _, k := range keys {
			if fields[0] == k {
				val, _ := strconv.ParseUint(fields[1], 10, 64)
				out[k] = val * 1024
			}
		}
	}
	return out, scanner.Err()
}

func readLoadAvg() (load1, load5, load15 float64, err error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
