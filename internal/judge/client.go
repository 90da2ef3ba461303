// Package judge is the HTTP client for the Judge0 code-execution sandbox.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/metrics"
)

const maxResponseBytes = 1 << 20

var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrSandbox           = errors.New("sandbox request failed")
)

// Submission is the body accepted by POST /submissions.
type Submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

// Status is the sandbox verdict status, e.g. {3, "Accepted"}.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ExecutionResult is the synchronous sandbox response. Null fields decode as empty.
type ExecutionResult struct {
	Token         string `json:"token,omitempty"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Error         string `json:"error,omitempty"`
	Status        Status `json:"status"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
}

// Failed reports whether the program failed to compile or run cleanly.
func (r *ExecutionResult) Failed() bool {
	return r.Stderr != "" || r.CompileOutput != "" || r.Error != ""
}

// ErrorOutput returns the first non-empty failure stream.
func (r *ExecutionResult) ErrorOutput() string {
	switch {
	case r.Stderr != "":
		return r.Stderr
	case r.CompileOutput != "":
		return r.CompileOutput
	default:
		return r.Error
	}
}

// Client runs submissions against a Judge0 instance in wait mode. Calls are never retried.
type Client struct {
	cfg  config.Judge0Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a sandbox client with the configured timeout.
func NewClient(cfg config.Judge0Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "judge").Logger(),
	}
}

// Validate rejects submissions the sandbox cannot run.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.SourceCode) == "" {
		return fmt.Errorf("%w: source code is empty", ErrInvalidSubmission)
	}
	if s.LanguageID <= 0 {
		return fmt.Errorf("%w: language id must be positive", ErrInvalidSubmission)
	}
	return nil
}

// Run executes one submission and blocks until the sandbox answers or the timeout fires.
func (c *Client) Run(ctx context.Context, sub Submission) (*ExecutionResult, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	url := c.cfg.BaseURL + "/submissions?base64_encoded=false&wait=true&fields=*"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sandbox request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.Host)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.JudgeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JudgeRequests.WithLabelValues("transport_error").Inc()
		c.log.Error().Err(err).Int("language_id", sub.LanguageID).Msg("Sandbox unreachable")
		return nil, fmt.Errorf("%w: %v", ErrSandbox, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.JudgeRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: read response: %v", ErrSandbox, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.JudgeRequests.WithLabelValues("http_error").Inc()
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("body", excerpt(raw)).
			Msg("Sandbox returned non-2xx")
		return nil, fmt.Errorf("%w: status %d: %s", ErrSandbox, resp.StatusCode, excerpt(raw))
	}

	var result ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		metrics.JudgeRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", ErrSandbox, err)
	}

	metrics.JudgeRequests.WithLabelValues("ok").Inc()
	c.log.Debug().
		Int("language_id", sub.LanguageID).
		Str("status", result.Status.Description).
		Dur("took", time.Since(start)).
		Msg("Sandbox run finished")

	return &result, nil
}

func excerpt(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
