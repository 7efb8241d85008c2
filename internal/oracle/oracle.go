// Package oracle talks to the Linkvertise anti-bypassing API to confirm that a
// completion hash belongs to a real, finished link visit.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Linkvertise publisher API host.
const DefaultBaseURL = "https://publisher.linkvertise.com"

const (
	verifyPath     = "/api/v1/anti_bypassing"
	maxBodyBytes   = 1 << 20
	defaultTimeout = 10 * time.Second
)

// Outcome is the uncollapsed result of a verification call.
type Outcome string

const (
	// OutcomeVerified means the provider confirmed the completion.
	OutcomeVerified Outcome = "verified"
	// OutcomeRejected means the provider answered and refused the hash.
	OutcomeRejected Outcome = "rejected"
	// OutcomeUnavailable means no usable answer was obtained.
	OutcomeUnavailable Outcome = "unavailable"
)

// Config holds verification client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// MetricsRecordFunc is an optional callback invoked with every outcome.
type MetricsRecordFunc func(outcome Outcome)

// Client verifies completion hashes against the provider.
type Client struct {
	baseURL   string
	token     string
	timeout   time.Duration
	http      *http.Client
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Client. Zero values in cfg fall back to defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Client) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Verify reports whether the provider confirmed completionHash.
// Every kind of failure is reported as false.
func (c *Client) Verify(ctx context.Context, completionHash string) bool {
	return c.Check(ctx, completionHash) == OutcomeVerified
}

// Check performs the verification call and classifies the answer.
func (c *Client) Check(ctx context.Context, completionHash string) Outcome {
	outcome, err := c.check(ctx, completionHash)
	if err != nil {
		c.logger.Warn("linkvertise verification error",
			zap.String("hash", completionHash),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	}
	if c.onMetrics != nil {
		c.onMetrics(outcome)
	}
	return outcome
}

func (c *Client) check(ctx context.Context, completionHash string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL + verifyPath)
	if err != nil {
		return OutcomeUnavailable, fmt.Errorf("build verify URL: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	q.Set("hash", completionHash)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return OutcomeUnavailable, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token; strip it from the error.
		return OutcomeUnavailable, fmt.Errorf("verify request to %s: %w", c.baseURL, unwrapURLError(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			return OutcomeUnavailable, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		return OutcomeRejected, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return OutcomeUnavailable, fmt.Errorf("read verify response: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return OutcomeUnavailable, errors.New("verify response is not a JSON object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return OutcomeUnavailable, fmt.Errorf("decode verify response: %w", err)
	}
	return OutcomeVerified, nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
