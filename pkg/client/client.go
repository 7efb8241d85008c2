// Package client is a small Go client for a keygate server's admin API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrForbidden is returned when the server rejects the admin key.
var ErrForbidden = errors.New("admin key rejected")

// IssuedKey is one entry of the admin listing. KeyHash is the digest of the
// issued key; the key itself is never available from the server.
type IssuedKey struct {
	Hash    string    `json:"hash"`
	Created time.Time `json:"created"`
	KeyHash string    `json:"keyHash"`
}

// Client talks to one keygate server.
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAdminKey sets the shared admin secret sent with admin requests.
func WithAdminKey(key string) Option {
	return func(c *Client) {
		c.adminKey = key
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListIssued returns every issued key record, oldest first.
func (c *Client) ListIssued(ctx context.Context) ([]IssuedKey, error) {
	u, err := url.Parse(c.baseURL + "/admin")
	if err != nil {
		return nil, fmt.Errorf("build admin URL: %w", err)
	}
	q := u.Query()
	q.Set("key", c.adminKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build admin request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("admin request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrForbidden
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read admin response: %w", err)
	}
	var out []IssuedKey
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode admin response: %w", err)
	}
	return out, nil
}
