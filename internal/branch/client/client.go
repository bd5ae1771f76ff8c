// Package client talks to a remote branch API over HTTP. A Client serves as
// both the directory's Source and the engine's RateWriter.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
	"branchrate/pkg/platform/circuit"
	"branchrate/pkg/platform/sentinel"
)

const maxResponseBytes = 4 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	authToken  string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithAuthToken sends token as a bearer credential on every request.
func WithAuthToken(token string) Option {
	return func(cl *Client) {
		cl.authToken = token
	}
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    circuit.New("branch-api"),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBranches fetches GET /branches. Any failure is DirectoryUnavailable.
func (c *Client) ListBranches(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	err := c.do(ctx, http.MethodGet, c.baseURL+"/branches", func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&branches)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "failed to fetch branches")
	}
	return branches, nil
}

// WriteRate issues PUT /rate/{id}?rate=. Any failure is UpdateFailed; the
// server cascades the rate to descendants.
func (c *Client) WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error {
	endpoint := fmt.Sprintf("%s/rate/%s?%s", c.baseURL, url.PathEscape(id.String()),
		url.Values{"rate": []string{rate.String()}}.Encode())
	err := c.do(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpdateFailed, "failed to update rate")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, decode func(io.Reader) error) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("circuit %s open: %w", c.breaker.Name(), sentinel.ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		// 4xx is the server's answer, not an outage.
		if resp.StatusCode >= http.StatusInternalServerError {
			c.recordFailure(ctx)
		}
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	c.breaker.RecordSuccess()

	if decode == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := decode(body); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "branch api circuit opened", "breaker", c.breaker.Name())
	}
}
