package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clipper/internal/services"
)

// ErrUnavailable marks requests that could not reach the daemon.
var ErrUnavailable = errors.New("clipper daemon is not reachable")

// StatusError is a non-2xx API response.
type StatusError struct {
	Status int
	Body   ErrorResponse
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body.Error)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: %s (HTTP %d)", msg, e.Status)
}

// Unwrap maps well-known statuses onto services sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusUnauthorized:
		return services.ErrPermission
	default:
		return nil
	}
}

// Client talks to a running daemon.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient targets the API listening on bind ("host:port" or a URL).
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		token:      token,
		httpClient: &http.Client{Timeout: 2 * maxEventWait},
	}
}

// Health retrieves readiness checks.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the workflow status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe selects path on the daemon and returns its inventory.
func (c *Client) Probe(ctx context.Context, path string) (*Source, error) {
	var resp Source
	if err := c.do(ctx, http.MethodPost, "/api/probe", ProbeRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateJob starts a clip.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CurrentJob returns the active or most recent job.
func (c *Client) CurrentJob(ctx context.Context) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/current", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Job returns one job.
func (c *Client) Job(ctx context.Context, id string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events returns events after the cursor, waiting up to wait for new ones.
func (c *Client) Events(ctx context.Context, id string, after int, wait time.Duration) (*EventsResponse, error) {
	query := url.Values{}
	query.Set("after", strconv.Itoa(after))
	if wait > 0 {
		query.Set("wait", wait.String())
	}
	var resp EventsResponse
	path := "/api/jobs/" + url.PathEscape(id) + "/events?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel requests cancellation of job id.
func (c *Client) Cancel(ctx context.Context, id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload asks the daemon to upload a file or job output.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/uploads", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &statusErr.Body)
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
