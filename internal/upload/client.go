package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
)

const (
	defaultTimeout          = 10 * time.Minute
	defaultRetryMaxAttempts = 3
	defaultRetryBaseDelay   = time.Second
	defaultRetryMaxDelay    = 30 * time.Second
	maxResponseBytes        = 64 * 1024
	userAgent               = "clipper-uploader/1"
)

// Result is the outcome of one upload.
type Result struct {
	Service  Service `json:"service"`
	Path     string  `json:"path"`
	URL      string  `json:"url,omitempty"`
	Size     int64   `json:"size_bytes,omitempty"`
	Attempts int     `json:"attempts"`
	Err      error   `json:"-"`
}

// Client posts files to anonymous file hosts.
type Client struct {
	httpClient       *http.Client
	endpoints        map[Service]endpoint
	timeout          time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
	logger           *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each request attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts per upload.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff configures exponential backoff bounds.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.retryBaseDelay = base
		}
		if maxDelay > 0 {
			c.retryMaxDelay = maxDelay
		}
	}
}

// WithSleeper replaces the retry sleep function (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithEndpoint points a service at a different URL.
func WithEndpoint(service Service, rawURL string) Option {
	return func(c *Client) {
		if ep, ok := c.endpoints[service]; ok && rawURL != "" {
			ep.URL = rawURL
			c.endpoints[service] = ep
		}
	}
}

// WithSizeLimit overrides a service's maximum file size.
func WithSizeLimit(service Service, maxBytes int64) Option {
	return func(c *Client) {
		if ep, ok := c.endpoints[service]; ok && maxBytes > 0 {
			ep.MaxBytes = maxBytes
			c.endpoints[service] = ep
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "upload")
	}
}

// NewClient constructs a Client with production endpoints.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{},
		endpoints:        defaultEndpoints(),
		timeout:          defaultTimeout,
		retryMaxAttempts: defaultRetryMaxAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewFromConfig applies the upload section of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, extra ...Option) *Client {
	opts := []Option{WithLogger(logger)}
	if cfg != nil {
		opts = append(opts,
			WithTimeout(cfg.UploadTimeout()),
			WithRetryMaxAttempts(cfg.Upload.MaxAttempts),
			WithRetryBackoff(time.Duration(cfg.Upload.InitialBackoffMs)*time.Millisecond, 0),
		)
	}
	return NewClient(append(opts, extra...)...)
}

// MaxBytes reports the size limit of service, or 0 when unknown.
func (c *Client) MaxBytes(service Service) int64 {
	return c.endpoints[service].MaxBytes
}

// UploadAsync runs Upload in the background. The channel delivers exactly
// one Result and is then closed.
func (c *Client) UploadAsync(ctx context.Context, path string, service Service) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res, err := c.Upload(ctx, path, service)
		res.Err = err
		ch <- res
	}()
	return ch
}

// Upload posts the file at path to service and returns the public URL.
// Failures are returned as *Error.
func (c *Client) Upload(ctx context.Context, path string, service Service) (Result, error) {
	res := Result{Service: service, Path: path}
	ep, ok := c.endpoints[service]
	if !ok {
		return res, &Error{Kind: KindBadResponse, Service: service, Message: "unsupported service"}
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		msg := "file not found"
		if err == nil {
			msg = "not a non-empty regular file"
		}
		return res, &Error{Kind: KindFileMissing, Service: service, Message: msg, Err: err}
	}
	res.Size = info.Size()
	if ep.MaxBytes > 0 && info.Size() > ep.MaxBytes {
		return res, &Error{
			Kind:    KindTooLarge,
			Service: service,
			Message: fmt.Sprintf("%d bytes exceeds %d byte limit", info.Size(), ep.MaxBytes),
		}
	}

	logger := c.logger.With(logging.String("service", string(service)), logging.String("path", path))
	var lastErr *Error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		res.Attempts = attempt
		link, uerr := c.attempt(ctx, ep, service, path)
		if uerr == nil {
			res.URL = link
			logger.Info("upload complete",
				logging.String(logging.FieldEventType, "upload_complete"),
				logging.String("url", link),
				logging.Int64("size_bytes", res.Size),
				logging.Int("attempts", attempt),
			)
			return res, nil
		}
		lastErr = uerr
		delay, retry := c.retryDelay(ctx, uerr, attempt)
		if !retry {
			break
		}
		logging.WarnWithContext(logger, "upload attempt failed; retrying", "upload_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(uerr),
			logging.String(logging.FieldImpact, "upload delayed"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = &Error{Kind: KindCancelled, Service: service, Err: err}
			break
		}
	}
	return res, lastErr
}

func (c *Client) attempt(ctx context.Context, ep endpoint, service Service, path string) (string, *Error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Kind: KindCancelled, Service: service, Err: err}
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType := multipartBody(ep, path)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.URL, body)
	if err != nil {
		_ = body.Close()
		return "", &Error{Kind: KindNetwork, Service: service, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &Error{Kind: KindCancelled, Service: service, Err: ctx.Err()}
		}
		return "", &Error{Kind: KindNetwork, Service: service, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Service: service, Message: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Kind:       KindServer,
			Service:    service,
			Status:     resp.StatusCode,
			Message:    snippet(string(payload)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	link, err := ep.Parse(payload)
	if err != nil {
		return "", &Error{Kind: KindBadResponse, Service: service, Err: err}
	}
	return link, nil
}

// multipartBody streams the form through a pipe so large files are never
// buffered in memory. The transport closes the reader on failure, which
// unblocks the writer goroutine.
func multipartBody(ep endpoint, path string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, ep, path))
	}()
	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, ep endpoint, path string) error {
	for key, value := range ep.Extra {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	part, err := mw.CreateFormFile(ep.Field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) retryDelay(ctx context.Context, err *Error, attempt int) (time.Duration, bool) {
	if attempt >= c.retryMaxAttempts || ctx.Err() != nil {
		return 0, false
	}
	switch err.Kind {
	case KindServer:
		if err.Status != http.StatusRequestTimeout && err.Status != http.StatusTooManyRequests && err.Status < 500 {
			return 0, false
		}
		if err.retryAfter > 0 {
			return min(err.retryAfter, c.retryMaxDelay), true
		}
		return c.backoffDelay(attempt), true
	case KindNetwork:
		var netErr net.Error
		var urlErr *url.Error
		if errors.As(err.Err, &netErr) || errors.As(err.Err, &urlErr) || errors.Is(err.Err, io.ErrUnexpectedEOF) {
			return c.backoffDelay(attempt), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	return min(delay, c.retryMaxDelay)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
