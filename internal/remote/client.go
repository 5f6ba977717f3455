package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"fleetreport/internal/config"
	"fleetreport/internal/logging"
)

// maxBodyBytes caps a downloaded export.
const maxBodyBytes = 256 << 20

// Download is a fetched export file.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// StatusError is a non-2xx response that was not retried, or the last one
// after retries ran out.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: status=%d body=%s", e.URL, e.StatusCode, e.Body)
}

// Client downloads report exports from fleet platforms that publish them
// behind a bearer token.
type Client struct {
	httpClient  *http.Client
	limiter     *RateLimiter
	token       string
	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	attempts := cfg.RemoteMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.RemoteTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.RemoteRateLimitRPS),
		token:       cfg.RemoteToken,
		maxAttempts: attempts,
		backoffBase: 250 * time.Millisecond,
		logger:      logger,
	}
}

// Fetch downloads rawURL, retrying network errors, 429 and 5xx responses
// with exponential backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Download, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Download{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Download{}, fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Download{}, err
		}

		dl, wait, err := c.fetchOnce(ctx, u)
		if err == nil {
			c.logger.Info("download done", "url", u.Redacted(), "name", dl.Name, "bytes", len(dl.Data), "attempt", attempt)
			return dl, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !isRetryableStatus(se.StatusCode) {
			return Download{}, err
		}
		if ctx.Err() != nil {
			return Download{}, ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.backoff(attempt, wait)
		c.logger.Warn("download retry", "url", u.Redacted(), "attempt", attempt, "backoff", backoff, "error", err)
		if err := sleepCtx(ctx, backoff); err != nil {
			return Download{}, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("download failed")
	}
	return Download{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, u *url.URL) (Download, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Download{}, 0, err
	}
	if strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, text/html, application/pdf, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Download{}, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Download{}, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return Download{}, retryAfter(resp.Header.Get("Retry-After")), &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode, Body: snippet}
	}

	return Download{
		Name:        fileName(resp.Header.Get("Content-Disposition"), u),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        body,
	}, 0, nil
}

func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	jitter := time.Duration(rand.Int63n(int64(c.backoffBase/2) + 1))
	return c.backoffBase*time.Duration(1<<(attempt-1)) + jitter
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// fileName prefers the Content-Disposition filename and falls back to the
// last path segment of the URL.
func fileName(disposition string, u *url.URL) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "export"
	}
	return name
}
