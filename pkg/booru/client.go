package booru

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"boorufetch/pkg/config"
	errs "boorufetch/pkg/errors"
	"boorufetch/pkg/logger"
	"boorufetch/pkg/retry"
)

const defaultUserAgent = "boorufetch/1.0"

// Client talks to a Danbooru-style API: a paginated JSON metadata endpoint
// plus direct media URLs.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	login       string
	apiKey      string
	userAgent   string
	maxAttempts int
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// NewClient creates a client from the run configuration.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	var backoff retry.BackoffStrategy
	switch cfg.Retry.Backoff {
	case "exponential":
		eb := retry.DefaultExponentialBackoff()
		eb.BaseDelay = cfg.Retry.Delay
		backoff = eb
	case "linear":
		lb := retry.DefaultLinearBackoff()
		lb.BaseDelay = cfg.Retry.Delay
		backoff = lb
	default:
		backoff = &retry.ConstantBackoff{Delay: cfg.Retry.Delay}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Download.Timeout,
		},
		apiURL:      cfg.Booru.APIURL,
		login:       cfg.Booru.Login,
		apiKey:      cfg.Booru.APIKey,
		userAgent:   defaultUserAgent,
		maxAttempts: cfg.Retry.MaxAttempts,
		backoff:     backoff,
		logger:      log,
	}
}

func (c *Client) retryConfig(ctx context.Context) *retry.Config {
	return &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	}
}

// FetchPage pulls one page of post metadata. Transport failures are
// retried; a non-2xx response is returned as a fatal api error without
// retrying.
func (c *Client) FetchPage(ctx context.Context, tags string, limit, page int) ([]Post, error) {
	params := url.Values{}
	params.Set("tags", tags)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	if c.login != "" {
		params.Set("login", c.login)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	reqURL := c.apiURL + "?" + params.Encode()

	return retry.DoWithResult(func() ([]Post, error) {
		return c.fetchPageOnce(ctx, reqURL)
	}, c.retryConfig(ctx))
}

func (c *Client) fetchPageOnce(ctx context.Context, reqURL string) ([]Post, error) {
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errs.NewWithCode(errs.ErrorTypeAPI, status,
			"metadata endpoint returned status %d: %s", status, truncateBody(body))
	}

	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, errs.NewWithCode(errs.ErrorTypeAPI, status,
			"failed to parse metadata response: %v", err)
	}
	return posts, nil
}

// DownloadMedia pulls raw media bytes. Unlike the metadata endpoint every
// failure is retried, HTTP error statuses included; retry exhaustion yields
// a download_exhausted error naming the URL and the attempts actually made.
// Context cancellation is passed through, not reported as exhaustion.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	cfg := c.retryConfig(ctx)
	cfg.RetryIf = func(err error) bool { return err != nil }

	attempts := 0
	data, err := retry.DoWithResult(func() ([]byte, error) {
		attempts++
		body, status, err := c.get(ctx, mediaURL)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, errs.NewWithCode(errs.ErrorTypeNetwork, status,
				"media endpoint returned status %d", status)
		}
		return body, nil
	}, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errs.New(errs.ErrorTypeDownloadExhausted,
			"failed to download media after %d attempts: %s", attempts, mediaURL)
	}
	return data, nil
}

// get performs a single GET and drains the body. A short read counts as a
// transport failure so the retrier treats it like a dropped connection.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, errs.New(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      reqURL,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, 0, errs.New(errs.ErrorTypeNetwork, "network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errs.New(errs.ErrorTypeNetwork, "truncated response: %v", err)
	}
	if resp.ContentLength > 0 && int64(len(body)) < resp.ContentLength {
		return nil, resp.StatusCode, errs.New(errs.ErrorTypeNetwork,
			"truncated response: got %d of %d bytes", len(body), resp.ContentLength)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      reqURL,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start),
	})

	return body, resp.StatusCode, nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return fmt.Sprintf("%s...", body[:max])
	}
	return string(body)
}
