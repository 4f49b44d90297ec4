package cj

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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storefront/backend/internal/domain/supplier"
)

// maxResponseSize limits response body reads (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxAttempts bounds retries of a single call after 429 responses: one
// initial try plus three backed-off retries.
const maxAttempts = 4

var (
	// ErrNotConfigured indicates missing base URL or credential
	ErrNotConfigured = errors.New("cj: client not configured")
	// ErrQuotaExhausted indicates the 429 retry ceiling was exceeded
	ErrQuotaExhausted = errors.New("cj: quota exhausted after retries")
	// ErrUnexpectedStatus indicates a non-2xx, non-429 response
	ErrUnexpectedStatus = errors.New("cj: unexpected http status")
	// ErrRequestFailed indicates the supplier rejected the request
	ErrRequestFailed = errors.New("cj: request failed")
)

// Config holds supplier API connection settings
type Config struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
	FallbackRPS  float64
	Timeout      time.Duration
	// RetryBaseDelay is the first 429 backoff interval; subsequent
	// delays double. Shrunk in tests.
	RetryBaseDelay time.Duration
}

// Validate checks that the client can be constructed
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrNotConfigured)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", ErrNotConfigured)
	}
	return nil
}

// Client talks to the dropshipping supplier API. All outbound calls
// pass through one shared rate limiter; the quota is global across the
// whole process, not per endpoint.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu            sync.RWMutex
	accessToken   string
	onRateLimited func()
}

// NewClient creates a supplier API client. The limiter starts at the
// configured fallback rate until ApplyQuota is called.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	fallback := config.FallbackRPS
	if fallback <= 0 {
		fallback = 1.0
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(fallback), 1),
		logger:      logger.Named("cj"),
		accessToken: config.AccessToken,
	}, nil
}

// SetRateLimitCallback installs a hook invoked once per HTTP 429 the
// supplier returns, including the one that exhausts the retry ceiling.
// The sync metrics feed on it.
func (c *Client) SetRateLimitCallback(fn func()) {
	c.mu.Lock()
	c.onRateLimited = fn
	c.mu.Unlock()
}

func (c *Client) notifyRateLimited() {
	c.mu.RLock()
	fn := c.onRateLimited
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// RefreshAccessToken exchanges the configured refresh token for a fresh
// access token and installs it for the rest of the run. Callers treat
// failure as non-fatal.
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	if c.config.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token", ErrNotConfigured)
	}

	body := map[string]string{"refreshToken": c.config.RefreshToken}
	data, err := c.doRequest(ctx, http.MethodPost, "/authentication/refreshAccessToken", nil, body)
	if err != nil {
		return err
	}

	var token accessTokenData
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("cj: failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token in refresh response", ErrRequestFailed)
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.mu.Unlock()

	c.logger.Info("access token refreshed")
	return nil
}

// FetchQuota reads the account's advertised requests-per-second quota.
func (c *Client) FetchQuota(ctx context.Context) (float64, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/setting/get", nil, nil)
	if err != nil {
		return 0, err
	}

	var settings settingsData
	if err := json.Unmarshal(data, &settings); err != nil {
		return 0, fmt.Errorf("cj: failed to parse settings response: %w", err)
	}
	if settings.QPSLimit <= 0 {
		return 0, fmt.Errorf("%w: no usable qps limit", ErrRequestFailed)
	}
	return settings.QPSLimit, nil
}

// ApplyQuota installs a requests-per-second rate on the shared limiter.
// Non-positive values fall back to the configured conservative rate.
func (c *Client) ApplyQuota(rps float64) {
	if rps <= 0 {
		rps = c.config.FallbackRPS
	}
	if rps <= 0 {
		rps = 1.0
	}
	c.limiter.SetLimit(rate.Limit(rps))
	c.logger.Info("rate limit applied", zap.Float64("rps", rps))
}

// ListProducts fetches one catalog page for a country code.
func (c *Client) ListProducts(ctx context.Context, page, pageSize int, countryCode string) (*supplier.ProductPage, error) {
	q := url.Values{}
	q.Set("pageNum", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if countryCode != "" {
		q.Set("countryCode", countryCode)
	}

	data, err := c.doRequest(ctx, http.MethodGet, "/product/list", q, nil)
	if err != nil {
		return nil, err
	}

	var pageData supplier.ProductPage
	if err := json.Unmarshal(data, &pageData); err != nil {
		return nil, fmt.Errorf("cj: failed to parse product list: %w", err)
	}
	if pageData.TotalPages == 0 && pageData.PageSize > 0 {
		pageData.TotalPages = (pageData.Total + pageData.PageSize - 1) / pageData.PageSize
	}
	return &pageData, nil
}

// GetProductDetail fetches the full detail record of one product.
func (c *Client) GetProductDetail(ctx context.Context, externalID string) (*supplier.DetailRecord, error) {
	q := url.Values{}
	q.Set("pid", externalID)

	data, err := c.doRequest(ctx, http.MethodGet, "/product/query", q, nil)
	if err != nil {
		return nil, err
	}

	var detail supplier.DetailRecord
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("cj: failed to parse product detail: %w", err)
	}
	return &detail, nil
}

// ListVariants fetches the variant list of one product.
func (c *Client) ListVariants(ctx context.Context, externalID string) ([]supplier.Variant, error) {
	q := url.Values{}
	q.Set("pid", externalID)

	data, err := c.doRequest(ctx, http.MethodGet, "/product/variant/query", q, nil)
	if err != nil {
		return nil, err
	}

	var variants []supplier.Variant
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, fmt.Errorf("cj: failed to parse variants: %w", err)
	}
	return variants, nil
}

// GetProductStock fetches product-level stock by warehouse area.
func (c *Client) GetProductStock(ctx context.Context, externalID string) ([]supplier.AreaStock, error) {
	q := url.Values{}
	q.Set("pid", externalID)

	data, err := c.doRequest(ctx, http.MethodGet, "/product/stock/queryByPid", q, nil)
	if err != nil {
		return nil, err
	}

	var stocks []supplier.AreaStock
	if err := json.Unmarshal(data, &stocks); err != nil {
		return nil, fmt.Errorf("cj: failed to parse stock: %w", err)
	}
	return stocks, nil
}

// ListReviews fetches recent reviews of one product.
func (c *Client) ListReviews(ctx context.Context, externalID string, pageSize int) ([]supplier.Review, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	q := url.Values{}
	q.Set("pid", externalID)
	q.Set("pageNum", "1")
	q.Set("pageSize", strconv.Itoa(pageSize))

	data, err := c.doRequest(ctx, http.MethodGet, "/product/comments", q, nil)
	if err != nil {
		return nil, err
	}

	var reviews reviewListData
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("cj: failed to parse reviews: %w", err)
	}
	return reviews.List, nil
}

// ListCategories fetches the nested category tree.
func (c *Client) ListCategories(ctx context.Context) ([]supplier.CategoryNode, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/product/getCategory", nil, nil)
	if err != nil {
		return nil, err
	}

	var categories categoryListData
	if err := json.Unmarshal(data, &categories); err != nil {
		// Some deployments return the tree as a bare array.
		var list []supplier.CategoryNode
		if err2 := json.Unmarshal(data, &list); err2 != nil {
			return nil, fmt.Errorf("cj: failed to parse categories: %w", err)
		}
		return list, nil
	}
	return categories.List, nil
}

// ListWarehouses fetches the warehouse/region list.
func (c *Client) ListWarehouses(ctx context.Context) ([]supplier.Warehouse, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/logistic/warehouse/list", nil, nil)
	if err != nil {
		return nil, err
	}

	var warehouses warehouseListData
	if err := json.Unmarshal(data, &warehouses); err != nil {
		var list []supplier.Warehouse
		if err2 := json.Unmarshal(data, &list); err2 != nil {
			return nil, fmt.Errorf("cj: failed to parse warehouses: %w", err)
		}
		return list, nil
	}
	return warehouses.List, nil
}

// doRequest performs one supplier API call. Every attempt waits on the
// shared rate limiter first; 429 responses are retried with doubling
// delays up to the attempt ceiling, any other non-2xx status fails
// immediately.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cj: failed to encode request body: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.RetryBaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.Reset()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, status, err := c.send(ctx, method, path, query, payload)
		if err != nil {
			return nil, err
		}

		if status == http.StatusTooManyRequests {
			c.notifyRateLimited()
			if attempt == maxAttempts {
				return nil, fmt.Errorf("%w: %s after %d attempts", ErrQuotaExhausted, path, attempt)
			}
			delay := bo.NextBackOff()
			c.logger.Warn("rate limited, backing off",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("%w: HTTP %d on %s", ErrUnexpectedStatus, status, path)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("cj: failed to parse response envelope: %w", err)
		}
		if !env.IsSuccess() {
			return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, env.Code, env.Message)
		}
		return env.Data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrQuotaExhausted, path)
}

// send issues a single HTTP request and reads the size-limited body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, int, error) {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("cj: failed to create request: %w", err)
	}
	req.Header.Set("CJ-Access-Token", c.token())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("cj: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("cj: failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// token returns the current access token under the read lock.
func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}
