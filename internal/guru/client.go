// Package guru fetches per-company growth factors from an external market
// data endpoint. The source is optional: when disabled or unreachable the
// updater falls back to volatility jitter alone.
package guru

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"framtrack/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GrowthSource is the interface consumed by the updater engine.
type GrowthSource interface {
	// GetGrowthFactors returns a per-company growth multiplier for the
	// current cycle. A missing company defaults to 1.0 at the caller.
	GetGrowthFactors(ctx context.Context) (map[string]float64, error)
}

// Client is a REST client for the external market data source.
// It implements GrowthSource.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
}

// ensure Client implements the interface
var _ GrowthSource = (*Client)(nil)

// NewClient creates a new market data client from the external config.
func NewClient(cfg *config.External, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &Client{
		client:     client,
		logger:     logger,
		limiter:    limiter,
		maxRetries: retries,
	}
}

// companyFactor is one company's entry in the market data response.
type companyFactor struct {
	GrowthFactor float64 `json:"growth_factor"`
	Confidence   float64 `json:"confidence"`
	LastUpdated  string  `json:"last_updated"`
}

// marketDataResponse is the full response from the /market-data endpoint.
type marketDataResponse struct {
	Success   bool                     `json:"success"`
	Data      map[string]companyFactor `json:"data"`
	Timestamp string                   `json:"timestamp"`
	Source    string                   `json:"source"`
}

// GetGrowthFactors fetches the growth multipliers for all tracked companies.
func (c *Client) GetGrowthFactors(ctx context.Context) (map[string]float64, error) {
	req := c.client.R().
		SetContext(ctx).
		SetResult(&marketDataResponse{}).
		SetHeader("Accept", "application/json")

	resp, err := c.doRequest(ctx, "GET", "/api/v1/market-data", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get market data: %w", err)
	}

	result := resp.Result().(*marketDataResponse)
	if !result.Success {
		return nil, fmt.Errorf("market data source reported failure (source: %s)", result.Source)
	}

	factors := make(map[string]float64, len(result.Data))
	for name, entry := range result.Data {
		if entry.GrowthFactor > 0 {
			factors[name] = entry.GrowthFactor
		}
	}
	return factors, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
}
