package guru

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"framtrack/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := &Client{
		client:     resty.New().SetBaseURL(server.URL),
		logger:     zap.NewNop(), // Use a no-op logger for tests
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: 1, // No backoff sleeps in tests
	}

	return client, server
}

func TestGetGrowthFactors(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockResponse := `{
			"success": true,
			"data": {
				"John Deere": {"growth_factor": 1.05, "confidence": 0.9, "last_updated": "2025-04-15T12:00:00Z"},
				"Kubota": {"growth_factor": 1.08, "confidence": 0.85, "last_updated": "2025-04-15T12:00:00Z"},
				"New Holland": {"growth_factor": 0, "confidence": 0.5, "last_updated": "2025-04-15T12:00:00Z"}
			},
			"timestamp": "2025-04-15T12:00:00Z",
			"source": "test"
		}`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/market-data", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		factors, err := client.GetGrowthFactors(context.Background())

		require.NoError(t, err)
		assert.InDelta(t, 1.05, factors["John Deere"], 0.001)
		assert.InDelta(t, 1.08, factors["Kubota"], 0.001)
		// Zero or negative factors are dropped rather than zeroing sales.
		_, ok := factors["New Holland"]
		assert.False(t, ok)
	})

	t.Run("SourceReportedFailure", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success": false, "data": {}, "source": "test"}`))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.GetGrowthFactors(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "reported failure")
	})

	t.Run("ServerError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail": "boom"}`))
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.GetGrowthFactors(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get market data")
	})

	t.Run("ClientErrorDoesNotRetry", func(t *testing.T) {
		calls := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusNotFound)
		})

		client, server := setupTestServer(handler)
		defer server.Close()

		_, err := client.GetGrowthFactors(context.Background())
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestNewClient(t *testing.T) {
	cfg := config.External{
		BaseURL:        "http://localhost:9000",
		TimeoutSeconds: 5,
		RateLimit:      2,
		RateLimitBurst: 1,
		MaxRetries:     3,
	}
	client := NewClient(&cfg, zap.NewNop())
	require.NotNil(t, client)
	assert.Equal(t, 3, client.maxRetries)

	// A zero retry budget still attempts the request once.
	cfg.MaxRetries = 0
	client = NewClient(&cfg, zap.NewNop())
	assert.Equal(t, 1, client.maxRetries)
}
