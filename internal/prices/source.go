// Package prices resolves USD unit prices for bridged tokens.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"
)

// Config holds price resolver configuration
type Config struct {
	BaseURL      string        `json:"baseUrl"`      // price feed root, GET <BaseURL>/prices?network=<n>
	Network      string        `json:"network"`      // network passed to the feed
	Timeout      time.Duration `json:"timeout"`      // HTTP timeout per request
	CacheTTL     time.Duration `json:"cacheTtl"`     // how long quotes stay in Redis, 0 disables caching
	StaleAfter   time.Duration `json:"staleAfter"`   // quotes older than this are logged as stale
	RedisAddr    string        `json:"redisAddr"`    // empty disables caching
	RedisDB      int           `json:"redisDb"`      // Redis logical database
	RedisKeyBase string        `json:"redisKeyBase"` // key prefix
}

// DefaultConfig returns default price resolver configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      utils.Env("PRICES_URL", "http://localhost:8081"),
		Network:      utils.Env("PRICES_NETWORK", "mainnet"),
		Timeout:      utils.EnvDuration("PRICES_TIMEOUT", 10*time.Second),
		CacheTTL:     utils.EnvDuration("PRICES_CACHE_TTL", time.Minute),
		StaleAfter:   utils.EnvDuration("PRICES_STALE_AFTER", time.Hour),
		RedisAddr:    utils.Env("REDIS_ADDR", ""),
		RedisDB:      utils.EnvInt("REDIS_DB", 0),
		RedisKeyBase: utils.Env("REDIS_KEY_PREFIX", "bridgeflow"),
	}
}

// Source returns the latest quotes of a network
type Source interface {
	Prices(ctx context.Context, network string) ([]models.Quote, error)
}

// HTTPSource reads quotes from the price feed
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a price feed client
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Prices fetches quotes from <baseURL>/prices?network=<network>
func (s *HTTPSource) Prices(ctx context.Context, network string) ([]models.Quote, error) {
	endpoint := s.baseURL + "/prices?network=" + url.QueryEscape(network)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price request returned status %d", resp.StatusCode)
	}

	var quotes []models.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}
	return quotes, nil
}
