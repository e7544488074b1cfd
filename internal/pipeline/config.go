package pipeline

import (
	"bridgeflow-backend/internal/utils"
)

// Config holds dashboard coordinator configuration
type Config struct {
	HomeChainID int64  `json:"homeChainId"` // transfers landing here are inflow
	Network     string `json:"network"`     // network passed to the price feed
	Workers     int    `json:"workers"`     // upstream fetches running at once
	Timezone    string `json:"timezone"`    // IANA zone for calendar buckets and heatmap rows
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		HomeChainID: utils.EnvInt64("HOME_CHAIN_ID", 1),
		Network:     utils.Env("PRICES_NETWORK", "mainnet"),
		Workers:     utils.EnvInt("PIPELINE_WORKERS", 8),
		Timezone:    utils.Env("DASHBOARD_TIMEZONE", "UTC"),
	}
}
