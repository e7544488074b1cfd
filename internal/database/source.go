// Package database reads finalized transfers from the transfer store.
package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"

	"go.uber.org/zap"
)

// Driver selects the transfer store backend
type Driver string

const (
	DriverPostgres   Driver = "postgres"
	DriverClickHouse Driver = "clickhouse"
)

// Config holds database configuration
type Config struct {
	Driver Driver `json:"driver"`
	Table  string `json:"table"`

	// PostgreSQL configuration
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`

	// ClickHouse configuration
	ClickHouseAddr     string `json:"clickhouseAddr"`
	ClickHouseDatabase string `json:"clickhouseDatabase"`
	ClickHouseUser     string `json:"clickhouseUser"`
	ClickHousePassword string `json:"clickhousePassword"`

	QueryTimeout time.Duration `json:"queryTimeout"`
	MaxOpenConns int           `json:"maxOpenConns"`
}

// DefaultConfig returns default database configuration from the environment
func DefaultConfig() Config {
	return Config{
		Driver: Driver(utils.Env("DB_DRIVER", string(DriverPostgres))),
		Table:  utils.Env("DB_TABLE", "transfers"),

		Host:     utils.Env("DB_HOST", "localhost"),
		Port:     utils.EnvInt("DB_PORT", 5432),
		User:     utils.Env("DB_USER", "bridgeflow"),
		Password: utils.Env("DB_PASSWORD", "bridgeflow"),
		Database: utils.Env("DB_NAME", "bridgeflow"),
		SSLMode:  utils.Env("DB_SSLMODE", "disable"),

		ClickHouseAddr:     utils.Env("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: utils.Env("CLICKHOUSE_DB", "default"),
		ClickHouseUser:     utils.Env("CLICKHOUSE_USER", "default"),
		ClickHousePassword: utils.Env("CLICKHOUSE_PASSWORD", ""),

		QueryTimeout: utils.EnvDuration("DB_QUERY_TIMEOUT", 30*time.Second),
		MaxOpenConns: utils.EnvInt("DB_MAX_OPEN_CONNS", 25),
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverClickHouse:
	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}

// TransferSource returns finalized transfers. Implementations never return pending transfers
// and make no ordering promise.
type TransferSource interface {
	// Transfers returns transfers with from <= timestamp < to
	Transfers(ctx context.Context, from, to time.Time) ([]models.RawTransfer, error)
	// HistoryTotals returns raw amounts summed per token and destination chain for timestamp < before
	HistoryTotals(ctx context.Context, before time.Time) ([]models.RawTotal, error)
	Close() error
}

// Open connects to the store selected by cfg.Driver
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (TransferSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = utils.ComponentLogger(logger, utils.DatabaseComponent)

	switch cfg.Driver {
	case DriverClickHouse:
		return NewClickHouseSource(ctx, cfg, logger)
	default:
		return NewPostgresSource(ctx, cfg, logger)
	}
}

// rows is the cursor shape shared by database/sql and clickhouse-go
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransfers(r rows) ([]models.RawTransfer, error) {
	var out []models.RawTransfer
	for r.Next() {
		var t models.RawTransfer
		if err := r.Scan(&t.TimestampMs, &t.TokenID, &t.DestinationChainID, &t.RawAmount, &t.Sender, &t.Receiver); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		out = append(out, t)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transfers: %w", err)
	}
	return out, nil
}

func scanTotals(r rows) ([]models.RawTotal, error) {
	var out []models.RawTotal
	for r.Next() {
		var t models.RawTotal
		if err := r.Scan(&t.TokenID, &t.DestinationChainID, &t.RawAmount); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		out = append(out, t)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read totals: %w", err)
	}
	return out, nil
}
