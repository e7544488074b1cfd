package database

import (
	"context"
	"fmt"
	"time"

	"bridgeflow-backend/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// ClickHouseSource reads transfers from ClickHouse
type ClickHouseSource struct {
	conn    driver.Conn
	table   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClickHouseSource connects to ClickHouse and checks the connection
func NewClickHouseSource(ctx context.Context, cfg Config, logger *zap.Logger) (*ClickHouseSource, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout:  10 * time.Second,
		MaxOpenConns: cfg.MaxOpenConns,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("Connected to ClickHouse",
		zap.String("addr", cfg.ClickHouseAddr),
		zap.String("database", cfg.ClickHouseDatabase),
		zap.String("table", cfg.Table))

	return &ClickHouseSource{conn: conn, table: cfg.Table, timeout: cfg.QueryTimeout, logger: logger}, nil
}

func (s *ClickHouseSource) transfersQuery() string {
	return fmt.Sprintf(`
		SELECT toInt64(toUnixTimestamp64Milli(timestamp)),
		       toInt64(token_id), toInt64(destination_chain_id), toString(amount),
		       sender, receiver
		FROM %s
		WHERE status = 'finalized' AND timestamp >= ? AND timestamp < ?`, s.table)
}

func (s *ClickHouseSource) totalsQuery() string {
	return fmt.Sprintf(`
		SELECT toInt64(token_id), toInt64(destination_chain_id), toString(sum(amount))
		FROM %s
		WHERE status = 'finalized' AND timestamp < ?
		GROUP BY token_id, destination_chain_id`, s.table)
}

func (s *ClickHouseSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Transfers returns finalized transfers with from <= timestamp < to
func (s *ClickHouseSource) Transfers(ctx context.Context, from, to time.Time) ([]models.RawTransfer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	r, err := s.conn.Query(ctx, s.transfersQuery(), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer r.Close()

	out, err := scanTransfers(r)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Loaded transfers",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("count", len(out)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// HistoryTotals returns per token and destination chain sums of transfers before before
func (s *ClickHouseSource) HistoryTotals(ctx context.Context, before time.Time) ([]models.RawTotal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.conn.Query(ctx, s.totalsQuery(), before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query history totals: %w", err)
	}
	defer r.Close()
	return scanTotals(r)
}

// Close closes the connection
func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}
