package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bridgeflow-backend/internal/models"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// PostgresSource reads transfers from PostgreSQL
type PostgresSource struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPostgresSource connects to PostgreSQL and checks the connection
func NewPostgresSource(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresSource, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	configurePostgreSQL(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("table", cfg.Table))

	return &PostgresSource{db: db, table: cfg.Table, timeout: cfg.QueryTimeout, logger: logger}, nil
}

func postgresDSN(cfg Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

// configurePostgreSQL sizes the pool for short read-only analytical queries
func configurePostgreSQL(db *sql.DB, cfg Config) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
}

func (s *PostgresSource) transfersQuery() string {
	return fmt.Sprintf(`
		SELECT (EXTRACT(EPOCH FROM timestamp) * 1000)::BIGINT,
		       token_id, destination_chain_id, amount::TEXT,
		       COALESCE(sender, ''), COALESCE(receiver, '')
		FROM %s
		WHERE status = 'finalized' AND timestamp >= $1 AND timestamp < $2`, s.table)
}

func (s *PostgresSource) totalsQuery() string {
	return fmt.Sprintf(`
		SELECT token_id, destination_chain_id, SUM(amount)::TEXT
		FROM %s
		WHERE status = 'finalized' AND timestamp < $1
		GROUP BY token_id, destination_chain_id`, s.table)
}

func (s *PostgresSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Transfers returns finalized transfers with from <= timestamp < to
func (s *PostgresSource) Transfers(ctx context.Context, from, to time.Time) ([]models.RawTransfer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	r, err := s.db.QueryContext(ctx, s.transfersQuery(), from.UTC(), to.UTC())
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
func (s *PostgresSource) HistoryTotals(ctx context.Context, before time.Time) ([]models.RawTotal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.db.QueryContext(ctx, s.totalsQuery(), before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query history totals: %w", err)
	}
	defer r.Close()
	return scanTotals(r)
}

// Close closes the connection pool
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
