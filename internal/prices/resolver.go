package prices

import (
	"context"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/tokens"

	"go.uber.org/zap"
)

// Table is a point-in-time price lookup keyed by token id
type Table struct {
	prices map[int64]models.TokenPrice
}

// NewTable creates a table from prices
func NewTable(prices map[int64]models.TokenPrice) *Table {
	cp := make(map[int64]models.TokenPrice, len(prices))
	for id, p := range prices {
		cp[id] = p
	}
	return &Table{prices: cp}
}

// Price returns the price entry of tokenID
func (t *Table) Price(tokenID int64) (models.TokenPrice, bool) {
	if t == nil {
		return models.TokenPrice{}, false
	}
	p, ok := t.prices[tokenID]
	return p, ok
}

// Len returns the number of priced tokens
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.prices)
}

// Resolver joins feed quotes with token metadata
type Resolver struct {
	source     Source
	registry   *tokens.Registry
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewResolver creates a resolver
func NewResolver(source Source, registry *tokens.Registry, staleAfter time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:     source,
		registry:   registry,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Table fetches quotes for network and builds a lookup table.
// Quotes for tokens missing from the registry are skipped. Stale quotes are kept and logged.
func (r *Resolver) Table(ctx context.Context, network string) (*Table, error) {
	quotes, err := r.source.Prices(ctx, network)
	if err != nil {
		return nil, err
	}

	now := r.now()
	prices := make(map[int64]models.TokenPrice, len(quotes))
	var unknown, stale []int64
	for _, q := range quotes {
		info, ok := r.registry.Get(q.TokenID)
		if !ok {
			unknown = append(unknown, q.TokenID)
			continue
		}
		if r.staleAfter > 0 && !q.LastUpdated.IsZero() && now.Sub(q.LastUpdated) > r.staleAfter {
			stale = append(stale, q.TokenID)
		}
		prices[q.TokenID] = models.TokenPrice{
			Ticker:      info.Ticker,
			USDPrice:    q.USDPrice,
			Denominator: tokens.Denominator(info.Decimals),
			Decimals:    info.Decimals,
		}
	}

	if len(unknown) > 0 {
		r.logger.Debug("Skipping quotes for unregistered tokens", zap.Int64s("tokenIds", unknown))
	}
	if len(stale) > 0 {
		r.logger.Warn("Using stale prices",
			zap.Int64s("tokenIds", stale),
			zap.Duration("staleAfter", r.staleAfter))
	}
	return &Table{prices: prices}, nil
}
