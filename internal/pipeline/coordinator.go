// Package pipeline builds dashboards: it fetches transfers and prices, normalizes them once and
// runs the bucketing, cumulative, heatmap and totals aggregations over the result.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"bridgeflow-backend/internal/database"
	"bridgeflow-backend/internal/heatmap"
	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/normalizer"
	"bridgeflow-backend/internal/prices"
	"bridgeflow-backend/internal/stats"
	"bridgeflow-backend/internal/utils"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// PriceResolver builds price tables for a network
type PriceResolver interface {
	Table(ctx context.Context, network string) (*prices.Table, error)
}

// Request selects what a dashboard shows
type Request struct {
	Period stats.Period      `json:"period"`
	Tokens []string          `json:"tokens,omitempty"` // tickers, empty or "All" for every token
	Flow   models.FlowFilter `json:"flow"`             // volume chart and heatmap filter
	Value  stats.ValueField  `json:"value"`            // what chart buckets sum
	Metric heatmap.Metric    `json:"metric"`           // what heatmap cells sum
	// Granularity overrides the period's default bucket size
	Granularity stats.Granularity `json:"granularity,omitempty"`
	// End is where the window ends. Zero means now.
	End time.Time `json:"end,omitempty"`
}

// Dashboard is every aggregation of one request
type Dashboard struct {
	Period      stats.Period                      `json:"period"`
	Window      stats.Window                      `json:"window"`
	Previous    *stats.Window                     `json:"previous,omitempty"`
	Granularity stats.Granularity                 `json:"granularity"`
	Volume      map[string]stats.TokenSeries      `json:"volume"`
	Cumulative  map[string]stats.CumulativeSeries `json:"cumulative"`
	Heatmap     heatmap.Result                    `json:"heatmap"`
	Totals      []stats.CardTotal                 `json:"totals"`
	Dropped     []normalizer.Drop                 `json:"dropped,omitempty"`
	GeneratedAt time.Time                         `json:"generatedAt"`
}

// Coordinator builds dashboards. Safe for concurrent use.
type Coordinator struct {
	config    Config
	transfers database.TransferSource
	prices    PriceResolver
	pool      pond.Pool
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator creates a dashboard coordinator
func NewCoordinator(config Config, transfers database.TransferSource, resolver PriceResolver, logger *zap.Logger) (*Coordinator, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrorTypeConfig, "BAD_TIMEZONE", "invalid dashboard timezone", utils.CoordinatorComponent).
			WithContext("timezone", config.Timezone)
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{
		config:    config,
		transfers: transfers,
		prices:    resolver,
		pool:      pond.NewPool(workers),
		location:  loc,
		logger:    utils.ComponentLogger(logger, utils.CoordinatorComponent),
		now:       time.Now,
	}, nil
}

// Stop waits for running fetches and stops the worker pool
func (c *Coordinator) Stop() {
	c.pool.StopAndWait()
}

// Validate fills request defaults and rejects unknown values
func (r *Request) Validate() error {
	if r.Period == "" {
		r.Period = stats.Period7D
	}
	p, err := stats.ParsePeriod(string(r.Period))
	if err != nil {
		return validationError(err)
	}
	r.Period = p

	if r.Flow, err = models.ParseFlowFilter(string(r.Flow)); err != nil {
		return validationError(err)
	}
	if r.Value, err = stats.ParseValueField(string(r.Value)); err != nil {
		return validationError(err)
	}
	if r.Metric, err = heatmap.ParseMetric(string(r.Metric)); err != nil {
		return validationError(err)
	}
	if r.Granularity != "" {
		if r.Granularity, err = stats.ParseGranularity(string(r.Granularity)); err != nil {
			return validationError(err)
		}
	}
	return nil
}

func validationError(err error) error {
	return utils.WrapError(err, utils.ErrorTypeValidation, "BAD_REQUEST", "invalid dashboard request", utils.CoordinatorComponent)
}

type fetched struct {
	current  []models.RawTransfer
	previous []models.RawTransfer
	history  []models.RawTotal
	table    *prices.Table
}

// fetch runs every upstream read of a dashboard at once. Any failure fails the whole fetch.
func (c *Coordinator) fetch(ctx context.Context, window stats.Window, prev *stats.Window) (fetched, error) {
	var (
		out                                 fetched
		currentErr, previousErr, historyErr error
		pricesErr                           error
	)

	group := c.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			currentErr = err
			return
		}
		out.current, currentErr = c.transfers.Transfers(groupCtx, window.Start, window.End)
	})
	if prev != nil {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				previousErr = err
				return
			}
			out.previous, previousErr = c.transfers.Transfers(groupCtx, prev.Start, prev.End)
		})
	}
	if window.Start.After(stats.AllTimeStart) {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				historyErr = err
				return
			}
			out.history, historyErr = c.transfers.HistoryTotals(groupCtx, window.Start)
		})
	}
	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			pricesErr = err
			return
		}
		out.table, pricesErr = c.prices.Table(groupCtx, c.config.Network)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		c.logger.Warn("Dashboard fetch group failed", zap.Error(err))
	}

	switch {
	case currentErr != nil:
		return out, upstreamError(currentErr, "TRANSFERS_UNAVAILABLE", "failed to load current window transfers")
	case previousErr != nil:
		return out, upstreamError(previousErr, "TRANSFERS_UNAVAILABLE", "failed to load previous window transfers")
	case historyErr != nil:
		return out, upstreamError(historyErr, "HISTORY_UNAVAILABLE", "failed to load pre-window totals")
	case pricesErr != nil:
		return out, upstreamError(pricesErr, "PRICES_UNAVAILABLE", "failed to load prices")
	}
	return out, nil
}

func upstreamError(err error, code, msg string) error {
	return utils.WrapError(err, utils.ErrorTypeUpstream, code, msg, utils.CoordinatorComponent)
}

// Build fetches and aggregates the dashboard of req
func (c *Coordinator) Build(ctx context.Context, req Request) (*Dashboard, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	end := req.End
	if end.IsZero() {
		end = c.now()
	}
	window := req.Period.Window(end)
	if !window.Valid() {
		c.logger.Warn("Dashboard window is inverted, returning empty aggregates",
			zap.String("period", string(req.Period)),
			zap.Time("start", window.Start),
			zap.Time("end", window.End))
	}
	var prev *stats.Window
	if p, ok := req.Period.Previous(window); ok {
		prev = &p
	}

	started := time.Now()
	data, err := c.fetch(ctx, window, prev)
	if err != nil {
		utils.LogError(c.logger, "Dashboard fetch failed", err)
		return nil, err
	}

	current := c.normalize("current", data.current, data.table)
	previous := c.normalize("previous", data.previous, data.table)
	history := c.normalize("history", historyTransfers(data.history, window.Start), data.table)

	current.Transfers = filterTokens(current.Transfers, req.Tokens)
	previous.Transfers = filterTokens(previous.Transfers, req.Tokens)
	history.Transfers = filterTokens(history.Transfers, req.Tokens)

	granularity := req.Granularity
	if granularity == "" {
		granularity = req.Period.Granularity()
	}

	dash := &Dashboard{
		Period:      req.Period,
		Window:      window,
		Previous:    prev,
		Granularity: granularity,
		Dropped:     current.Dropped,
		GeneratedAt: end,
	}

	dash.Volume = stats.Bucket(current.Transfers, stats.BucketOptions{
		Granularity: granularity,
		Window:      window,
		Value:       req.Value,
		Flow:        req.Flow,
		Location:    c.location,
	})

	deltas := stats.Bucket(current.Transfers, stats.BucketOptions{
		Granularity: granularity,
		Window:      window,
		Value:       req.Value,
		Flow:        models.FlowNet,
		Location:    c.location,
	})
	carry := stats.CarryForward(history.Transfers, window.Start, req.Value, models.FlowNet)
	dash.Cumulative = stats.Cumulate(deltas, carry)

	view := heatmap.ViewFor(req.Period)
	heatFlow := req.Flow
	if heatFlow == models.FlowNet {
		heatFlow = models.FlowAll
	}
	heatRecords := current.Transfers
	if view == heatmap.ViewMonthly {
		heatRecords = append(append([]models.NormalizedTransfer(nil), previous.Transfers...), current.Transfers...)
	}
	dash.Heatmap = heatmap.Summarize(heatRecords, heatmap.Options{
		View:     view,
		Metric:   req.Metric,
		Flow:     heatFlow,
		Window:   window,
		Now:      end,
		Location: c.location,
	})

	prevAgg := stats.AggregateWindow(nil, window)
	if prev != nil {
		prevAgg = stats.AggregateWindow(previous.Transfers, *prev)
	}
	if dash.Totals, err = stats.CalculateTotals(stats.AggregateWindow(current.Transfers, window), prevAgg, req.Tokens); err != nil {
		utils.LogError(c.logger, "Totals failed", err)
		return nil, err
	}

	c.logger.Debug("Dashboard built",
		zap.String("period", string(req.Period)),
		zap.Int("transfers", len(current.Transfers)),
		zap.Int("previousTransfers", len(previous.Transfers)),
		zap.Int("historyRows", len(data.history)),
		zap.Duration("took", time.Since(started)))
	return dash, nil
}

func (c *Coordinator) normalize(stage string, raw []models.RawTransfer, table *prices.Table) normalizer.Result {
	res := normalizer.Normalize(raw, table, c.config.HomeChainID)
	for _, d := range res.Dropped {
		c.logger.Warn("Dropped transfers",
			zap.String("stage", stage),
			zap.Int64("tokenId", d.TokenID),
			zap.String("reason", string(d.Reason)),
			zap.Int("count", d.Count))
	}
	return res
}

// historyTransfers stamps pre-window totals just before the window so they only feed carry-forward
func historyTransfers(totals []models.RawTotal, windowStart time.Time) []models.RawTransfer {
	if len(totals) == 0 {
		return nil
	}
	at := windowStart.UnixMilli() - 1
	out := make([]models.RawTransfer, len(totals))
	for i, t := range totals {
		out[i] = t.AsTransfer(at)
	}
	return out
}

func filterTokens(records []models.NormalizedTransfer, tokens []string) []models.NormalizedTransfer {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if strings.EqualFold(t, stats.AllTokens) {
			return records
		}
		if t != "" {
			set[t] = true
		}
	}
	if len(set) == 0 {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if set[r.Token] {
			out = append(out, r)
		}
	}
	return out
}

