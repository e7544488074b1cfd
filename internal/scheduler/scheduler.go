package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/pipeline"
	"bridgeflow-backend/internal/stats"
	"bridgeflow-backend/internal/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SnapshotMessage is the hub message type of scheduled dashboard snapshots
const SnapshotMessage = "dashboard"

// Config holds scheduler configuration. Specs use the six-field cron format (seconds first).
type Config struct {
	SnapshotSpec  string        `json:"snapshotSpec"`  // rebuild and broadcast the default dashboard
	WarmPriceSpec string        `json:"warmPriceSpec"` // refresh the cached price feed, empty disables
	JobTimeout    time.Duration `json:"jobTimeout"`    // bound on a single run
	Period        stats.Period  `json:"period"`        // period of the broadcast snapshot
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		SnapshotSpec:  utils.Env("SNAPSHOT_CRON", "*/30 * * * * *"),
		WarmPriceSpec: utils.Env("PRICE_WARM_CRON", "0 * * * * *"),
		JobTimeout:    utils.EnvDuration("SCHEDULER_JOB_TIMEOUT", 25*time.Second),
		Period:        stats.Period(utils.Env("SNAPSHOT_PERIOD", string(stats.Period7D))),
	}
}

// Builder builds dashboards
type Builder interface {
	Build(ctx context.Context, req pipeline.Request) (*pipeline.Dashboard, error)
}

// Publisher pushes a payload to every connected client
type Publisher interface {
	Publish(msgType string, data interface{}) error
}

// PriceWarmer refreshes cached prices
type PriceWarmer interface {
	Refresh(ctx context.Context, network string) ([]models.Quote, error)
}

// Scheduler runs the periodic snapshot and price cache jobs
type Scheduler struct {
	config    Config
	network   string
	builder   Builder
	publisher Publisher
	warmer    PriceWarmer
	cron      *cron.Cron
	logger    *zap.Logger

	snapshots atomic.Int64
	failures  atomic.Int64
}

// NewScheduler registers the jobs. warmer may be nil when prices are not cached.
func NewScheduler(config Config, network string, builder Builder, publisher Publisher, warmer PriceWarmer, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		config:    config,
		network:   network,
		builder:   builder,
		publisher: publisher,
		warmer:    warmer,
		logger:    utils.ComponentLogger(logger, utils.SchedulerComponent),
	}
	if s.config.JobTimeout <= 0 {
		s.config.JobTimeout = 25 * time.Second
	}
	if _, err := stats.ParsePeriod(string(config.Period)); err != nil {
		return nil, utils.WrapError(err, utils.ErrorTypeConfig, "BAD_SNAPSHOT_PERIOD", "invalid snapshot period", utils.SchedulerComponent)
	}

	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{s.logger})))
	if _, err := s.cron.AddFunc(config.SnapshotSpec, s.runSnapshot); err != nil {
		return nil, utils.WrapError(err, utils.ErrorTypeConfig, "BAD_CRON_SPEC", "invalid snapshot schedule", utils.SchedulerComponent).
			WithContext("spec", config.SnapshotSpec)
	}
	if warmer != nil && config.WarmPriceSpec != "" {
		if _, err := s.cron.AddFunc(config.WarmPriceSpec, s.runWarmPrices); err != nil {
			return nil, utils.WrapError(err, utils.ErrorTypeConfig, "BAD_CRON_SPEC", "invalid price warm schedule", utils.SchedulerComponent).
				WithContext("spec", config.WarmPriceSpec)
		}
	}
	return s, nil
}

// Start publishes a first snapshot, runs the cron until ctx is done and waits for running jobs
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Scheduler started",
		zap.String("snapshotSpec", s.config.SnapshotSpec),
		zap.String("warmPriceSpec", s.config.WarmPriceSpec),
		zap.String("period", string(s.config.Period)))

	s.runSnapshot()
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped",
		zap.Int64("snapshots", s.snapshots.Load()),
		zap.Int64("failures", s.failures.Load()))
}

func (s *Scheduler) runSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	if err := s.Snapshot(ctx); err != nil {
		s.failures.Add(1)
		utils.LogError(s.logger, "Snapshot failed", err)
	}
}

func (s *Scheduler) runWarmPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	quotes, err := s.warmer.Refresh(ctx, s.network)
	if err != nil {
		s.logger.Warn("Price cache refresh failed", zap.String("network", s.network), zap.Error(err))
		return
	}
	s.logger.Debug("Price cache refreshed", zap.String("network", s.network), zap.Int("quotes", len(quotes)))
}

// Snapshot builds the default dashboard and publishes it
func (s *Scheduler) Snapshot(ctx context.Context) error {
	dash, err := s.builder.Build(ctx, pipeline.Request{Period: s.config.Period})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(SnapshotMessage, dash); err != nil {
		return err
	}
	s.snapshots.Add(1)
	return nil
}

// Stats returns job counters
func (s *Scheduler) Stats() map[string]interface{} {
	return map[string]interface{}{
		"snapshots":     s.snapshots.Load(),
		"failures":      s.failures.Load(),
		"snapshotSpec":  s.config.SnapshotSpec,
		"warmPriceSpec": s.config.WarmPriceSpec,
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
