package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls how the process logger is built
type LogConfig struct {
	Level    string `json:"level"`    // debug, info, warn, error
	Encoding string `json:"encoding"` // json or console
}

// DefaultLogConfig returns logging configuration from LOG_LEVEL / LOG_ENCODING
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:    Env("LOG_LEVEL", "info"),
		Encoding: Env("LOG_ENCODING", "json"),
	}
}

// NewLogger builds the process-wide zap logger
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = cfg.Encoding
	if zcfg.Encoding == "" {
		zcfg.Encoding = "json"
	}

	switch strings.ToLower(cfg.Level) {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zcfg.Development = true
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// Component logger names
const (
	CoordinatorComponent = "coordinator"
	NormalizerComponent  = "normalizer"
	StatsComponent       = "stats"
	PricesComponent      = "prices"
	DatabaseComponent    = "database"
	BroadcasterComponent = "broadcaster"
	SchedulerComponent   = "scheduler"
	ServerComponent      = "server"
)

// ComponentLogger returns a named child logger, or a no-op logger when base is nil
func ComponentLogger(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}
