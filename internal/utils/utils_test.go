package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func bech32Address(t *testing.T, hrp string, payload []byte) string {
	t.Helper()
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode(hrp, data)
	require.NoError(t, err)
	return addr
}

func TestCanonicalAddress(t *testing.T) {
	payload, _ := hex.DecodeString("8ba1f109551bd432803012645ac136ddd64dba72")
	bech := bech32Address(t, "union", payload)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  ", ""},
		{"evm mixed case", "0x8Ba1f109551bD432803012645Ac136ddd64DBA72", "0x8ba1f109551bd432803012645ac136ddd64dba72"},
		{"hex without prefix", "8BA1F109551BD432803012645AC136DDD64DBA72", "0x8ba1f109551bd432803012645ac136ddd64dba72"},
		{"short hex is padded", "0xab", "0x" + strings.Repeat("0", 38) + "ab"},
		{"bech32", bech, "0x8ba1f109551bd432803012645ac136ddd64dba72"},
		{"bech32 upper case", strings.ToUpper(bech), "0x8ba1f109551bd432803012645ac136ddd64dba72"},
		{"opaque", " Alice.Near ", "alice.near"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalAddress(tt.in))
		})
	}
}

func TestCanonicalAddress_BadChecksumFallsBack(t *testing.T) {
	payload, _ := hex.DecodeString("8ba1f109551bd432803012645ac136ddd64dba72")
	bech := bech32Address(t, "union", payload)
	broken := bech[:len(bech)-1] + "q"
	if broken == bech {
		broken = bech[:len(bech)-1] + "p"
	}
	assert.Equal(t, strings.ToLower(broken), CanonicalAddress(broken))
}

func TestSketches(t *testing.T) {
	payload, _ := hex.DecodeString("8ba1f109551bd432803012645ac136ddd64dba72")

	a := NewAddressSketch()
	InsertAddress(a, "0x8ba1f109551bd432803012645ac136ddd64dba72")
	InsertAddress(a, bech32Address(t, "union", payload))
	InsertAddress(a, "")
	InsertAddress(nil, "0x01")
	assert.Equal(t, int64(1), EstimateUnique(a))

	b := NewAddressSketch()
	for i := 0; i < 10; i++ {
		InsertAddress(b, fmt.Sprintf("0x%040x", i+1))
	}

	merged, err := MergeSketches(a, nil, b)
	require.NoError(t, err)
	assert.Equal(t, int64(11), EstimateUnique(merged))
	assert.Equal(t, int64(1), EstimateUnique(a), "inputs stay untouched")
	assert.Equal(t, int64(10), EstimateUnique(b))
	assert.Zero(t, EstimateUnique(nil))

	empty, err := MergeSketches()
	require.NoError(t, err)
	assert.Zero(t, EstimateUnique(empty))
}

func TestMergeSketches_PrecisionMismatch(t *testing.T) {
	_, err := MergeSketches(NewAddressSketch(), hyperloglog.New14())
	require.Error(t, err)
	assert.Equal(t, "SKETCH_MERGE", GetErrorCode(err))
	assert.ErrorContains(t, err, "precisions must be equal")
}

func TestEnv(t *testing.T) {
	t.Setenv("BF_STR", "value")
	t.Setenv("BF_INT", "12")
	t.Setenv("BF_BAD_INT", "-3")
	t.Setenv("BF_I64", "-7")
	t.Setenv("BF_DUR", "90s")
	t.Setenv("BF_LIST", " a, ,b ")

	assert.Equal(t, "value", Env("BF_STR", "def"))
	assert.Equal(t, "def", Env("BF_MISSING", "def"))
	assert.Equal(t, 12, EnvInt("BF_INT", 1))
	assert.Equal(t, 1, EnvInt("BF_BAD_INT", 1))
	assert.Equal(t, int64(-7), EnvInt64("BF_I64", 0))
	assert.Equal(t, 90*time.Second, EnvDuration("BF_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDuration("BF_STR", time.Second))
	assert.Equal(t, []string{"a", "b"}, EnvSlice("BF_LIST", nil, ","))
	assert.Equal(t, []string{"x"}, EnvSlice("BF_MISSING", []string{"x"}, ","))
}

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(cause, ErrorTypeUpstream, "PRICES_UNAVAILABLE", "failed to load prices", PricesComponent).
		WithContext("network", "mainnet")
	wrapped := fmt.Errorf("build: %w", err)

	assert.Equal(t, ErrorTypeUpstream, GetErrorType(wrapped))
	assert.Equal(t, "PRICES_UNAVAILABLE", GetErrorCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "[UPSTREAM:PRICES_UNAVAILABLE] failed to load prices: connection refused", err.Error())

	assert.Equal(t, ErrorTypeInternal, GetErrorType(cause))
	assert.Equal(t, "UNKNOWN", GetErrorCode(cause))
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	LogError(logger, "fetch failed", NewAppError(ErrorTypeConfig, "BAD_TIMEZONE", "invalid timezone", CoordinatorComponent).
		WithContext("timezone", "Mars/Olympus"))
	LogError(logger, "plain failure", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "BAD_TIMEZONE", fields["errorCode"])
	assert.Equal(t, "coordinator", fields["component"])
	assert.Equal(t, "Mars/Olympus", fields["timezone"])
	assert.Equal(t, "plain failure", entries[1].Message)
}

func TestComponentLogger(t *testing.T) {
	assert.NotNil(t, ComponentLogger(nil, ServerComponent))

	core, logs := observer.New(zap.InfoLevel)
	ComponentLogger(zap.New(core), ServerComponent).Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "server", logs.All()[0].LoggerName)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}
