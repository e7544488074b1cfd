package config

import (
	"os"
	"path/filepath"
	"testing"

	"bridgeflow-backend/internal/database"
	"bridgeflow-backend/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unset clears keys for the test and restores them afterwards
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	unset(t, "DB_DRIVER", "DB_TABLE", "HTTP_ADDR", "SNAPSHOT_PERIOD")
	t.Setenv("HTTP_ADDR", ":7000")

	path := writeEnv(t, "DB_DRIVER=clickhouse\nDB_TABLE=bridge.transfers\nHTTP_ADDR=:9999\nSNAPSHOT_PERIOD=30d\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, database.DriverClickHouse, cfg.Database.Driver)
	assert.Equal(t, "bridge.transfers", cfg.Database.Table)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "30d", string(cfg.Scheduler.Period))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	unset(t, "DB_DRIVER", "DB_TABLE", "HTTP_ADDR")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "UTC", cfg.Pipeline.Timezone)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	unset(t, "DB_DRIVER", "DB_TABLE")
	t.Setenv("DB_TABLE", "transfers; DROP TABLE transfers")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Equal(t, utils.ErrorTypeConfig, utils.GetErrorType(err))
	assert.Equal(t, "BAD_DATABASE_CONFIG", utils.GetErrorCode(err))
}
