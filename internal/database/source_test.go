package database

import (
	"errors"
	"testing"

	"bridgeflow-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ TransferSource = (*PostgresSource)(nil)
	_ TransferSource = (*ClickHouseSource)(nil)
)

type fakeRows struct {
	data    [][]any
	pos     int
	scanErr error
	err     error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	row := f.data[f.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestScanTransfers(t *testing.T) {
	r := &fakeRows{data: [][]any{
		{int64(1700000000000), int64(1), int64(10), "1000000000000000000000000000000", "0xa", "0xb"},
		{int64(1700000000500), int64(2), int64(20), "5", "", ""},
	}}
	out, err := scanTransfers(r)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.RawTransfer{
		TimestampMs:        1700000000000,
		TokenID:            1,
		DestinationChainID: 10,
		RawAmount:          "1000000000000000000000000000000",
		Sender:             "0xa",
		Receiver:           "0xb",
	}, out[0])
}

func TestScanErrors(t *testing.T) {
	_, err := scanTransfers(&fakeRows{data: [][]any{{}}, scanErr: errors.New("bad column")})
	assert.ErrorContains(t, err, "bad column")

	_, err = scanTotals(&fakeRows{err: errors.New("connection reset")})
	assert.ErrorContains(t, err, "connection reset")
}

func TestScanTotals(t *testing.T) {
	out, err := scanTotals(&fakeRows{data: [][]any{{int64(1), int64(10), "42"}}})
	require.NoError(t, err)
	assert.Equal(t, []models.RawTotal{{TokenID: 1, DestinationChainID: 10, RawAmount: "42"}}, out)

	empty, err := scanTotals(&fakeRows{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver, cfg.Table = DriverPostgres, "transfers"
	assert.NoError(t, cfg.Validate())

	cfg.Table = "analytics.transfers"
	assert.NoError(t, cfg.Validate())

	cfg.Table = "transfers; DROP TABLE transfers"
	assert.Error(t, cfg.Validate())

	cfg.Table, cfg.Driver = "transfers", "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestQueriesFilterFinalized(t *testing.T) {
	pg := &PostgresSource{table: "bridge.transfers"}
	ch := &ClickHouseSource{table: "bridge.transfers"}
	for _, q := range []string{pg.transfersQuery(), pg.totalsQuery(), ch.transfersQuery(), ch.totalsQuery()} {
		assert.Contains(t, q, "FROM bridge.transfers")
		assert.Contains(t, q, "status = 'finalized'")
	}
	assert.Contains(t, pg.transfersQuery(), "timestamp >= $1 AND timestamp < $2")
	assert.Contains(t, ch.transfersQuery(), "timestamp >= ? AND timestamp < ?")
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", postgresDSN(cfg))
}

func TestRawTotalAsTransfer(t *testing.T) {
	tr := models.RawTotal{TokenID: 3, DestinationChainID: 7, RawAmount: "99"}.AsTransfer(123)
	assert.Equal(t, models.RawTransfer{TimestampMs: 123, TokenID: 3, DestinationChainID: 7, RawAmount: "99"}, tr)
}
