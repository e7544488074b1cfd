package tokens

import (
	"os"
	"path/filepath"
	"testing"

	"bridgeflow-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenYAML = `
tokens:
  - id: 2
    ticker: USDC
    name: USD Coin
    decimals: 6
  - id: 1
    ticker: ETH
    name: Ether
    decimals: 18
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(tokenYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	eth, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, models.TokenInfo{ID: 1, Ticker: "ETH", Name: "Ether", Decimals: 18}, eth)

	_, ok = r.Get(3)
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, []string{"ETH", "USDC"}, r.Tickers())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tokenYAML), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "tokens: [",
		"no ticker":    "tokens:\n  - id: 1\n    decimals: 6\n",
		"bad decimals": "tokens:\n  - id: 1\n    ticker: X\n    decimals: 99\n",
		"duplicate":    "tokens:\n  - id: 1\n    ticker: X\n  - id: 1\n    ticker: Y\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestReplace(t *testing.T) {
	r, err := NewRegistry(models.TokenInfo{ID: 1, Ticker: "ETH", Decimals: 18}, models.TokenInfo{ID: 2, Ticker: "USDC", Decimals: 6})
	require.NoError(t, err)

	require.NoError(t, r.Replace([]models.TokenInfo{{ID: 2, Ticker: "USDC.e", Decimals: 6}}))
	assert.Equal(t, 1, r.Len())
	usdc, ok := r.Get(2)
	require.True(t, ok)
	assert.Equal(t, "USDC.e", usdc.Ticker)

	// an invalid list leaves the registry untouched
	assert.Error(t, r.Replace([]models.TokenInfo{{ID: 5}}))
	assert.Equal(t, 1, r.Len())
}

func TestDenominator(t *testing.T) {
	assert.Equal(t, 1e18, Denominator(18))
	assert.Equal(t, 1.0, Denominator(0))
}
