// Package tokens holds the metadata of bridged tokens.
package tokens

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"

	"github.com/puzpuzpuz/xsync/v4"
	"gopkg.in/yaml.v3"
)

// Config holds token registry configuration
type Config struct {
	File string `json:"file"` // YAML token list
}

// DefaultConfig returns default token registry configuration
func DefaultConfig() Config {
	return Config{File: utils.Env("TOKENS_FILE", "tokens.yaml")}
}

type file struct {
	Tokens []models.TokenInfo `yaml:"tokens"`
}

// Registry maps token ids to their metadata. Safe for concurrent use.
type Registry struct {
	byID *xsync.Map[int64, models.TokenInfo]
}

// NewRegistry creates a registry holding tokens
func NewRegistry(tokens ...models.TokenInfo) (*Registry, error) {
	r := &Registry{byID: xsync.NewMap[int64, models.TokenInfo]()}
	if err := r.Replace(tokens); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads a registry from a YAML file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return Parse(data)
}

// Parse reads a registry from YAML of the form
//
//	tokens:
//	  - id: 1
//	    ticker: ETH
//	    name: Ether
//	    decimals: 18
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return NewRegistry(f.Tokens...)
}

func validate(t models.TokenInfo) error {
	if strings.TrimSpace(t.Ticker) == "" {
		return fmt.Errorf("token %d has no ticker", t.ID)
	}
	if t.Decimals < 0 || t.Decimals > 36 {
		return fmt.Errorf("token %d (%s) has invalid decimals %d", t.ID, t.Ticker, t.Decimals)
	}
	return nil
}

// Replace swaps the registry contents for tokens. Nothing changes if any token is invalid.
func (r *Registry) Replace(tokens []models.TokenInfo) error {
	seen := make(map[int64]bool, len(tokens))
	for _, t := range tokens {
		if err := validate(t); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate token id %d", t.ID)
		}
		seen[t.ID] = true
	}

	r.byID.Range(func(id int64, _ models.TokenInfo) bool {
		if !seen[id] {
			r.byID.Delete(id)
		}
		return true
	})
	for _, t := range tokens {
		r.byID.Store(t.ID, t)
	}
	return nil
}

// Get returns the token with id
func (r *Registry) Get(id int64) (models.TokenInfo, bool) {
	return r.byID.Load(id)
}

// Len returns the number of tokens
func (r *Registry) Len() int {
	return r.byID.Size()
}

// All returns every token ordered by id
func (r *Registry) All() []models.TokenInfo {
	out := make([]models.TokenInfo, 0, r.byID.Size())
	r.byID.Range(func(_ int64, t models.TokenInfo) bool {
		out = append(out, t)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tickers returns every ticker, sorted
func (r *Registry) Tickers() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, t := range all {
		out[i] = t.Ticker
	}
	sort.Strings(out)
	return out
}

// Denominator returns 10^decimals
func Denominator(decimals int32) float64 {
	return math.Pow10(int(decimals))
}
