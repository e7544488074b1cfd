package stats

import (
	"math"
	"sort"
	"strings"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"

	"github.com/axiomhq/hyperloglog"
)

// AllTokens is the token filter sentinel meaning no filtering
const AllTokens = "All"

// CardKind names a dashboard card
type CardKind string

const (
	CardInflow          CardKind = "inflow"
	CardOutflow         CardKind = "outflow"
	CardNet             CardKind = "net"
	CardUniqueAddresses CardKind = "unique_addresses"
)

// CardTotal is a scalar card value with its change against the previous window.
// PctChange is nil when the previous value gives no meaningful ratio.
type CardTotal struct {
	Kind      CardKind `json:"kind"`
	Value     float64  `json:"value"`
	Previous  float64  `json:"previous"`
	PctChange *float64 `json:"pctChange"`
}

// WindowAggregates holds per-token USD sums and address sketches for one window
type WindowAggregates struct {
	Inflow    map[string]float64             `json:"inflow"`
	Outflow   map[string]float64             `json:"outflow"`
	Addresses map[string]*hyperloglog.Sketch `json:"-"`
}

// AggregateWindow reduces the transfers inside w to per-token inflow/outflow USD sums
// and per-token sketches of sender and receiver addresses
func AggregateWindow(records []models.NormalizedTransfer, w Window) WindowAggregates {
	agg := WindowAggregates{
		Inflow:    make(map[string]float64),
		Outflow:   make(map[string]float64),
		Addresses: make(map[string]*hyperloglog.Sketch),
	}
	if w.Start.After(w.End) {
		return agg
	}
	for _, r := range records {
		if !w.ContainsMs(r.TimestampMs) {
			continue
		}
		if r.Direction == models.Inflow {
			agg.Inflow[r.Token] += r.AmountUSD
		} else {
			agg.Outflow[r.Token] += r.AmountUSD
		}
		sketch, ok := agg.Addresses[r.Token]
		if !ok {
			sketch = utils.NewAddressSketch()
			agg.Addresses[r.Token] = sketch
		}
		utils.InsertAddress(sketch, r.Sender)
		utils.InsertAddress(sketch, r.Receiver)
	}
	return agg
}

// tokenSet returns nil when the filter selects every token
func tokenSet(filter []string) map[string]bool {
	if len(filter) == 0 {
		return nil
	}
	set := make(map[string]bool, len(filter))
	for _, t := range filter {
		t = strings.TrimSpace(t)
		if strings.EqualFold(t, AllTokens) {
			return nil
		}
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// sumFiltered adds values in sorted key order so equal inputs always give bit-identical sums
func sumFiltered(values map[string]float64, set map[string]bool) float64 {
	keys := make([]string, 0, len(values))
	for k := range values {
		if set == nil || set[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var total float64
	for _, k := range keys {
		total += values[k]
	}
	return total
}

func uniqueFiltered(sketches map[string]*hyperloglog.Sketch, set map[string]bool) (float64, error) {
	selected := make([]*hyperloglog.Sketch, 0, len(sketches))
	for k, s := range sketches {
		if set == nil || set[k] {
			selected = append(selected, s)
		}
	}
	merged, err := utils.MergeSketches(selected...)
	if err != nil {
		return 0, err
	}
	return float64(utils.EstimateUnique(merged)), nil
}

// PercentChange returns ((current - previous) / previous) * 100, or nil when that is not finite
func PercentChange(current, previous float64) *float64 {
	pct := (current - previous) / previous * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil
	}
	return &pct
}

// CalculateTotals builds the inflow, outflow, net and unique address cards for the tokens
// in tokenFilter, each with its percent change against previous. It fails only when the
// address sketches cannot be merged.
func CalculateTotals(current, previous WindowAggregates, tokenFilter []string) ([]CardTotal, error) {
	set := tokenSet(tokenFilter)

	curIn, prevIn := sumFiltered(current.Inflow, set), sumFiltered(previous.Inflow, set)
	curOut, prevOut := sumFiltered(current.Outflow, set), sumFiltered(previous.Outflow, set)
	curUnique, err := uniqueFiltered(current.Addresses, set)
	if err != nil {
		return nil, err
	}
	prevUnique, err := uniqueFiltered(previous.Addresses, set)
	if err != nil {
		return nil, err
	}

	card := func(kind CardKind, cur, prev float64) CardTotal {
		return CardTotal{Kind: kind, Value: cur, Previous: prev, PctChange: PercentChange(cur, prev)}
	}
	return []CardTotal{
		card(CardInflow, curIn, prevIn),
		card(CardOutflow, curOut, prevOut),
		card(CardNet, curIn-curOut, prevIn-prevOut),
		card(CardUniqueAddresses, curUnique, prevUnique),
	}, nil
}
