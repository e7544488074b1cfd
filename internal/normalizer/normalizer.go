// Package normalizer turns raw on-chain transfer amounts into token and USD amounts.
package normalizer

import (
	"math"
	"sort"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"

	"github.com/shopspring/decimal"
)

// PriceLookup resolves a token id to its ticker, USD price and decimal denominator
type PriceLookup interface {
	Price(tokenID int64) (models.TokenPrice, bool)
}

// DropReason explains why a raw transfer did not make it into the output
type DropReason string

const (
	DropUnknownToken   DropReason = "unknown_token"
	DropBadAmount      DropReason = "bad_amount"
	DropBadDenominator DropReason = "bad_denominator"
)

// Drop counts dropped transfers for one token and reason
type Drop struct {
	TokenID int64      `json:"tokenId"`
	Reason  DropReason `json:"reason"`
	Count   int        `json:"count"`
}

// Result is the normalizer output plus what was dropped, so callers can log data quality issues
type Result struct {
	Transfers []models.NormalizedTransfer `json:"transfers"`
	Dropped   []Drop                      `json:"dropped,omitempty"`
}

// DroppedCount returns the total number of dropped transfers
func (r Result) DroppedCount() int {
	n := 0
	for _, d := range r.Dropped {
		n += d.Count
	}
	return n
}

type dropKey struct {
	tokenID int64
	reason  DropReason
}

// Normalize scales and prices raw transfers and tags each with its direction relative to homeChainID.
//
// Transfers whose token is missing from prices are dropped rather than zero-filled, as are
// transfers with an unparseable amount or a non-positive denominator. No rounding is applied.
func Normalize(raw []models.RawTransfer, prices PriceLookup, homeChainID int64) Result {
	out := make([]models.NormalizedTransfer, 0, len(raw))
	drops := make(map[dropKey]int)
	var dropOrder []dropKey

	drop := func(tokenID int64, reason DropReason) {
		k := dropKey{tokenID, reason}
		if _, seen := drops[k]; !seen {
			dropOrder = append(dropOrder, k)
		}
		drops[k]++
	}

	for _, r := range raw {
		if prices == nil {
			drop(r.TokenID, DropUnknownToken)
			continue
		}
		price, ok := prices.Price(r.TokenID)
		if !ok {
			drop(r.TokenID, DropUnknownToken)
			continue
		}
		if !(price.Denominator > 0) || math.IsInf(price.Denominator, 0) {
			drop(r.TokenID, DropBadDenominator)
			continue
		}

		amount, ok := scaleAmount(r.RawAmount, price.Denominator)
		if !ok {
			drop(r.TokenID, DropBadAmount)
			continue
		}
		usd := amount * price.USDPrice
		if math.IsNaN(usd) || math.IsInf(usd, 0) || usd < 0 {
			drop(r.TokenID, DropBadAmount)
			continue
		}

		out = append(out, models.NormalizedTransfer{
			TimestampMs: r.TimestampMs,
			TokenID:     r.TokenID,
			Token:       price.Ticker,
			Amount:      amount,
			AmountUSD:   usd,
			Direction:   models.DirectionFor(r.DestinationChainID, homeChainID),
			Sender:      utils.CanonicalAddress(r.Sender),
			Receiver:    utils.CanonicalAddress(r.Receiver),
		})
	}

	sort.Slice(dropOrder, func(i, j int) bool {
		if dropOrder[i].tokenID != dropOrder[j].tokenID {
			return dropOrder[i].tokenID < dropOrder[j].tokenID
		}
		return dropOrder[i].reason < dropOrder[j].reason
	})
	result := Result{Transfers: out}
	for _, k := range dropOrder {
		result.Dropped = append(result.Dropped, Drop{TokenID: k.tokenID, Reason: k.reason, Count: drops[k]})
	}
	return result
}

// scaleAmount divides a base-10 integer string by denominator.
// The division runs in decimal so uint256-sized amounts keep their precision before the float conversion.
func scaleAmount(rawAmount string, denominator float64) (float64, bool) {
	raw, err := decimal.NewFromString(rawAmount)
	if err != nil || raw.IsNegative() {
		return 0, false
	}
	scaled := raw.DivRound(decimal.NewFromFloat(denominator), 36)
	f, _ := scaled.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
