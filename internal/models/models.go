package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction of a transfer relative to the home chain
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// DirectionFor classifies a transfer by its destination chain
func DirectionFor(destinationChainID, homeChainID int64) Direction {
	if destinationChainID == homeChainID {
		return Inflow
	}
	return Outflow
}

// FlowFilter selects which directions take part in an aggregation
type FlowFilter string

const (
	FlowAll     FlowFilter = "all"
	FlowInflow  FlowFilter = "inflow"
	FlowOutflow FlowFilter = "outflow"
	// FlowNet keeps both directions and signs outflows negative
	FlowNet FlowFilter = "net"
)

// ParseFlowFilter parses a flow filter, defaulting to FlowAll for an empty string
func ParseFlowFilter(s string) (FlowFilter, error) {
	switch FlowFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FlowAll:
		return FlowAll, nil
	case FlowInflow:
		return FlowInflow, nil
	case FlowOutflow:
		return FlowOutflow, nil
	case FlowNet:
		return FlowNet, nil
	}
	return "", fmt.Errorf("unknown flow filter %q", s)
}

// Matches reports whether a transfer in direction d passes the filter
func (f FlowFilter) Matches(d Direction) bool {
	switch f {
	case FlowInflow:
		return d == Inflow
	case FlowOutflow:
		return d == Outflow
	default:
		return true
	}
}

// TokenInfo is the static metadata of a bridged token
type TokenInfo struct {
	ID       int64  `json:"id" yaml:"id"`
	Ticker   string `json:"ticker" yaml:"ticker"`
	Name     string `json:"name" yaml:"name"`
	Decimals int32  `json:"decimals" yaml:"decimals"`
}

// Quote is a USD unit price as published by the price feed
type Quote struct {
	TokenID     int64     `json:"tokenId"`
	USDPrice    float64   `json:"usdPrice"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// TokenPrice is what the normalizer needs to scale and price a raw amount
type TokenPrice struct {
	Ticker      string  `json:"ticker"`
	USDPrice    float64 `json:"usdPrice"`
	Denominator float64 `json:"denominator"` // 10^decimals
	Decimals    int32   `json:"decimals"`
}
