package models

import "time"

// RawTransfer is one finalized cross-chain transfer as read from the transfer store
type RawTransfer struct {
	TimestampMs        int64  `json:"timestampMs"`
	TokenID            int64  `json:"tokenId"`
	DestinationChainID int64  `json:"destinationChainId"`
	RawAmount          string `json:"rawAmount"` // base-10 integer, unscaled on-chain amount

	// Optional, only used for unique address counting
	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver,omitempty"`
}

// Time returns the transfer timestamp as a UTC time
func (t RawTransfer) Time() time.Time {
	return time.UnixMilli(t.TimestampMs).UTC()
}

// RawTotal is the summed raw amount of every finalized transfer of one token to one chain
type RawTotal struct {
	TokenID            int64  `json:"tokenId"`
	DestinationChainID int64  `json:"destinationChainId"`
	RawAmount          string `json:"rawAmount"`
}

// AsTransfer turns the total into a single transfer stamped at atMs, so it can be normalized
func (t RawTotal) AsTransfer(atMs int64) RawTransfer {
	return RawTransfer{
		TimestampMs:        atMs,
		TokenID:            t.TokenID,
		DestinationChainID: t.DestinationChainID,
		RawAmount:          t.RawAmount,
	}
}

// NormalizedTransfer is a RawTransfer scaled to human units and priced in USD.
// AmountUSD is never negative; signed values are produced by consumers that need them.
type NormalizedTransfer struct {
	TimestampMs int64     `json:"timestampMs"`
	TokenID     int64     `json:"tokenId"`
	Token       string    `json:"token"` // ticker
	Amount      float64   `json:"amount"`
	AmountUSD   float64   `json:"amountUsd"`
	Direction   Direction `json:"direction"`
	Sender      string    `json:"sender,omitempty"`
	Receiver    string    `json:"receiver,omitempty"`
}

// Time returns the transfer timestamp as a UTC time
func (t NormalizedTransfer) Time() time.Time {
	return time.UnixMilli(t.TimestampMs).UTC()
}

// Signed returns v with the sign of the transfer direction (outflow negative)
func (t NormalizedTransfer) Signed(v float64) float64 {
	if t.Direction == Outflow {
		return -v
	}
	return v
}
