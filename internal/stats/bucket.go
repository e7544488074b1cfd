package stats

import (
	"fmt"
	"strings"
	"time"

	"bridgeflow-backend/internal/models"
)

// Granularity is the width of a calendar bucket
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly" // ISO week, Monday start
	Monthly Granularity = "monthly"
)

// ParseGranularity parses a granularity name
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Hourly, Daily, Weekly, Monthly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Truncate returns the start of the bucket containing t, in loc
func (g Granularity) Truncate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	switch g {
	case Hourly:
		// step back on the absolute clock so a repeated wall-clock hour keeps its own start
		return t.Add(-time.Duration(t.Minute())*time.Minute - time.Duration(t.Second())*time.Second - time.Duration(t.Nanosecond()))
	case Weekly:
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Next returns the start of the bucket after the one starting at start
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case Hourly:
		return start.Add(time.Hour)
	case Weekly:
		return start.AddDate(0, 0, 7)
	case Monthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Key formats the bucket key for t: "2006-01-02 15:00", "2006-01-02", "2006-W02" or "2006-01".
// Keys of one granularity sort lexicographically in chronological order.
func (g Granularity) Key(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	switch g {
	case Hourly:
		return t.Format("2006-01-02 15:00")
	case Weekly:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Point is one bucket of a series
type Point struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
}

// TokenSeries is a dense, gap-filled, chronologically ordered series for one token
type TokenSeries []Point

// ValueField selects what a bucket sums
type ValueField string

const (
	ValueAmountUSD ValueField = "amount_usd"
	ValueAmount    ValueField = "amount"
	ValueCount     ValueField = "count"
)

// ParseValueField parses a value field, defaulting to ValueAmountUSD
func ParseValueField(s string) (ValueField, error) {
	switch v := ValueField(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ValueAmountUSD, nil
	case ValueAmountUSD, ValueAmount, ValueCount:
		return v, nil
	}
	return "", fmt.Errorf("unknown value field %q", s)
}

// valueOf returns the contribution of one transfer, signed for FlowNet
func valueOf(t models.NormalizedTransfer, field ValueField, flow models.FlowFilter) float64 {
	var v float64
	switch field {
	case ValueAmount:
		v = t.Amount
	case ValueCount:
		v = 1
	default:
		v = t.AmountUSD
	}
	if flow == models.FlowNet {
		return t.Signed(v)
	}
	return v
}

// BucketOptions configures Bucket
type BucketOptions struct {
	Granularity Granularity
	Window      Window
	Value       ValueField
	Flow        models.FlowFilter
	Location    *time.Location // nil means UTC
}

// BucketKey is one entry of the x-axis
type BucketKey struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
}

// Keys lists the buckets of w, oldest first. The list starts at the bucket holding w.Start
// and stops at the bucket boundary at or before w.End, so a rolling N day window has exactly
// N daily keys and the running bucket at the end has none. A window shorter than one bucket
// keeps the bucket holding its start.
//
// An hour repeated by a DST fall-back gets its UTC offset appended to the second key.
func Keys(g Granularity, w Window, loc *time.Location) []BucketKey {
	if loc == nil {
		loc = time.UTC
	}
	if !w.Start.Before(w.End) {
		return nil
	}
	first, last := g.Truncate(w.Start, loc), g.Truncate(w.End, loc)
	if !last.After(first) {
		last = g.Next(first)
	}
	var keys []BucketKey
	for b := first; b.Before(last); b = g.Next(b) {
		key := g.Key(b, loc)
		if n := len(keys); n > 0 && keys[n-1].Key == key {
			key += b.In(loc).Format(" Z07:00")
		}
		keys = append(keys, BucketKey{Key: key, Start: b})
	}
	return keys
}

// Bucket groups transfers into calendar buckets per token and gap-fills every series
// onto the full key list of the window, so all series share one x-axis. Transfers in the
// running bucket after the last key are left out.
//
// Every token present in records gets a series, even if none of its transfers fall
// in the window. An inverted window yields an empty map.
func Bucket(records []models.NormalizedTransfer, opts BucketOptions) map[string]TokenSeries {
	out := make(map[string]TokenSeries)
	if opts.Window.Start.After(opts.Window.End) {
		return out
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	flow := opts.Flow
	if flow == "" {
		flow = models.FlowAll
	}

	keys := Keys(opts.Granularity, opts.Window, loc)
	index := make(map[int64]int, len(keys))
	for i, k := range keys {
		index[k.Start.Unix()] = i
	}

	sums := make(map[string][]float64)
	for _, r := range records {
		values, ok := sums[r.Token]
		if !ok {
			values = make([]float64, len(keys))
			sums[r.Token] = values
		}
		if !flow.Matches(r.Direction) || !opts.Window.ContainsMs(r.TimestampMs) {
			continue
		}
		i, ok := index[opts.Granularity.Truncate(r.Time(), loc).Unix()]
		if !ok {
			continue
		}
		values[i] += valueOf(r, opts.Value, flow)
	}

	for token, values := range sums {
		series := make(TokenSeries, len(keys))
		for i, k := range keys {
			series[i] = Point{Key: k.Key, Start: k.Start, Value: values[i]}
		}
		out[token] = series
	}
	return out
}
