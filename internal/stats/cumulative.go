package stats

import (
	"sort"
	"time"

	"bridgeflow-backend/internal/models"
)

// CumulativeSeries holds running totals: value[i] = value[i-1] + delta[i]
type CumulativeSeries []Point

// Cumulate turns per-bucket deltas into running totals per token.
//
// Each series is sorted by key first. The first value is seeded from carryForward,
// a token missing from carryForward starts at zero. Deltas are expected to be signed
// already (see BucketOptions.Flow = models.FlowNet). Input series are not modified.
func Cumulate(series map[string]TokenSeries, carryForward map[string]float64) map[string]CumulativeSeries {
	out := make(map[string]CumulativeSeries, len(series))
	for token, s := range series {
		sorted := make(CumulativeSeries, len(s))
		copy(sorted, s)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

		running := carryForward[token]
		for i := range sorted {
			running += sorted[i].Value
			sorted[i].Value = running
		}
		out[token] = sorted
	}
	return out
}

// CarryForward sums every record strictly before windowStart per token, using the same
// value and flow rules as Bucket. The result seeds Cumulate so a rolling window does not
// restart from zero at its left edge.
func CarryForward(records []models.NormalizedTransfer, windowStart time.Time, value ValueField, flow models.FlowFilter) map[string]float64 {
	if flow == "" {
		flow = models.FlowAll
	}
	cutoff := windowStart.UnixMilli()
	out := make(map[string]float64)
	for _, r := range records {
		if r.TimestampMs >= cutoff || !flow.Matches(r.Direction) {
			continue
		}
		out[r.Token] += valueOf(r, value, flow)
	}
	return out
}
