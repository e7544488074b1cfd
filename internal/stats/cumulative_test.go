package stats

import (
	"testing"
	"time"

	"bridgeflow-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(s CumulativeSeries) []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

func TestCumulate_NetFlowAcrossGap(t *testing.T) {
	w := Window{Start: day1, End: day1.AddDate(0, 0, 3)}
	records := []models.NormalizedTransfer{
		transfer(day1.Add(time.Hour), "X", 10, models.Inflow),
		transfer(day1.AddDate(0, 0, 2).Add(time.Hour), "X", 5, models.Outflow),
	}

	series := Bucket(records, BucketOptions{Granularity: Daily, Window: w, Flow: models.FlowNet})
	cum := Cumulate(series, nil)
	assert.Equal(t, []float64{10, 10, 5}, values(cum["X"]))
}

func TestCumulate_DifferencesEqualDeltas(t *testing.T) {
	series := map[string]TokenSeries{
		"ETH": {
			{Key: "2024-03-04", Value: 0.1},
			{Key: "2024-03-05", Value: -0.3},
			{Key: "2024-03-06", Value: 1e6},
			{Key: "2024-03-07", Value: 0.7},
		},
	}
	cum := Cumulate(series, map[string]float64{"ETH": 12.5})["ETH"]
	require.Len(t, cum, 4)
	assert.InDelta(t, 12.5+0.1, cum[0].Value, 1e-9)
	for i := 1; i < len(cum); i++ {
		assert.InDelta(t, series["ETH"][i].Value, cum[i].Value-cum[i-1].Value, 1e-9)
	}
}

func TestCumulate_CarryForwardSeed(t *testing.T) {
	series := map[string]TokenSeries{
		"A": {{Key: "1", Value: 3}, {Key: "2", Value: 4}},
		"B": {{Key: "1", Value: 1}},
	}

	seeded := Cumulate(series, map[string]float64{"A": 100})
	assert.Equal(t, 103.0, seeded["A"][0].Value)
	assert.Equal(t, 107.0, seeded["A"][1].Value)
	// missing carry-forward is zero
	assert.Equal(t, 1.0, seeded["B"][0].Value)

	assert.Equal(t, Cumulate(series, nil), Cumulate(series, map[string]float64{"A": 0, "B": 0}))
}

func TestCumulate_SortsByKeyWithoutMutatingInput(t *testing.T) {
	series := map[string]TokenSeries{
		"A": {{Key: "2024-03-06", Value: 5}, {Key: "2024-03-04", Value: 1}, {Key: "2024-03-05", Value: 2}},
	}
	cum := Cumulate(series, nil)["A"]
	assert.Equal(t, []float64{1, 3, 8}, values(cum))
	assert.Equal(t, "2024-03-04", cum[0].Key)
	assert.Equal(t, "2024-03-06", series["A"][0].Key)
	assert.Equal(t, 5.0, series["A"][0].Value)
}

func TestCarryForward_SumsOnlyBeforeWindow(t *testing.T) {
	start := day1.AddDate(0, 0, 7)
	records := []models.NormalizedTransfer{
		transfer(day1, "ETH", 100, models.Inflow),
		transfer(day1.Add(time.Hour), "ETH", 30, models.Outflow),
		transfer(start.Add(-time.Millisecond), "USDC", 7, models.Inflow),
		transfer(start, "ETH", 1000, models.Inflow), // first instant of the window
	}

	carry := CarryForward(records, start, ValueAmountUSD, models.FlowNet)
	assert.Equal(t, map[string]float64{"ETH": 70, "USDC": 7}, carry)

	inflowOnly := CarryForward(records, start, ValueAmountUSD, models.FlowInflow)
	assert.Equal(t, 100.0, inflowOnly["ETH"])
}

func TestCumulate_RollingWindowContinuesHistory(t *testing.T) {
	// a 7 day hourly window must continue from the pre-window balance
	end := day1.AddDate(0, 0, 14)
	w := Period7D.Window(end)
	records := []models.NormalizedTransfer{
		transfer(day1.Add(time.Hour), "ETH", 500, models.Inflow),
		transfer(w.Start.Add(2*time.Hour), "ETH", 20, models.Outflow),
	}

	series := Bucket(records, BucketOptions{Granularity: Period7D.Granularity(), Window: w, Flow: models.FlowNet})
	carry := CarryForward(records, w.Start, ValueAmountUSD, models.FlowNet)
	cum := Cumulate(series, carry)["ETH"]

	require.Len(t, cum, 7*24)
	assert.Equal(t, 500.0, cum[0].Value)
	assert.Equal(t, 480.0, cum[2].Value)
	assert.Equal(t, 480.0, cum[len(cum)-1].Value)
}
