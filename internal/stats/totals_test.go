package stats

import (
	"fmt"
	"math"
	"testing"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/utils"

	"github.com/axiomhq/hyperloglog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withAddresses(tr models.NormalizedTransfer, sender, receiver string) models.NormalizedTransfer {
	tr.Sender, tr.Receiver = sender, receiver
	return tr
}

func cardsByKind(cards []CardTotal) map[CardKind]CardTotal {
	out := make(map[CardKind]CardTotal, len(cards))
	for _, c := range cards {
		out[c.Kind] = c
	}
	return out
}

func calculate(t *testing.T, current, previous WindowAggregates, filter []string) []CardTotal {
	t.Helper()
	cards, err := CalculateTotals(current, previous, filter)
	require.NoError(t, err)
	return cards
}

func TestCalculateTotals_CardsAndDeltas(t *testing.T) {
	prevWin := Window{Start: day1, End: day1.AddDate(0, 0, 7)}
	curWin := Window{Start: prevWin.End, End: prevWin.End.AddDate(0, 0, 7)}

	records := []models.NormalizedTransfer{
		withAddresses(transfer(prevWin.Start.Add(time.Hour), "ETH", 100, models.Inflow), "0xa", "0xb"),
		withAddresses(transfer(prevWin.Start.Add(2*time.Hour), "ETH", 50, models.Outflow), "0xa", "0xc"),
		withAddresses(transfer(curWin.Start.Add(time.Hour), "ETH", 150, models.Inflow), "0xa", "0xb"),
		withAddresses(transfer(curWin.Start.Add(2*time.Hour), "USDC", 25, models.Outflow), "0xd", "0xe"),
	}

	cards := calculate(t, AggregateWindow(records, curWin), AggregateWindow(records, prevWin), []string{AllTokens})
	require.Len(t, cards, 4)
	assert.Equal(t, []CardKind{CardInflow, CardOutflow, CardNet, CardUniqueAddresses},
		[]CardKind{cards[0].Kind, cards[1].Kind, cards[2].Kind, cards[3].Kind})

	byKind := cardsByKind(cards)
	assert.Equal(t, 150.0, byKind[CardInflow].Value)
	require.NotNil(t, byKind[CardInflow].PctChange)
	assert.InDelta(t, 50, *byKind[CardInflow].PctChange, 1e-9)

	assert.Equal(t, 25.0, byKind[CardOutflow].Value)
	require.NotNil(t, byKind[CardOutflow].PctChange)
	assert.InDelta(t, -50, *byKind[CardOutflow].PctChange, 1e-9)

	assert.Equal(t, 125.0, byKind[CardNet].Value)
	require.NotNil(t, byKind[CardNet].PctChange)
	assert.InDelta(t, 150, *byKind[CardNet].PctChange, 1e-9)

	assert.Equal(t, 4.0, byKind[CardUniqueAddresses].Value)
	assert.Equal(t, 3.0, byKind[CardUniqueAddresses].Previous)
}

func TestCalculateTotals_TokenFilter(t *testing.T) {
	w := Window{Start: day1, End: day1.AddDate(0, 0, 1)}
	records := []models.NormalizedTransfer{
		withAddresses(transfer(day1, "ETH", 10, models.Inflow), "0x1", ""),
		withAddresses(transfer(day1, "USDC", 20, models.Inflow), "0x2", ""),
		withAddresses(transfer(day1, "WBTC", 40, models.Inflow), "0x3", ""),
	}
	cur := AggregateWindow(records, w)

	byKind := cardsByKind(calculate(t, cur, WindowAggregates{}, []string{"ETH", "WBTC"}))
	assert.Equal(t, 50.0, byKind[CardInflow].Value)
	assert.Equal(t, 2.0, byKind[CardUniqueAddresses].Value)

	for _, filter := range [][]string{nil, {}, {"All"}, {"all"}} {
		byKind = cardsByKind(calculate(t, cur, WindowAggregates{}, filter))
		assert.Equal(t, 70.0, byKind[CardInflow].Value, fmt.Sprint(filter))
	}
}

func TestCalculateTotals_NoPriorDataHasNilChange(t *testing.T) {
	w := Window{Start: day1, End: day1.AddDate(0, 0, 1)}
	cur := AggregateWindow([]models.NormalizedTransfer{transfer(day1, "ETH", 10, models.Inflow)}, w)

	for _, c := range calculate(t, cur, AggregateWindow(nil, w), nil) {
		assert.Nil(t, c.PctChange, c.Kind)
	}

	empty := calculate(t, AggregateWindow(nil, w), AggregateWindow(nil, w), nil)
	for _, c := range empty {
		assert.Zero(t, c.Value)
		assert.Nil(t, c.PctChange, "0/0 must not surface as NaN")
	}
}

func TestCalculateTotals_Deterministic(t *testing.T) {
	w := Window{Start: day1, End: day1.AddDate(0, 0, 1)}
	var records []models.NormalizedTransfer
	for i := 0; i < 50; i++ {
		token := fmt.Sprintf("T%02d", i)
		in := transfer(day1.Add(time.Duration(i)*time.Minute), token, 0.1*float64(i+1), models.Inflow)
		records = append(records, withAddresses(in, fmt.Sprintf("0x%x", i+1), ""))
		records = append(records, transfer(day1.Add(time.Duration(i)*time.Minute), token, 1e-3*float64(i), models.Outflow))
	}
	cur := AggregateWindow(records, w)
	prev := AggregateWindow(records[:40], w)

	first := calculate(t, cur, prev, nil)
	for i := 0; i < 20; i++ {
		again := calculate(t, cur, prev, nil)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, math.Float64bits(first[j].Value), math.Float64bits(again[j].Value))
			require.NotNil(t, again[j].PctChange)
			assert.Equal(t, math.Float64bits(*first[j].PctChange), math.Float64bits(*again[j].PctChange))
		}
	}
}

func TestCalculateTotals_MismatchedSketchFails(t *testing.T) {
	w := Window{Start: day1, End: day1.AddDate(0, 0, 1)}
	cur := AggregateWindow([]models.NormalizedTransfer{withAddresses(transfer(day1, "ETH", 10, models.Inflow), "0x1", "")}, w)
	cur.Addresses["USDC"] = hyperloglog.New14()

	_, err := CalculateTotals(cur, AggregateWindow(nil, w), nil)
	require.Error(t, err)
	assert.Equal(t, "SKETCH_MERGE", utils.GetErrorCode(err))

	// filtering the odd sketch out leaves nothing to merge it with
	cards, err := CalculateTotals(cur, AggregateWindow(nil, w), []string{"ETH"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cardsByKind(cards)[CardUniqueAddresses].Value)
}

func TestPercentChange(t *testing.T) {
	pct := PercentChange(150, 100)
	require.NotNil(t, pct)
	assert.InDelta(t, 50, *pct, 1e-12)

	assert.Nil(t, PercentChange(5, 0))
	assert.Nil(t, PercentChange(0, 0))
	assert.Nil(t, PercentChange(math.NaN(), 1))
}
