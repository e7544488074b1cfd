// Package heatmap summarizes transfers into activity matrices whose shape depends on the period viewed.
package heatmap

import (
	"fmt"
	"strings"
	"time"

	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/stats"
)

// ViewType fixes the row and column meaning of a matrix
type ViewType string

const (
	ViewHourly   ViewType = "hourly"   // 1 x H, one column per elapsed UTC hour
	ViewDaily    ViewType = "daily"    // 7 x 6, weekday x 4-hour interval
	ViewMonthly  ViewType = "monthly"  // 5 x 7, week x weekday
	ViewTimeline ViewType = "timeline" // 7 x <=12, weekday x calendar month
)

// ViewFor returns the view used for a period
func ViewFor(p stats.Period) ViewType {
	switch p {
	case stats.Period1D:
		return ViewHourly
	case stats.Period7D:
		return ViewDaily
	case stats.Period30D:
		return ViewMonthly
	default:
		return ViewTimeline
	}
}

// Metric is what a cell accumulates
type Metric string

const (
	MetricCount     Metric = "count"
	MetricVolume    Metric = "volume"
	MetricVolumeUSD Metric = "volume_usd"
)

// ParseMetric parses a metric name, defaulting to MetricVolumeUSD
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricVolumeUSD, nil
	case MetricCount, MetricVolume, MetricVolumeUSD:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

func (m Metric) valueOf(t models.NormalizedTransfer) float64 {
	switch m {
	case MetricCount:
		return 1
	case MetricVolume:
		return t.Amount
	default:
		return t.AmountUSD
	}
}

// Options configures Summarize
type Options struct {
	View   ViewType
	Metric Metric
	Flow   models.FlowFilter // net sums like all, cells are never signed
	Window stats.Window
	// Now decides which cells are still in progress. Zero means Window.End.
	Now      time.Time
	Location *time.Location // nil means UTC, ignored by the hourly view
}

// Cell is one matrix coordinate and its value. Row and Col are -1 when no cell qualified.
type Cell struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float64 `json:"value"`
}

// Summary describes a matrix. Peak and Quietest skip cells that are still in progress,
// Total does not.
type Summary struct {
	Peak     Cell    `json:"peak"`
	Quietest Cell    `json:"quietest"`
	Total    float64 `json:"total"`
}

// Result is a matrix with its labels and summary
type Result struct {
	View      ViewType          `json:"viewType"`
	Metric    Metric            `json:"metric"`
	Flow      models.FlowFilter `json:"flow"`
	Matrix    [][]float64       `json:"matrix"`
	RowLabels []string          `json:"rowLabels"`
	ColLabels []string          `json:"colLabels"`
	Summary   Summary           `json:"summary"`
}

var noCell = Cell{Row: -1, Col: -1}

// Summarize accumulates records into the matrix of opts.View.
// Empty input and an inverted window give a well-formed zero matrix.
func Summarize(records []models.NormalizedTransfer, opts Options) Result {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Metric == "" {
		opts.Metric = MetricVolumeUSD
	}
	if opts.Flow == "" {
		opts.Flow = models.FlowAll
	}
	if opts.Now.IsZero() {
		opts.Now = opts.Window.End
	}

	l := newLayout(opts)
	matrix := make([][]float64, len(l.rows))
	for i := range matrix {
		matrix[i] = make([]float64, len(l.cols))
	}

	var total float64
	for _, r := range records {
		if !opts.Flow.Matches(r.Direction) {
			continue
		}
		row, col, ok := l.cell(r.Time())
		if !ok {
			continue
		}
		v := opts.Metric.valueOf(r)
		matrix[row][col] += v
		total += v
	}

	peak, quietest := noCell, noCell
	for row := range matrix {
		for col, v := range matrix[row] {
			if l.current(row, col) {
				continue
			}
			if peak.Row < 0 || v > peak.Value {
				peak = Cell{Row: row, Col: col, Value: v}
			}
			if quietest.Row < 0 || v < quietest.Value {
				quietest = Cell{Row: row, Col: col, Value: v}
			}
		}
	}

	return Result{
		View:      opts.View,
		Metric:    opts.Metric,
		Flow:      opts.Flow,
		Matrix:    matrix,
		RowLabels: l.rows,
		ColLabels: l.cols,
		Summary:   Summary{Peak: peak, Quietest: quietest, Total: total},
	}
}
