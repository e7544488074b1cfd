package stats

import (
	"fmt"
	"strings"
	"time"
)

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window is well formed (Start <= End, both set)
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.Start.After(w.End)
}

// Contains reports whether t falls inside [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ContainsMs is Contains for an epoch-millisecond timestamp
func (w Window) ContainsMs(ms int64) bool {
	return ms >= w.Start.UnixMilli() && ms < w.End.UnixMilli()
}

// Duration returns End - Start
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Period is a named dashboard time range
type Period string

const (
	Period1D  Period = "1d"
	Period7D  Period = "7d"
	Period30D Period = "30d"
	Period3M  Period = "3m"
	Period6M  Period = "6m"
	Period1Y  Period = "1y"
	PeriodAll Period = "all"
)

// Periods lists every supported period, shortest first
var Periods = []Period{Period1D, Period7D, Period30D, Period3M, Period6M, Period1Y, PeriodAll}

// AllTimeStart is where the "all" period begins
var AllTimeStart = time.UnixMilli(0).UTC()

// ParsePeriod parses a period name, case-insensitively
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// StartFrom returns the start of a period that ends at end
func (p Period) StartFrom(end time.Time) time.Time {
	switch p {
	case Period1D:
		return end.Add(-24 * time.Hour)
	case Period7D:
		return end.Add(-7 * 24 * time.Hour)
	case Period30D:
		return end.Add(-30 * 24 * time.Hour)
	case Period3M:
		return end.AddDate(0, -3, 0)
	case Period6M:
		return end.AddDate(0, -6, 0)
	case Period1Y:
		return end.AddDate(-1, 0, 0)
	default:
		return AllTimeStart
	}
}

// Window returns the period ending at now
func (p Period) Window(now time.Time) Window {
	return Window{Start: p.StartFrom(now), End: now}
}

// Previous returns the same-length period that ends where w starts.
// The boundary function is reapplied at w.Start, so the two windows abut with no gap.
// The "all" period has no previous window.
func (p Period) Previous(w Window) (Window, bool) {
	if p == PeriodAll || !w.Valid() {
		return Window{}, false
	}
	return Window{Start: p.StartFrom(w.Start), End: w.Start}, true
}

// Granularity returns the default chart bucket size for the period
func (p Period) Granularity() Granularity {
	switch p {
	case Period1D, Period7D:
		return Hourly
	case Period30D:
		return Daily
	case Period3M, Period6M:
		return Weekly
	default:
		return Monthly
	}
}
