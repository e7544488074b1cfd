package heatmap

import (
	"time"

	"bridgeflow-backend/internal/stats"
)

const (
	week          = 7 * 24 * time.Hour
	monthlyWeeks  = 5
	intervalHours = 4
	maxMonths     = 12
)

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var intervalLabels = []string{"00:00", "04:00", "08:00", "12:00", "16:00", "20:00"}

// layout maps timestamps to cells and knows which cells are still in progress
type layout struct {
	rows, cols []string
	cell       func(t time.Time) (row, col int, ok bool)
	current    func(row, col int) bool
}

// mondayFirst converts Go's Sunday=0 weekday to Monday=0 ... Sunday=6
func mondayFirst(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func never(int, int) bool { return false }

func labels(src []string) []string {
	return append([]string(nil), src...)
}

// Span returns the time range a view reads. The monthly view always covers the five
// weeks ending at w.End, which reaches further back than a 30 day window.
func Span(view ViewType, w stats.Window) stats.Window {
	if view == ViewMonthly {
		return stats.Window{Start: w.End.Add(-monthlyWeeks * week), End: w.End}
	}
	return w
}

func newLayout(opts Options) layout {
	var l layout
	switch opts.View {
	case ViewHourly:
		l = hourlyLayout(opts)
	case ViewMonthly:
		l = monthlyLayout(opts)
	case ViewTimeline:
		l = timelineLayout(opts)
	default:
		l = dailyLayout(opts)
	}
	if opts.Window.Start.After(opts.Window.End) {
		l.cell = func(time.Time) (int, int, bool) { return 0, 0, false }
		l.current = never
	}
	return l
}

// hourlyLayout has one column per whole UTC hour. The end is floored so the running
// hour has no column at all, leaving nothing in progress.
func hourlyLayout(opts Options) layout {
	start := opts.Window.Start.UTC().Truncate(time.Hour)
	end := opts.Window.End.UTC().Truncate(time.Hour)
	n := int(end.Sub(start) / time.Hour)
	if n < 0 {
		n = 0
	}

	cols := make([]string, n)
	for i := range cols {
		cols[i] = start.Add(time.Duration(i) * time.Hour).Format("15:00")
	}
	return layout{
		rows: []string{"UTC"},
		cols: cols,
		cell: func(t time.Time) (int, int, bool) {
			if t.Before(opts.Window.Start) || !t.Before(end) {
				return 0, 0, false
			}
			return 0, int(t.Sub(start) / time.Hour), true
		},
		current: never,
	}
}

// dailyLayout folds the window onto weekday rows and 4-hour columns. Today's row is in
// progress from the running interval onwards. At midnight no day is running.
func dailyLayout(opts Options) layout {
	loc := opts.Location
	now := opts.Now.In(loc)
	nowRow, nowCol := mondayFirst(now), now.Hour()/intervalHours
	live := inWindow(opts.Window, opts.Now) && !startOfDay(opts.Now, loc)

	return layout{
		rows: labels(weekdayLabels),
		cols: labels(intervalLabels),
		cell: func(t time.Time) (int, int, bool) {
			if !opts.Window.Contains(t) {
				return 0, 0, false
			}
			t = t.In(loc)
			return mondayFirst(t), t.Hour() / intervalHours, true
		},
		current: func(row, col int) bool {
			return live && row == nowRow && col >= nowCol
		},
	}
}

// monthlyLayout splits the five weeks ending at the window end into week rows and
// weekday columns. Only the running day of the running week is in progress, and at
// midnight there is none.
func monthlyLayout(opts Options) layout {
	loc := opts.Location
	span := Span(ViewMonthly, opts.Window)

	rows := make([]string, monthlyWeeks)
	for i := range rows {
		rows[i] = span.Start.Add(time.Duration(i) * week).In(loc).Format("Jan 2")
	}
	weekOf := func(t time.Time) int {
		i := int(t.Sub(span.Start) / week)
		if i >= monthlyWeeks {
			i = monthlyWeeks - 1
		}
		return i
	}

	live := inWindow(span, opts.Now) && !startOfDay(opts.Now, loc)
	nowRow, nowCol := weekOf(opts.Now), mondayFirst(opts.Now.In(loc))

	return layout{
		rows: rows,
		cols: labels(weekdayLabels),
		cell: func(t time.Time) (int, int, bool) {
			if !span.Contains(t) {
				return 0, 0, false
			}
			return weekOf(t), mondayFirst(t.In(loc)), true
		},
		current: func(row, col int) bool {
			return live && row == nowRow && col == nowCol
		},
	}
}

// timelineLayout has weekday rows and one column per calendar month, keeping the most
// recent months of the window. The running month's column is in progress.
func timelineLayout(opts Options) layout {
	loc := opts.Location
	w := opts.Window

	var months []time.Time
	if w.Start.Before(w.End) {
		first := stats.Monthly.Truncate(w.Start, loc)
		for m := stats.Monthly.Truncate(w.End.Add(-time.Nanosecond), loc); !m.Before(first) && len(months) < maxMonths; m = m.AddDate(0, -1, 0) {
			months = append(months, m)
		}
	}
	// oldest first
	for i, j := 0, len(months)-1; i < j; i, j = i+1, j-1 {
		months[i], months[j] = months[j], months[i]
	}

	cols := make([]string, len(months))
	index := make(map[string]int, len(months))
	for i, m := range months {
		cols[i] = m.Format("Jan '06")
		index[stats.Monthly.Key(m, loc)] = i
	}

	nowCol, live := index[stats.Monthly.Key(opts.Now, loc)]
	live = live && inWindow(w, opts.Now)

	return layout{
		rows: labels(weekdayLabels),
		cols: cols,
		cell: func(t time.Time) (int, int, bool) {
			if !w.Contains(t) {
				return 0, 0, false
			}
			col, ok := index[stats.Monthly.Key(t, loc)]
			if !ok {
				return 0, 0, false
			}
			return mondayFirst(t.In(loc)), col, true
		},
		current: func(_, col int) bool {
			return live && col == nowCol
		},
	}
}

// startOfDay reports whether t is midnight in loc
func startOfDay(t time.Time, loc *time.Location) bool {
	return stats.Daily.Truncate(t, loc).Equal(t)
}

// inWindow reports whether now lies in w, counting the end instant
func inWindow(w stats.Window, now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}
