package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Period names a reporting window ending today.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periodDays = map[Period]int{
	PeriodWeek:  7,
	PeriodMonth: 30,
	PeriodYear:  365,
}

// ParsePeriod maps raw input to a Period; anything unrecognised is a week.
func ParsePeriod(raw string) Period {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := periodDays[p]; ok {
		return p
	}
	return PeriodWeek
}

// Window returns the half-open UTC window [start, end) covering the last N
// calendar days of the period, today included.
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	days, ok := periodDays[p]
	if !ok {
		days = periodDays[PeriodWeek]
	}
	end := StartOfDay(now).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days), end
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CategoryBreakdown is one category's share of a window's impact.
type CategoryBreakdown struct {
	Category          Category `json:"category"`
	TotalImpactKg     float64  `json:"total_impact_kg"`
	PercentageOfTotal float64  `json:"percentage_of_total"`
	ActivityCount     int      `json:"activity_count"`
}

// DailyTotal is one day of the daily series.
type DailyTotal struct {
	Date          string  `json:"date"`
	DailyTotalKg  float64 `json:"daily_total_kg"`
	ActivityCount int     `json:"activity_count"`
}

// FootprintSummary is the aggregate of activities over a window.
type FootprintSummary struct {
	Period      Period              `json:"period,omitempty"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
	TotalKg     float64             `json:"total_kg"`
	Breakdown   []CategoryBreakdown `json:"breakdown"`
	DailySeries []DailyTotal        `json:"daily_series"`
}

const dateLayout = "2006-01-02"

// Aggregate totals the activities whose OccurredAt falls in [start, end),
// grouped by category and by UTC day. Days without activity are omitted.
func Aggregate(activities []ActivityRecord, start, end time.Time) FootprintSummary {
	summary := FootprintSummary{
		WindowStart: start,
		WindowEnd:   end,
		Breakdown:   []CategoryBreakdown{},
		DailySeries: []DailyTotal{},
	}

	byCategory := make(map[Category]*CategoryBreakdown)
	byDay := make(map[string]*DailyTotal)

	for _, a := range activities {
		if a.OccurredAt.Before(start) || !a.OccurredAt.Before(end) {
			continue
		}
		summary.TotalKg += a.CarbonImpactKg

		cb, ok := byCategory[a.Category]
		if !ok {
			cb = &CategoryBreakdown{Category: a.Category}
			byCategory[a.Category] = cb
		}
		cb.TotalImpactKg += a.CarbonImpactKg
		cb.ActivityCount++

		day := a.OccurredAt.UTC().Format(dateLayout)
		dt, ok := byDay[day]
		if !ok {
			dt = &DailyTotal{Date: day}
			byDay[day] = dt
		}
		dt.DailyTotalKg += a.CarbonImpactKg
		dt.ActivityCount++
	}

	for _, cb := range byCategory {
		if summary.TotalKg > 0 {
			cb.PercentageOfTotal = round2(cb.TotalImpactKg / summary.TotalKg * 100)
		}
		summary.Breakdown = append(summary.Breakdown, *cb)
	}
	sort.Slice(summary.Breakdown, func(i, j int) bool {
		a, b := summary.Breakdown[i], summary.Breakdown[j]
		if a.TotalImpactKg != b.TotalImpactKg {
			return a.TotalImpactKg > b.TotalImpactKg
		}
		return a.Category < b.Category
	})

	for _, dt := range byDay {
		summary.DailySeries = append(summary.DailySeries, *dt)
	}
	// ISO dates sort lexically.
	sort.Slice(summary.DailySeries, func(i, j int) bool {
		return summary.DailySeries[i].Date < summary.DailySeries[j].Date
	})

	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
