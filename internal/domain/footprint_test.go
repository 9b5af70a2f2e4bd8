package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodWindowCoversCalendarDaysIncludingToday(t *testing.T) {
	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

	start, end := PeriodWeek.Window(now)
	require.Equal(t, time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), end)

	start, _ = PeriodMonth.Window(now)
	require.Equal(t, time.Date(2025, time.February, 9, 0, 0, 0, 0, time.UTC), start)

	start, _ = PeriodYear.Window(now)
	require.Equal(t, end.AddDate(0, 0, -365), start)
}

func TestParsePeriodFallsBackToWeek(t *testing.T) {
	require.Equal(t, PeriodMonth, ParsePeriod(" Month "))
	require.Equal(t, PeriodYear, ParsePeriod("year"))
	require.Equal(t, PeriodWeek, ParsePeriod(""))
	require.Equal(t, PeriodWeek, ParsePeriod("decade"))
}

func TestAggregateGroupsByCategoryAndDay(t *testing.T) {
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	start, end := day.AddDate(0, 0, -6), day.AddDate(0, 0, 1)
	activities := []ActivityRecord{
		{ID: "a", Category: CategoryTransport, CarbonImpactKg: 6, OccurredAt: day.Add(9 * time.Hour)},
		{ID: "b", Category: CategoryFood, CarbonImpactKg: 2, OccurredAt: day.Add(-20 * time.Hour)},
		{ID: "c", Category: CategoryTransport, CarbonImpactKg: 2, OccurredAt: day.Add(-30 * time.Hour)},
		{ID: "old", Category: CategoryEnergy, CarbonImpactKg: 100, OccurredAt: start.Add(-time.Second)},
		{ID: "edge", Category: CategoryEnergy, CarbonImpactKg: 50, OccurredAt: end},
	}

	summary := Aggregate(activities, start, end)

	require.InDelta(t, 10, summary.TotalKg, 1e-9)
	require.Equal(t, []CategoryBreakdown{
		{Category: CategoryTransport, TotalImpactKg: 8, PercentageOfTotal: 80, ActivityCount: 2},
		{Category: CategoryFood, TotalImpactKg: 2, PercentageOfTotal: 20, ActivityCount: 1},
	}, summary.Breakdown)
	require.Equal(t, []DailyTotal{
		{Date: "2025-03-08", DailyTotalKg: 2, ActivityCount: 1},
		{Date: "2025-03-09", DailyTotalKg: 2, ActivityCount: 1},
		{Date: "2025-03-10", DailyTotalKg: 6, ActivityCount: 1},
	}, summary.DailySeries)
}

func TestAggregateEmptyWindow(t *testing.T) {
	start := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	summary := Aggregate(nil, start, start.AddDate(0, 0, 7))

	require.Zero(t, summary.TotalKg)
	require.NotNil(t, summary.Breakdown)
	require.Empty(t, summary.Breakdown)
	require.NotNil(t, summary.DailySeries)
	require.Empty(t, summary.DailySeries)
}

func TestAggregateZeroImpactKeepsZeroPercentages(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	start, end := PeriodWeek.Window(now)
	summary := Aggregate([]ActivityRecord{
		{ID: "a", Category: CategoryFood, OccurredAt: now},
		{ID: "b", Category: CategoryWaste, OccurredAt: now},
	}, start, end)

	require.Len(t, summary.Breakdown, 2)
	for _, b := range summary.Breakdown {
		require.Zero(t, b.PercentageOfTotal)
	}
	// Equal totals fall back to category order.
	require.Equal(t, CategoryFood, summary.Breakdown[0].Category)
}

func TestAggregatePercentagesSumToHundred(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	start, end := PeriodWeek.Window(now)
	summary := Aggregate([]ActivityRecord{
		{ID: "a", Category: CategoryFood, CarbonImpactKg: 1, OccurredAt: now},
		{ID: "b", Category: CategoryWaste, CarbonImpactKg: 1, OccurredAt: now},
		{ID: "c", Category: CategoryEnergy, CarbonImpactKg: 1, OccurredAt: now},
	}, start, end)

	var sum float64
	for _, b := range summary.Breakdown {
		sum += b.PercentageOfTotal
	}
	require.InDelta(t, 100, sum, 0.05)
}
