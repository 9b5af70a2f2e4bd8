package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCurrentStreak(t *testing.T) {
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	at := func(daysAgo int) ActivityRecord {
		return ActivityRecord{OccurredAt: now.AddDate(0, 0, -daysAgo)}
	}

	require.Zero(t, CurrentStreak(nil, now))
	require.Equal(t, 1, CurrentStreak([]ActivityRecord{at(0)}, now))
	require.Equal(t, 3, CurrentStreak([]ActivityRecord{at(0), at(1), at(2), at(4)}, now))
	// A streak ending yesterday is still current.
	require.Equal(t, 2, CurrentStreak([]ActivityRecord{at(1), at(2)}, now))
	require.Zero(t, CurrentStreak([]ActivityRecord{at(2), at(3)}, now))
	// Several activities on one day count once.
	require.Equal(t, 1, CurrentStreak([]ActivityRecord{at(0), at(0)}, now))
}

func TestBuildUserStats(t *testing.T) {
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	completedAt := now
	in := UserStatsInput{
		Profile: UserProfile{ID: "u1", CarbonFootprintKg: 96, CO2SavedKg: 2.5, Points: 1500, Level: 2},
		Activities: []ActivityRecord{
			{Category: CategoryTransport, CarbonImpactKg: 7, OccurredAt: now},
			{Category: CategoryFood, CarbonImpactKg: 7, OccurredAt: now.AddDate(0, 0, -1)},
			{Category: CategoryEnergy, CarbonImpactKg: 10, OccurredAt: now.AddDate(0, 0, -20)},
			{Category: CategoryEnergy, CarbonImpactKg: 72, OccurredAt: now.AddDate(0, 0, -60)},
		},
		Participations: []ChallengeParticipation{
			{ChallengeID: "1", Completed: true, CompletedAt: &completedAt},
			{ChallengeID: "2", ProgressPercent: 40},
		},
		Now: now,
	}

	stats := BuildUserStats(in)

	require.InDelta(t, 96, stats.TotalCarbonFootprintKg, 1e-9)
	require.InDelta(t, 2, stats.WeeklyAverageKg, 1e-9)
	require.InDelta(t, 24, stats.MonthlyTotalKg, 1e-9)
	require.Equal(t, 2, stats.CurrentStreakDays)
	require.Equal(t, 4, stats.TotalActivities)
	require.Equal(t, 2, stats.ChallengesJoined)
	require.Equal(t, 1, stats.ChallengesCompleted)
	require.Equal(t, 1500, stats.TotalPoints)
	require.Equal(t, 2, stats.Level)
	require.Equal(t, 2000, stats.NextLevelPoints)
	require.InDelta(t, 75, stats.LevelProgress, 1e-9)
	require.InDelta(t, 96, stats.Equivalency.InputKg, 1e-9)
	require.Equal(t, 500.0, stats.Equivalency.MilesDriven)
}

func TestBuildUserStatsAtMaxLevel(t *testing.T) {
	stats := BuildUserStats(UserStatsInput{
		Profile: UserProfile{ID: "u1", Points: 7000, Level: MaxLevel},
		Now:     time.Now(),
	})
	require.Zero(t, stats.NextLevelPoints)
	require.Equal(t, 100.0, stats.LevelProgress)
}

func TestBuildCommunityStats(t *testing.T) {
	stats := BuildCommunityStats(
		CommunityCounts{Members: 3, Posts: 4, Likes: 9, ActiveToday: 2},
		[]UserProfile{{CO2SavedKg: 1.25}, {CO2SavedKg: 2.5}, {}},
	)
	require.Equal(t, CommunityStats{
		TotalMembers:  3,
		TotalPosts:    4,
		TotalLikes:    9,
		TotalCO2Saved: 3.75,
		ActiveToday:   2,
	}, stats)
}

func TestOrderRecommendations(t *testing.T) {
	recs := []Recommendation{
		{ID: "1", Category: CategoryTransport, ImpactEstimateKg: 2.5},
		{ID: "2", Category: CategoryFood, ImpactEstimateKg: 1.8, Completed: true},
		{ID: "3", Category: CategoryEnergy, ImpactEstimateKg: 1.2},
		{ID: "4", Category: CategoryWaste, ImpactEstimateKg: 0.8},
	}
	breakdown := []CategoryBreakdown{
		{Category: CategoryEnergy, PercentageOfTotal: 70},
		{Category: CategoryFood, PercentageOfTotal: 30},
	}

	got := OrderRecommendations(recs, breakdown)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	require.Equal(t, []string{"3", "1", "4", "2"}, ids)
	require.Equal(t, "1", recs[0].ID)
}
