package domain

import (
	"math"
	"sort"
	"time"
)

// UserStats is the per-user dashboard payload.
type UserStats struct {
	TotalCarbonFootprintKg float64     `json:"total_carbon_footprint_kg"`
	WeeklyAverageKg        float64     `json:"weekly_average_kg"`
	MonthlyTotalKg         float64     `json:"monthly_total_kg"`
	CurrentStreakDays      int         `json:"current_streak_days"`
	TotalActivities        int         `json:"total_activities"`
	ChallengesJoined       int         `json:"challenges_joined"`
	ChallengesCompleted    int         `json:"challenges_completed"`
	CO2SavedKg             float64     `json:"co2_saved_kg"`
	TotalPoints            int         `json:"total_points"`
	Level                  int         `json:"level"`
	NextLevelPoints        int         `json:"next_level_points"`
	LevelProgress          float64     `json:"level_progress"`
	Equivalency            Equivalency `json:"equivalency"`
}

// CommunityStats summarises the whole community.
type CommunityStats struct {
	TotalMembers  int     `json:"total_members"`
	TotalPosts    int     `json:"total_posts"`
	TotalLikes    int     `json:"total_likes"`
	TotalCO2Saved float64 `json:"total_co2_saved_kg"`
	ActiveToday   int     `json:"active_today"`
}

// UserStatsInput gathers everything BuildUserStats needs. Activities must cover
// at least the last 30 days.
type UserStatsInput struct {
	Profile        UserProfile
	Activities     []ActivityRecord
	Participations []ChallengeParticipation
	Now            time.Time
}

// BuildUserStats composes the user dashboard figures.
func BuildUserStats(in UserStatsInput) UserStats {
	weekStart, weekEnd := PeriodWeek.Window(in.Now)
	week := Aggregate(in.Activities, weekStart, weekEnd)
	monthStart, monthEnd := PeriodMonth.Window(in.Now)
	month := Aggregate(in.Activities, monthStart, monthEnd)

	stats := UserStats{
		TotalCarbonFootprintKg: round2(in.Profile.CarbonFootprintKg),
		WeeklyAverageKg:        round2(week.TotalKg / float64(periodDays[PeriodWeek])),
		MonthlyTotalKg:         round2(month.TotalKg),
		CurrentStreakDays:      CurrentStreak(in.Activities, in.Now),
		TotalActivities:        len(in.Activities),
		ChallengesJoined:       len(in.Participations),
		CO2SavedKg:             round2(in.Profile.CO2SavedKg),
		TotalPoints:            in.Profile.Points,
		Level:                  in.Profile.Level,
		NextLevelPoints:        NextLevelPoints(in.Profile.Level),
		Equivalency:            Equivalencies(in.Profile.CarbonFootprintKg),
	}
	for _, p := range in.Participations {
		if p.Completed {
			stats.ChallengesCompleted++
		}
	}
	stats.LevelProgress = levelProgress(in.Profile.Points, stats.NextLevelPoints)
	return stats
}

func levelProgress(points, target int) float64 {
	if target <= 0 {
		return 100
	}
	return round2(math.Min(float64(points)/float64(target)*100, 100))
}

// CurrentStreak counts consecutive UTC days with at least one activity, ending
// today or yesterday. A gap of a full day resets it to zero.
func CurrentStreak(activities []ActivityRecord, now time.Time) int {
	days := make(map[time.Time]struct{}, len(activities))
	for _, a := range activities {
		days[StartOfDay(a.OccurredAt)] = struct{}{}
	}

	cursor := StartOfDay(now)
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// BuildCommunityStats adds the community-wide CO2 savings to the raw counts.
func BuildCommunityStats(counts CommunityCounts, profiles []UserProfile) CommunityStats {
	var saved float64
	for _, p := range profiles {
		saved += p.CO2SavedKg
	}
	return CommunityStats{
		TotalMembers:  counts.Members,
		TotalPosts:    counts.Posts,
		TotalLikes:    counts.Likes,
		TotalCO2Saved: round2(saved),
		ActiveToday:   counts.ActiveToday,
	}
}

// OrderRecommendations puts open recommendations first, then those in the
// categories the user emits most, then larger estimated impact, then id.
func OrderRecommendations(recs []Recommendation, breakdown []CategoryBreakdown) []Recommendation {
	share := make(map[Category]float64, len(breakdown))
	for _, b := range breakdown {
		share[b.Category] = b.PercentageOfTotal
	}

	out := make([]Recommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if share[a.Category] != share[b.Category] {
			return share[a.Category] > share[b.Category]
		}
		if a.ImpactEstimateKg != b.ImpactEstimateKg {
			return a.ImpactEstimateKg > b.ImpactEstimateKg
		}
		return a.ID < b.ID
	})
	return out
}
