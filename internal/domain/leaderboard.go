package domain

import "sort"

// RankEntry is one row of the leaderboard.
type RankEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Points     int     `json:"points"`
	CO2SavedKg float64 `json:"co2_saved_kg"`
}

// RankEntriesFromProfiles projects profiles into unranked leaderboard rows.
func RankEntriesFromProfiles(profiles []UserProfile) []RankEntry {
	out := make([]RankEntry, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, RankEntry{
			UserID:     p.ID,
			Name:       p.DisplayName,
			Points:     p.Points,
			CO2SavedKg: p.CO2SavedKg,
		})
	}
	return out
}

// Rank orders entries by points desc, CO2 saved desc, then user id asc and
// numbers them 1, 2, 3… without shared ranks. Input ranks are ignored, so
// ranking an already ranked slice yields the same slice.
func Rank(entries []RankEntry) []RankEntry {
	out := make([]RankEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.CO2SavedKg != b.CO2SavedKg {
			return a.CO2SavedKg > b.CO2SavedKg
		}
		return a.UserID < b.UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
