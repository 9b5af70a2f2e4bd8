package domain

import (
	"math"
	"time"
)

type levelThreshold struct {
	points int
	level  int
}

// levelThresholds are ordered highest first; the first match wins so a jump
// across several thresholds lands on the highest level reached.
var levelThresholds = []levelThreshold{
	{points: 5000, level: 5},
	{points: 3500, level: 4},
	{points: 2000, level: 3},
	{points: 1000, level: 2},
}

// MaxLevel is the highest reachable level.
const MaxLevel = 5

// LevelForPoints returns the level implied by points, starting at 1.
func LevelForPoints(points int) int {
	for _, t := range levelThresholds {
		if points >= t.points {
			return t.level
		}
	}
	return 1
}

// NextLevelPoints returns the points needed for the next level, or 0 at MaxLevel.
func NextLevelPoints(level int) int {
	next := 0
	for _, t := range levelThresholds {
		if t.level > level {
			next = t.points
		}
	}
	return next
}

// AddPoints credits delta points and raises the level when a threshold is
// crossed. The level is never lowered.
func AddPoints(profile UserProfile, delta int) (UserProfile, error) {
	if delta < 0 {
		return profile, invalidf("points delta must be >= 0, got %d", delta)
	}
	if delta > math.MaxInt32 || profile.Points > math.MaxInt32-delta {
		return profile, invalidf("points delta %d overflows", delta)
	}
	profile.Points += delta
	if level := LevelForPoints(profile.Points); level > profile.Level {
		profile.Level = level
	}
	if profile.Level < 1 {
		profile.Level = 1
	}
	return profile, nil
}

// UpdateChallengeProgress clamps progress into [0, 100] and moves it forward
// only. Reaching 100 latches Completed; once completed the participation is
// returned unchanged. completedNow reports the transition to completed.
func UpdateChallengeProgress(p ChallengeParticipation, progress float64, now time.Time) (updated ChallengeParticipation, completedNow bool) {
	if p.Completed {
		return p, false
	}
	progress = clampProgress(progress)
	if progress > p.ProgressPercent {
		p.ProgressPercent = progress
	}
	if p.ProgressPercent >= 100 {
		p.ProgressPercent = 100
		p.Completed = true
		completedAt := now
		p.CompletedAt = &completedAt
		return p, true
	}
	return p, false
}

func clampProgress(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClaimReward awards the challenge reward to profile if it has not been awarded
// for this participation yet. It returns the points earned, 0 when the reward
// was already claimed or the participation is not complete.
func ClaimReward(profile UserProfile, p ChallengeParticipation, challenge Challenge) (UserProfile, ChallengeParticipation, int, error) {
	if !p.Completed || p.RewardAwarded {
		return profile, p, 0, nil
	}
	updated, err := AddPoints(profile, challenge.RewardPoints)
	if err != nil {
		return profile, p, 0, err
	}
	updated.CO2SavedKg += challenge.CO2SavingKg
	p.RewardAwarded = true
	return updated, p, challenge.RewardPoints, nil
}
