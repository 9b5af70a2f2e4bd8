package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelForPointsThresholds(t *testing.T) {
	cases := map[int]int{
		0:    1,
		999:  1,
		1000: 2,
		1999: 2,
		2000: 3,
		3499: 3,
		3500: 4,
		4999: 4,
		5000: 5,
		9000: 5,
	}
	for points, level := range cases {
		require.Equal(t, level, LevelForPoints(points), "points %d", points)
	}
}

func TestNextLevelPoints(t *testing.T) {
	require.Equal(t, 1000, NextLevelPoints(1))
	require.Equal(t, 2000, NextLevelPoints(2))
	require.Equal(t, 3500, NextLevelPoints(3))
	require.Equal(t, 5000, NextLevelPoints(4))
	require.Equal(t, 0, NextLevelPoints(MaxLevel))
}

func TestAddPointsCrossesSingleThreshold(t *testing.T) {
	profile := UserProfile{ID: "u1", Points: 950, Level: 1}

	updated, err := AddPoints(profile, 100)
	require.NoError(t, err)
	require.Equal(t, 1050, updated.Points)
	require.Equal(t, 2, updated.Level)
}

func TestAddPointsJumpsToHighestLevelReached(t *testing.T) {
	profile := UserProfile{ID: "u1", Points: 400, Level: 1}

	updated, err := AddPoints(profile, 4700)
	require.NoError(t, err)
	require.Equal(t, 5100, updated.Points)
	require.Equal(t, 5, updated.Level)
}

func TestAddPointsNeverLowersLevel(t *testing.T) {
	profile := UserProfile{ID: "u1", Points: 10, Level: 3}

	updated, err := AddPoints(profile, 5)
	require.NoError(t, err)
	require.Equal(t, 15, updated.Points)
	require.Equal(t, 3, updated.Level)
}

func TestAddPointsRejectsNegativeDelta(t *testing.T) {
	profile := UserProfile{ID: "u1", Points: 10, Level: 1}

	updated, err := AddPoints(profile, -5)
	require.True(t, errors.Is(err, ErrInvalidInput))
	require.Equal(t, profile, updated)
}

func TestUpdateChallengeProgressIsForwardOnly(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	p := ChallengeParticipation{UserID: "u1", ChallengeID: "2"}

	p, done := UpdateChallengeProgress(p, 60, now)
	require.False(t, done)
	require.Equal(t, 60.0, p.ProgressPercent)

	p, done = UpdateChallengeProgress(p, 50, now)
	require.False(t, done)
	require.Equal(t, 60.0, p.ProgressPercent)

	p, done = UpdateChallengeProgress(p, 100, now)
	require.True(t, done)
	require.True(t, p.Completed)
	require.Equal(t, 100.0, p.ProgressPercent)
	require.NotNil(t, p.CompletedAt)

	again, done := UpdateChallengeProgress(p, 50, now.Add(time.Hour))
	require.False(t, done)
	require.Equal(t, p, again)
}

func TestUpdateChallengeProgressClamps(t *testing.T) {
	now := time.Now()

	p, done := UpdateChallengeProgress(ChallengeParticipation{}, -20, now)
	require.False(t, done)
	require.Zero(t, p.ProgressPercent)

	p, done = UpdateChallengeProgress(ChallengeParticipation{}, 250, now)
	require.True(t, done)
	require.Equal(t, 100.0, p.ProgressPercent)
}

func TestClaimRewardPaysOnce(t *testing.T) {
	challenge := Challenge{ID: "3", RewardPoints: 500, CO2SavingKg: 45}
	profile := UserProfile{ID: "u1", Points: 600, Level: 1}
	p := ChallengeParticipation{UserID: "u1", ChallengeID: "3", ProgressPercent: 100, Completed: true}

	profile, p, earned, err := ClaimReward(profile, p, challenge)
	require.NoError(t, err)
	require.Equal(t, 500, earned)
	require.Equal(t, 1100, profile.Points)
	require.Equal(t, 2, profile.Level)
	require.InDelta(t, 45, profile.CO2SavedKg, 1e-9)
	require.True(t, p.RewardAwarded)

	profile, p, earned, err = ClaimReward(profile, p, challenge)
	require.NoError(t, err)
	require.Zero(t, earned)
	require.Equal(t, 1100, profile.Points)
}

func TestClaimRewardSkipsIncompleteParticipation(t *testing.T) {
	profile := UserProfile{ID: "u1", Level: 1}
	p := ChallengeParticipation{ProgressPercent: 40}

	updated, same, earned, err := ClaimReward(profile, p, Challenge{RewardPoints: 50})
	require.NoError(t, err)
	require.Zero(t, earned)
	require.Equal(t, profile, updated)
	require.False(t, same.RewardAwarded)
}
