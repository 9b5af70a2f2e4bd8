package domain

import (
	"context"
	"time"

	"example.com/carbontracker/internal/events"
)

// Store is the persistence collaborator. Reads outside WithinUserTx see only
// committed state.
type Store interface {
	// WithinUserTx runs fn with exclusive access to userID's mutable state.
	// Writes made through the UserTx become visible only if fn returns nil.
	// A profile is provisioned for users seen for the first time.
	WithinUserTx(ctx context.Context, userID string, fn func(UserTx) error) error

	// ReadProfile returns nil when the user has no profile yet.
	ReadProfile(ctx context.Context, userID string) (*UserProfile, error)
	ListProfiles(ctx context.Context) ([]UserProfile, error)

	// ReadActivities returns activities with OccurredAt in [from, to), oldest first.
	ReadActivities(ctx context.Context, userID string, from, to time.Time) ([]ActivityRecord, error)
	// ListActivities pages through activities newest first.
	ListActivities(ctx context.Context, userID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error)

	// ReadChallenge returns nil when the challenge does not exist.
	ReadChallenge(ctx context.Context, id string) (*Challenge, error)
	ListChallenges(ctx context.Context) ([]Challenge, error)
	ListParticipations(ctx context.Context, userID string) ([]ChallengeParticipation, error)

	// ReadRecommendations returns the catalog with Completed resolved for userID.
	ReadRecommendations(ctx context.Context, userID string) ([]Recommendation, error)

	// ReadPosts returns one page of posts newest first and the total post count.
	ReadPosts(ctx context.Context, page PageRequest) ([]CommunityPost, int, error)
	// LikePost increments the like count and returns the new value, or
	// ErrPostNotFound.
	LikePost(ctx context.Context, postID string) (int, error)

	// CommunityCounts reports member, post and like totals plus the number of
	// users with an activity at or after activeSince.
	CommunityCounts(ctx context.Context, activeSince time.Time) (CommunityCounts, error)
}

// UserTx is the write side of one user's serialized unit of work.
type UserTx interface {
	Profile(ctx context.Context) (UserProfile, error)
	WriteProfile(ctx context.Context, profile UserProfile) error
	AppendActivity(ctx context.Context, activity ActivityRecord) error

	// ReadParticipation returns nil when the user has not joined the challenge.
	ReadParticipation(ctx context.Context, challengeID string) (*ChallengeParticipation, error)
	// InsertParticipation records a join and bumps the challenge participant count.
	InsertParticipation(ctx context.Context, p ChallengeParticipation) error
	UpdateParticipation(ctx context.Context, p ChallengeParticipation) error

	MarkRecommendationCompleted(ctx context.Context, recommendationID string) error
	WritePost(ctx context.Context, post CommunityPost) error

	// RecordEvent stores an event for publication once the unit of work commits.
	RecordEvent(ctx context.Context, event events.Envelope) error
}
