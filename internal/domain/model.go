// Package domain holds the carbon tracking rules: impact derivation, footprint
// aggregation, progression, ranking and the reports composed from them.
package domain

import (
	"strings"
	"time"
)

// Category classifies a logged activity. The unit of Quantity is implied by it.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryFood      Category = "food"
	CategoryEnergy    Category = "energy"
	CategoryWaste     Category = "waste"
	CategoryOther     Category = "other"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryTransport, CategoryFood, CategoryEnergy, CategoryWaste, CategoryOther}

var categoryAliases = map[string]Category{
	"transportation": CategoryTransport,
	"electricity":    CategoryEnergy,
}

// ParseCategory normalises raw input into a known Category.
func ParseCategory(raw string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := categoryAliases[normalized]; ok {
		return alias, true
	}
	for _, c := range Categories {
		if string(c) == normalized {
			return c, true
		}
	}
	return "", false
}

// ActivityRecord is one logged activity. It is immutable once created.
type ActivityRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Category       Category  `json:"category"`
	Quantity       float64   `json:"quantity"`
	Details        string    `json:"details,omitempty"`
	CarbonImpactKg float64   `json:"carbon_impact_kg"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserProfile carries the progression state of one user.
type UserProfile struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"display_name"`
	CarbonFootprintKg float64   `json:"carbon_footprint_kg"`
	CO2SavedKg        float64   `json:"co2_saved_kg"`
	Points            int       `json:"points"`
	Level             int       `json:"level"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProfile returns the starting profile for a user seen for the first time.
func NewProfile(userID, displayName string, now time.Time) UserProfile {
	if strings.TrimSpace(displayName) == "" {
		displayName = userID
	}
	return UserProfile{
		ID:          userID,
		DisplayName: displayName,
		Level:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Difficulty grades a challenge.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge is a read-mostly catalog entry.
type Challenge struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         Category   `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	DurationDays     int        `json:"duration_days"`
	RewardPoints     int        `json:"reward_points"`
	CO2SavingKg      float64    `json:"co2_saving_kg"`
	ParticipantCount int        `json:"participant_count"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// ChallengeParticipation tracks one user's progress through one challenge.
type ChallengeParticipation struct {
	UserID          string     `json:"user_id"`
	ChallengeID     string     `json:"challenge_id"`
	ProgressPercent float64    `json:"progress_percent"`
	Completed       bool       `json:"completed"`
	RewardAwarded   bool       `json:"reward_awarded"`
	JoinedAt        time.Time  `json:"joined_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// PostType labels a community post.
type PostType string

const (
	PostTypeGeneral             PostType = "general"
	PostTypeChallengeCompletion PostType = "challenge_completion"
	PostTypeAchievement         PostType = "achievement"
)

// ParsePostType normalises raw input into a PostType; empty input is general.
func ParsePostType(raw string) (PostType, bool) {
	switch t := PostType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return PostTypeGeneral, true
	case PostTypeGeneral, PostTypeChallengeCompletion, PostTypeAchievement:
		return t, true
	default:
		return "", false
	}
}

// CommunityPost is a published message. LikeCount only ever increases.
type CommunityPost struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Content      string    `json:"content"`
	Type         PostType  `json:"type"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recommendation suggests a reduction. Completed is resolved per user.
type Recommendation struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ImpactEstimateKg float64  `json:"impact_estimate_kg"`
	Category         Category `json:"category"`
	Completed        bool     `json:"completed"`
}

// Cursor models the activity listing pagination token.
type Cursor struct {
	OccurredAt time.Time
	ID         string
}

// PageRequest selects a page of community posts. Page is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

// PostPage is one page of posts, newest first.
type PostPage struct {
	Posts      []CommunityPost `json:"posts"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
}

// CommunityCounts are the raw community figures read from the store.
type CommunityCounts struct {
	Members     int
	Posts       int
	Likes       int
	ActiveToday int
}
