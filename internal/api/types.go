package api

import (
	"time"

	"example.com/carbontracker/internal/domain"
)

// LogActivityRequest is the payload for POST /v1/carbon/activities. Type is
// accepted as an alias of Category.
type LogActivityRequest struct {
	Category   string     `json:"category"`
	Type       string     `json:"type,omitempty"`
	Quantity   *float64   `json:"quantity"`
	Details    string     `json:"details,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// ActivityResponse echoes the stored activity with its equivalencies.
type ActivityResponse struct {
	domain.ActivityRecord
	Equivalency domain.Equivalency `json:"equivalency"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []domain.ActivityRecord `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// FootprintResponse is the footprint summary plus equivalencies of its total.
type FootprintResponse struct {
	domain.FootprintSummary
	Equivalency domain.Equivalency `json:"equivalency"`
}

// ProgressRequest is the payload for PUT /v1/challenges/{id}/progress.
type ProgressRequest struct {
	Progress *float64 `json:"progress"`
}

// CreatePostRequest is the payload for POST /v1/community/posts.
type CreatePostRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// LikeResponse reports a post's like count after a like.
type LikeResponse struct {
	PostID string `json:"post_id"`
	Likes  int    `json:"likes"`
}

// UpdateProfileRequest is the payload for PUT /v1/users/profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name,omitempty"`
}

// AddPointsRequest is the payload for POST /v1/users/{id}/points.
type AddPointsRequest struct {
	Delta  *int   `json:"delta"`
	Reason string `json:"reason,omitempty"`
}
