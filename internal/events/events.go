// Package events defines the event payloads published through the outbox.
package events

import "time"

// Event types recorded by the service.
const (
	TypeActivityLogged     = "activity.logged"
	TypePointsAwarded      = "points.awarded"
	TypeChallengeCompleted = "challenge.completed"
	TypePostCreated        = "post.created"
)

// Envelope wraps a payload with the routing data the outbox needs.
type Envelope struct {
	Type          string
	AggregateType string
	AggregateID   string
	UserID        string
	Payload       any
}

// ActivityLogged is emitted when a user logs an activity.
type ActivityLogged struct {
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id"`
	Category       string    `json:"category"`
	Quantity       float64   `json:"quantity"`
	CarbonImpactKg float64   `json:"carbon_impact_kg"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PointsAwarded tracks point credits and level changes.
type PointsAwarded struct {
	UserID     string    `json:"user_id"`
	Delta      int       `json:"delta"`
	Points     int       `json:"points"`
	Level      int       `json:"level"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChallengeCompleted is emitted once per user and challenge.
type ChallengeCompleted struct {
	UserID       string    `json:"user_id"`
	ChallengeID  string    `json:"challenge_id"`
	PointsEarned int       `json:"points_earned"`
	CO2SavedKg   float64   `json:"co2_saved_kg"`
	CompletedAt  time.Time `json:"completed_at"`
}

// PostCreated is emitted when a community post is published.
type PostCreated struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
}

// Topics carrying carbon tracker events.
const (
	TopicActivity  = "carbon_activity_events"
	TopicProgress  = "carbon_progress_events"
	TopicCommunity = "carbon_community_events"
)

// Schema subjects follow the topic-record-name strategy so the two progress
// event types can evolve independently on one topic.
var routes = map[string]Route{
	TypeActivityLogged:     {Topic: TopicActivity, SchemaSubject: TopicActivity + "-" + TypeActivityLogged},
	TypePointsAwarded:      {Topic: TopicProgress, SchemaSubject: TopicProgress + "-" + TypePointsAwarded},
	TypeChallengeCompleted: {Topic: TopicProgress, SchemaSubject: TopicProgress + "-" + TypeChallengeCompleted},
	TypePostCreated:        {Topic: TopicCommunity, SchemaSubject: TopicCommunity + "-" + TypePostCreated},
}

// Types lists every routed event type in a stable order.
func Types() []string {
	return []string{TypeActivityLogged, TypePointsAwarded, TypeChallengeCompleted, TypePostCreated}
}

// RouteFor returns the publication route of eventType.
func RouteFor(eventType string) (Route, bool) {
	r, ok := routes[eventType]
	return r, ok
}

// PartitionKey keeps every event of one user on one partition, so consumers
// see a user's events in commit order.
func (e Envelope) PartitionKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.AggregateID
}

