package outbox

import "example.com/carbontracker/internal/events"

const activityLoggedSchema = `{
  "type": "object",
  "title": "ActivityLogged",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "category": {"type": "string", "enum": ["transport", "food", "energy", "waste"]},
    "quantity": {"type": "number", "minimum": 0},
    "carbon_impact_kg": {"type": "number", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "category", "quantity", "carbon_impact_kg", "occurred_at"],
  "additionalProperties": false
}`

const pointsAwardedSchema = `{
  "type": "object",
  "title": "PointsAwarded",
  "properties": {
    "user_id": {"type": "string"},
    "delta": {"type": "integer", "minimum": 0},
    "points": {"type": "integer", "minimum": 0},
    "level": {"type": "integer", "minimum": 1, "maximum": 5},
    "reason": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "delta", "points", "level", "reason", "occurred_at"],
  "additionalProperties": false
}`

const challengeCompletedSchema = `{
  "type": "object",
  "title": "ChallengeCompleted",
  "properties": {
    "user_id": {"type": "string"},
    "challenge_id": {"type": "string"},
    "points_earned": {"type": "integer", "minimum": 0},
    "co2_saved_kg": {"type": "number", "minimum": 0},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "challenge_id", "points_earned", "co2_saved_kg", "completed_at"],
  "additionalProperties": false
}`

const postCreatedSchema = `{
  "type": "object",
  "title": "PostCreated",
  "properties": {
    "post_id": {"type": "string"},
    "author_id": {"type": "string"},
    "type": {"type": "string", "enum": ["general", "challenge_completion", "achievement"]},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["post_id", "author_id", "type", "created_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityLogged:     {Schema: activityLoggedSchema},
	events.TypePointsAwarded:      {Schema: pointsAwardedSchema},
	events.TypeChallengeCompleted: {Schema: challengeCompletedSchema},
	events.TypePostCreated:        {Schema: postCreatedSchema},
}
