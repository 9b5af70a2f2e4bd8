package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "activity",
		Name:      "logged_total",
		Help:      "Activities logged, by category.",
	}, []string{"category"})
	carbonLogged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "activity",
		Name:      "carbon_logged_kg_total",
		Help:      "Kilograms of CO2e derived from logged activities.",
	})
	lastActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "carbontracker",
		Subsystem: "activity",
		Name:      "last_activity_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})
	pointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "progression",
		Name:      "points_awarded_total",
		Help:      "Points credited to users, by reason.",
	}, []string{"reason"})
	levelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "progression",
		Name:      "level_ups_total",
		Help:      "Level increases across all users.",
	})
	challengesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "progression",
		Name:      "challenges_completed_total",
		Help:      "Challenge participations that reached completion.",
	})
	postsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbontracker",
		Subsystem: "community",
		Name:      "posts_created_total",
		Help:      "Community posts created, by type.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(activitiesLogged, carbonLogged, lastActivityGauge, pointsAwarded, levelUps, challengesCompleted, postsCreated)
}

// RecordActivityLogged counts a committed activity and its impact.
func RecordActivityLogged(category string, impactKg float64, ts time.Time) {
	activitiesLogged.WithLabelValues(category).Inc()
	if impactKg > 0 {
		carbonLogged.Add(impactKg)
	}
	if !ts.IsZero() {
		lastActivityGauge.Set(float64(ts.Unix()))
	}
}

// RecordPointsAwarded counts credited points and level increases.
func RecordPointsAwarded(reason string, delta int, levelsGained int) {
	if delta > 0 {
		pointsAwarded.WithLabelValues(reason).Add(float64(delta))
	}
	if levelsGained > 0 {
		levelUps.Add(float64(levelsGained))
	}
}

// RecordChallengeCompleted counts a completed participation.
func RecordChallengeCompleted() {
	challengesCompleted.Inc()
}

// RecordPostCreated counts a published community post.
func RecordPostCreated(postType string) {
	postsCreated.WithLabelValues(postType).Inc()
}
