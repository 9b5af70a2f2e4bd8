package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"example.com/carbontracker/internal/cache"
	"example.com/carbontracker/internal/events"
)

// EventLogHandler appends consumed events to carbon_event_log. Redelivered
// records are ignored.
type EventLogHandler struct {
	pool *pgxpool.Pool
}

// NewEventLogHandler constructs a handler backed by the provided pool.
func NewEventLogHandler(pool *pgxpool.Pool) *EventLogHandler {
	return &EventLogHandler{pool: pool}
}

// Handle stores the event payload.
func (h *EventLogHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO carbon_event_log (event_type, user_id, schema_id, schema_subject, topic, kafka_partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, kafka_partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.Key,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		receivedAt(msg),
	)
	return err
}

func receivedAt(msg Message) time.Time {
	if msg.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return msg.Timestamp
}

// LeaderboardInvalidator purges the cached leaderboard whenever points change.
type LeaderboardInvalidator struct {
	invalidator cache.Invalidator
}

// NewLeaderboardInvalidator constructs a LeaderboardInvalidator.
func NewLeaderboardInvalidator(invalidator cache.Invalidator) *LeaderboardInvalidator {
	return &LeaderboardInvalidator{invalidator: invalidator}
}

// Handle ignores events that cannot move the leaderboard.
func (h *LeaderboardInvalidator) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypePointsAwarded, events.TypeChallengeCompleted:
	default:
		return nil
	}
	err := h.invalidator.Invalidate(ctx, cache.LeaderboardKey)
	recordInvalidation(err)
	return err
}

// FanOut delivers each message to every handler concurrently and fails if
// any of them fails.
func FanOut(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, h := range handlers {
			g.Go(func() error { return h.Handle(gctx, msg) })
		}
		return g.Wait()
	})
}
