//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/carbontracker/internal/domain"
	"example.com/carbontracker/internal/events"
	"example.com/carbontracker/internal/persistence/postgres"
)

func setupPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("carbon"),
		postgrescontainer.WithUsername("carbon"),
		postgrescontainer.WithPassword("carbon"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func allRegistered() *stubRegistry {
	ids := make(map[string]int)
	for i, eventType := range events.Types() {
		route, _ := events.RouteFor(eventType)
		ids[route.SchemaSubject] = i + 1
	}
	return &stubRegistry{ids: ids}
}

func TestDispatcherPublishesCommittedEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	svc := domain.NewService(postgres.NewStore(pool))

	_, err := svc.JoinChallenge(ctx, "u1", "1")
	require.NoError(t, err)
	_, err = svc.CompleteChallenge(ctx, "u1", "1")
	require.NoError(t, err)

	writer := &stubWriter{}
	d := NewDispatcher(pool, writer, allRegistered(), time.Second, 10)
	require.NoError(t, d.processBatch(ctx))

	sent := writer.sent[events.TopicProgress]
	require.Len(t, sent, 2)
	require.Equal(t, events.TypePointsAwarded, headerMap(sent[0])[HeaderEventType])
	require.Equal(t, events.TypeChallengeCompleted, headerMap(sent[1])[HeaderEventType])

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	// Nothing left to claim.
	require.NoError(t, d.processBatch(ctx))
	require.Len(t, writer.sent[events.TopicProgress], 2)
}

func TestDispatcherRoutesFailuresThroughDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	svc := domain.NewService(postgres.NewStore(pool))

	_, err := svc.CreatePost(ctx, domain.CreatePostInput{UserID: "u1", Content: "hello"})
	require.NoError(t, err)

	failing := NewDispatcher(pool, &stubWriter{err: errors.New("broker down")}, allRegistered(), time.Second, 10)
	require.NoError(t, failing.processBatch(ctx))

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq`).Scan(&reason))
	require.Contains(t, reason, "broker down")

	manager := NewDLQManager(pool, 3, time.Minute, zerolog.Nop())
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var dlqRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqRows))
	require.Zero(t, dlqRows)

	writer := &stubWriter{}
	require.NoError(t, NewDispatcher(pool, writer, allRegistered(), time.Second, 10).processBatch(ctx))
	require.Len(t, writer.sent[events.TopicCommunity], 1)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)

	_, err := pool.Exec(ctx, `INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
        VALUES (1, 'post.created', 'carbon_community_events', '{}', 'boom', 'post', 'p1', 'carbon_community_events-post.created', 'u1', 3, NOW())`)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Minute, zerolog.Nop())
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantine string
	require.NoError(t, pool.QueryRow(ctx, `SELECT quarantine_reason FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantine))
	require.Equal(t, quarantineReason, quarantine)

	// Quarantined entries are not picked up again.
	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)
}
