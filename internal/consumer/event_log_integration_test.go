//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/carbontracker/internal/events"
	"example.com/carbontracker/internal/persistence/postgres"
)

func TestEventLogHandlerStoresEventOnce(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	handler := NewEventLogHandler(pool)

	payload := json.RawMessage(`{"user_id":"u1","delta":50,"points":50,"level":1,"reason":"manual"}`)
	msg := Message{
		EventType:     events.TypePointsAwarded,
		Key:           "u1",
		SchemaID:      42,
		SchemaSubject: "carbon_progress_events-points.awarded",
		Topic:         events.TopicProgress,
		Partition:     0,
		Offset:        5,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	// A redelivered record is ignored.
	require.NoError(t, handler.Handle(ctx, msg))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM carbon_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var (
		userID        string
		storedPayload []byte
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT user_id, payload FROM carbon_event_log LIMIT 1`).Scan(&userID, &storedPayload))
	require.Equal(t, "u1", userID)
	require.JSONEq(t, string(payload), string(storedPayload))
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
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
