//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/carbontracker/internal/domain"
)

func setupStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool) {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("carbon"),
		postgrescontainer.WithUsername("carbon"),
		postgrescontainer.WithPassword("carbon"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, pool))

	return NewStore(pool), pool
}

func TestStoreLogsActivityAndWritesOutbox(t *testing.T) {
	ctx := context.Background()
	store, pool := setupStore(t, ctx)
	now := time.Now().UTC().Truncate(time.Microsecond)
	svc := domain.NewService(store, domain.WithClock(func() time.Time { return now }))

	q := 10.0
	record, err := svc.LogActivity(ctx, domain.LogActivityInput{UserID: "u1", Category: "energy", Quantity: &q})
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.InDelta(t, 8.0, profile.CarbonFootprintKg, 1e-9)

	page, next, err := svc.ListActivities(ctx, "u1", nil, 10)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, page, 1)
	require.Equal(t, record.ID, page[0].ID)

	var topic, partitionKey string
	require.NoError(t, pool.QueryRow(ctx, `SELECT topic, partition_key FROM outbox WHERE event_type='activity.logged'`).Scan(&topic, &partitionKey))
	require.Equal(t, "carbon_activity_events", topic)
	require.Equal(t, "u1", partitionKey)
}

func TestStoreRollsBackFailedUnitOfWork(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, ctx)
	boom := errors.New("boom")

	err := store.WithinUserTx(ctx, "u1", func(tx domain.UserTx) error {
		require.NoError(t, tx.InsertParticipation(ctx, domain.ChallengeParticipation{ChallengeID: "1", JoinedAt: time.Now()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	profile, err := store.ReadProfile(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, profile)

	challenge, err := store.ReadChallenge(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 1250, challenge.ParticipantCount)
}

func TestStoreSerializesChallengeCompletion(t *testing.T) {
	ctx := context.Background()
	store, pool := setupStore(t, ctx)
	svc := domain.NewService(store)

	_, err := svc.JoinChallenge(ctx, "u1", "2")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CompleteChallenge(ctx, "u1", "2"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)

	profile, err := svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 200, profile.Points)

	var completions int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type='challenge.completed'`).Scan(&completions))
	require.Equal(t, 1, completions)
}

func TestStorePostsAndCommunityCounts(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t, ctx)
	svc := domain.NewService(store)

	var ids []string
	for _, content := range []string{"first", "second", "third"} {
		post, err := svc.CreatePost(ctx, domain.CreatePostInput{UserID: "u1", Content: content})
		require.NoError(t, err)
		ids = append(ids, post.ID)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := svc.ListPosts(ctx, domain.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, ids[2], page.Posts[0].ID)

	likes, err := svc.LikePost(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, 1, likes)

	_, err = svc.LikePost(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	stats, err := svc.GetCommunityStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalMembers)
	require.Equal(t, 3, stats.TotalPosts)
	require.Equal(t, 1, stats.TotalLikes)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
