// Package postgres provides the Postgres-backed Store and its transactional
// outbox writes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/carbontracker/internal/domain"
	"example.com/carbontracker/internal/events"
)

// Store implements domain.Store on Postgres. A unit of work holds the user's
// row lock for its duration.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

const profileColumns = `user_id, display_name, carbon_footprint_kg, co2_saved_kg, points, level, created_at, updated_at`

const activityColumns = `activity_id, user_id, category, quantity, details, carbon_impact_kg, occurred_at, created_at`

const challengeColumns = `challenge_id, title, description, category, difficulty, duration_days, reward_points, co2_saving_kg, participant_count, expires_at`

const participationColumns = `user_id, challenge_id, progress_percent, completed, reward_awarded, joined_at, completed_at`

const postColumns = `post_id, author_id, author_name, content, post_type, like_count, comment_count, created_at`

// WithinUserTx implements domain.Store.
func (s *Store) WithinUserTx(ctx context.Context, userID string, fn func(domain.UserTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	if _, err = tx.Exec(ctx,
		`INSERT INTO users (user_id, display_name, level, created_at, updated_at) VALUES ($1,$1,1,$2,$2)
         ON CONFLICT (user_id) DO NOTHING`,
		userID, now,
	); err != nil {
		return err
	}

	profile, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE user_id=$1 FOR UPDATE`, userID))
	if err != nil {
		return err
	}

	if err = fn(&userTx{tx: tx, userID: userID, profile: profile}); err != nil {
		return err
	}
	err = tx.Commit(ctx)
	return err
}

// ReadProfile implements domain.Store.
func (s *Store) ReadProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE user_id=$1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListProfiles implements domain.Store.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

// ReadActivities implements domain.Store.
func (s *Store) ReadActivities(ctx context.Context, userID string, from, to time.Time) ([]domain.ActivityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM carbon_activities
         WHERE user_id=$1 AND occurred_at >= $2 AND occurred_at < $3
         ORDER BY occurred_at, activity_id`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows, 0)
}

// ListActivities implements domain.Store.
func (s *Store) ListActivities(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT ` + activityColumns + ` FROM carbon_activities WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (occurred_at, activity_id) < ($3, $4)`
		args = append(args, cursor.OccurredAt, cursor.ID)
	}
	query += ` ORDER BY occurred_at DESC, activity_id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results, err := collectActivities(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}
	return results, next, nil
}

// ReadChallenge implements domain.Store.
func (s *Store) ReadChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	c, err := scanChallenge(s.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE challenge_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListChallenges implements domain.Store.
func (s *Store) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY challenge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListParticipations implements domain.Store.
func (s *Store) ListParticipations(ctx context.Context, userID string) ([]domain.ChallengeParticipation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participationColumns+` FROM user_challenges WHERE user_id=$1 ORDER BY joined_at, challenge_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChallengeParticipation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReadRecommendations implements domain.Store.
func (s *Store) ReadRecommendations(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.recommendation_id, r.title, r.description, r.impact_estimate_kg, r.category, ur.user_id IS NOT NULL
           FROM recommendations r
           LEFT JOIN user_recommendations ur ON ur.recommendation_id = r.recommendation_id AND ur.user_id = $1
          ORDER BY r.recommendation_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recommendation
	for rows.Next() {
		var (
			r        domain.Recommendation
			category string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.ImpactEstimateKg, &category, &r.Completed); err != nil {
			return nil, err
		}
		r.Category = domain.Category(category)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadPosts implements domain.Store.
func (s *Store) ReadPosts(ctx context.Context, page domain.PageRequest) ([]domain.CommunityPost, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM community_posts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM community_posts ORDER BY created_at DESC, post_id DESC LIMIT $1 OFFSET $2`,
		page.Limit, (page.Page-1)*page.Limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.CommunityPost, 0, page.Limit)
	for rows.Next() {
		var (
			p        domain.CommunityPost
			postType string
		)
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Content, &postType, &p.LikeCount, &p.CommentCount, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		p.Type = domain.PostType(postType)
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// LikePost implements domain.Store.
func (s *Store) LikePost(ctx context.Context, postID string) (int, error) {
	var likes int
	err := s.pool.QueryRow(ctx,
		`UPDATE community_posts SET like_count = like_count + 1 WHERE post_id=$1 RETURNING like_count`, postID,
	).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrPostNotFound
	}
	return likes, err
}

// CommunityCounts implements domain.Store.
func (s *Store) CommunityCounts(ctx context.Context, activeSince time.Time) (domain.CommunityCounts, error) {
	var counts domain.CommunityCounts
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
                (SELECT COUNT(*) FROM community_posts),
                (SELECT COALESCE(SUM(like_count), 0) FROM community_posts),
                (SELECT COUNT(DISTINCT user_id) FROM carbon_activities WHERE occurred_at >= $1)`,
		activeSince,
	).Scan(&counts.Members, &counts.Posts, &counts.Likes, &counts.ActiveToday)
	return counts, err
}

type userTx struct {
	tx      pgx.Tx
	userID  string
	profile domain.UserProfile
}

func (t *userTx) Profile(ctx context.Context) (domain.UserProfile, error) {
	return t.profile, nil
}

func (t *userTx) WriteProfile(ctx context.Context, profile domain.UserProfile) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE users SET display_name=$2, carbon_footprint_kg=$3, co2_saved_kg=$4, points=$5, level=$6, updated_at=$7
         WHERE user_id=$1`,
		t.userID, profile.DisplayName, profile.CarbonFootprintKg, profile.CO2SavedKg, profile.Points, profile.Level, profile.UpdatedAt,
	)
	if err != nil {
		return err
	}
	profile.ID = t.userID
	t.profile = profile
	return nil
}

func (t *userTx) AppendActivity(ctx context.Context, a domain.ActivityRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO carbon_activities (`+activityColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, t.userID, string(a.Category), a.Quantity, a.Details, a.CarbonImpactKg, a.OccurredAt, a.CreatedAt,
	)
	return err
}

func (t *userTx) ReadParticipation(ctx context.Context, challengeID string) (*domain.ChallengeParticipation, error) {
	p, err := scanParticipation(t.tx.QueryRow(ctx,
		`SELECT `+participationColumns+` FROM user_challenges WHERE user_id=$1 AND challenge_id=$2`, t.userID, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (t *userTx) InsertParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO user_challenges (`+participationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		t.userID, p.ChallengeID, p.ProgressPercent, p.Completed, p.RewardAwarded, p.JoinedAt, p.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	_, err = t.tx.Exec(ctx, `UPDATE challenges SET participant_count = participant_count + 1 WHERE challenge_id=$1`, p.ChallengeID)
	return err
}

func (t *userTx) UpdateParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE user_challenges SET progress_percent=$3, completed=$4, reward_awarded=$5, completed_at=$6
         WHERE user_id=$1 AND challenge_id=$2`,
		t.userID, p.ChallengeID, p.ProgressPercent, p.Completed, p.RewardAwarded, p.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipationNotFound
	}
	return nil
}

func (t *userTx) MarkRecommendationCompleted(ctx context.Context, recommendationID string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO user_recommendations (user_id, recommendation_id) VALUES ($1,$2)
         ON CONFLICT (user_id, recommendation_id) DO NOTHING`,
		t.userID, recommendationID,
	)
	return err
}

func (t *userTx) WritePost(ctx context.Context, p domain.CommunityPost) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO community_posts (`+postColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, t.userID, p.AuthorName, p.Content, string(p.Type), p.LikeCount, p.CommentCount, p.CreatedAt,
	)
	return err
}

// RecordEvent writes the event to the outbox inside the unit of work.
func (t *userTx) RecordEvent(ctx context.Context, event events.Envelope) error {
	route, ok := events.RouteFor(event.Type)
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = t.tx.Exec(ctx, stmt,
		event.AggregateType,
		event.AggregateID,
		event.Type,
		route.Topic,
		route.SchemaSubject,
		event.PartitionKey(),
		body,
	)
	return err
}

func scanProfile(row pgx.Row) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := row.Scan(&p.ID, &p.DisplayName, &p.CarbonFootprintKg, &p.CO2SavedKg, &p.Points, &p.Level, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectActivities(rows pgx.Rows, capacity int) ([]domain.ActivityRecord, error) {
	results := make([]domain.ActivityRecord, 0, capacity)
	for rows.Next() {
		var (
			a        domain.ActivityRecord
			category string
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &category, &a.Quantity, &a.Details, &a.CarbonImpactKg, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Category = domain.Category(category)
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanChallenge(row pgx.Row) (domain.Challenge, error) {
	var (
		c                    domain.Challenge
		category, difficulty string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &category, &difficulty, &c.DurationDays, &c.RewardPoints, &c.CO2SavingKg, &c.ParticipantCount, &c.ExpiresAt)
	c.Category = domain.Category(category)
	c.Difficulty = domain.Difficulty(difficulty)
	return c, err
}

func scanParticipation(row pgx.Row) (domain.ChallengeParticipation, error) {
	var p domain.ChallengeParticipation
	err := row.Scan(&p.UserID, &p.ChallengeID, &p.ProgressPercent, &p.Completed, &p.RewardAwarded, &p.JoinedAt, &p.CompletedAt)
	return p, err
}
