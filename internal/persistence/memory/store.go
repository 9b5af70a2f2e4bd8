// Package memory provides an in-process Store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/carbontracker/internal/domain"
	"example.com/carbontracker/internal/events"
)

// Store keeps all state in maps guarded by mu. Units of work for one user are
// serialized by that user's lock and stage their writes until commit.
type Store struct {
	now func() time.Time

	userLocksMu sync.Mutex
	userLocks   map[string]*sync.Mutex

	mu              sync.RWMutex
	profiles        map[string]domain.UserProfile
	activities      map[string][]domain.ActivityRecord
	challenges      map[string]domain.Challenge
	participations  map[string]map[string]domain.ChallengeParticipation
	recommendations []domain.Recommendation
	completedRecs   map[string]map[string]struct{}
	posts           []domain.CommunityPost
	postIndex       map[string]int
	events          []events.Envelope
}

// NewStore constructs a Store seeded with the default catalogs.
func NewStore() *Store {
	s := &Store{
		now:            time.Now,
		userLocks:      make(map[string]*sync.Mutex),
		profiles:       make(map[string]domain.UserProfile),
		activities:     make(map[string][]domain.ActivityRecord),
		challenges:     make(map[string]domain.Challenge),
		participations: make(map[string]map[string]domain.ChallengeParticipation),
		completedRecs:  make(map[string]map[string]struct{}),
		postIndex:      make(map[string]int),
	}
	for _, c := range domain.DefaultChallenges() {
		s.challenges[c.ID] = c
	}
	s.recommendations = domain.DefaultRecommendations()
	return s
}

// Events returns the events recorded by committed units of work, oldest first.
func (s *Store) Events() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Envelope, len(s.events))
	copy(out, s.events)
	return out
}

// PutChallenge adds or replaces a catalog challenge.
func (s *Store) PutChallenge(c domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = c
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.userLocksMu.Lock()
	defer s.userLocksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// WithinUserTx implements domain.Store.
func (s *Store) WithinUserTx(ctx context.Context, userID string, fn func(domain.UserTx) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	profile, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok {
		profile = domain.NewProfile(userID, "", s.now().UTC())
	}

	tx := &userTx{
		store:          s,
		userID:         userID,
		profile:        profile,
		participations: make(map[string]domain.ChallengeParticipation),
		joined:         make(map[string]struct{}),
		completedRecs:  make(map[string]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *userTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[tx.userID] = tx.profile
	s.activities[tx.userID] = append(s.activities[tx.userID], tx.activities...)

	if len(tx.participations) > 0 {
		byChallenge, ok := s.participations[tx.userID]
		if !ok {
			byChallenge = make(map[string]domain.ChallengeParticipation)
			s.participations[tx.userID] = byChallenge
		}
		for id, p := range tx.participations {
			byChallenge[id] = p
		}
	}
	for id := range tx.joined {
		if c, ok := s.challenges[id]; ok {
			c.ParticipantCount++
			s.challenges[id] = c
		}
	}

	if len(tx.completedRecs) > 0 {
		done, ok := s.completedRecs[tx.userID]
		if !ok {
			done = make(map[string]struct{})
			s.completedRecs[tx.userID] = done
		}
		for id := range tx.completedRecs {
			done[id] = struct{}{}
		}
	}

	for _, post := range tx.posts {
		s.postIndex[post.ID] = len(s.posts)
		s.posts = append(s.posts, post)
	}
	s.events = append(s.events, tx.events...)
}

// ReadProfile implements domain.Store.
func (s *Store) ReadProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListProfiles implements domain.Store.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReadActivities implements domain.Store.
func (s *Store) ReadActivities(ctx context.Context, userID string, from, to time.Time) ([]domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ActivityRecord
	for _, a := range s.activities[userID] {
		if a.OccurredAt.Before(from) || !a.OccurredAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// ListActivities implements domain.Store.
func (s *Store) ListActivities(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	s.mu.RLock()
	all := make([]domain.ActivityRecord, len(s.activities[userID]))
	copy(all, s.activities[userID])
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newerThan(all[i], all[j].OccurredAt, all[j].ID) })

	results := make([]domain.ActivityRecord, 0, limit)
	for _, a := range all {
		if cursor != nil && !olderThanCursor(a, cursor) {
			continue
		}
		results = append(results, a)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}
	return results, next, nil
}

// newerThan orders by (OccurredAt, ID) descending.
func newerThan(a domain.ActivityRecord, at time.Time, id string) bool {
	if !a.OccurredAt.Equal(at) {
		return a.OccurredAt.After(at)
	}
	return a.ID > id
}

func olderThanCursor(a domain.ActivityRecord, c *domain.Cursor) bool {
	if !a.OccurredAt.Equal(c.OccurredAt) {
		return a.OccurredAt.Before(c.OccurredAt)
	}
	return a.ID < c.ID
}

// ReadChallenge implements domain.Store.
func (s *Store) ReadChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListChallenges implements domain.Store.
func (s *Store) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListParticipations implements domain.Store.
func (s *Store) ListParticipations(ctx context.Context, userID string) ([]domain.ChallengeParticipation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChallengeParticipation, 0, len(s.participations[userID]))
	for _, p := range s.participations[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ChallengeID < out[j].ChallengeID
	})
	return out, nil
}

// ReadRecommendations implements domain.Store.
func (s *Store) ReadRecommendations(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	done := s.completedRecs[userID]
	out := make([]domain.Recommendation, len(s.recommendations))
	for i, r := range s.recommendations {
		_, r.Completed = done[r.ID]
		out[i] = r
	}
	return out, nil
}

// ReadPosts implements domain.Store.
func (s *Store) ReadPosts(ctx context.Context, page domain.PageRequest) ([]domain.CommunityPost, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.posts)
	offset := (page.Page - 1) * page.Limit
	if offset < 0 || offset >= total {
		return []domain.CommunityPost{}, total, nil
	}
	out := make([]domain.CommunityPost, 0, page.Limit)
	// posts is append-only, so newest first means walking it backwards.
	for i := total - 1 - offset; i >= 0 && len(out) < page.Limit; i-- {
		out = append(out, s.posts[i])
	}
	return out, total, nil
}

// LikePost implements domain.Store.
func (s *Store) LikePost(ctx context.Context, postID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.postIndex[postID]
	if !ok {
		return 0, domain.ErrPostNotFound
	}
	s.posts[idx].LikeCount++
	return s.posts[idx].LikeCount, nil
}

// CommunityCounts implements domain.Store.
func (s *Store) CommunityCounts(ctx context.Context, activeSince time.Time) (domain.CommunityCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := domain.CommunityCounts{
		Members: len(s.profiles),
		Posts:   len(s.posts),
	}
	for _, p := range s.posts {
		counts.Likes += p.LikeCount
	}
	for _, acts := range s.activities {
		for _, a := range acts {
			if !a.OccurredAt.Before(activeSince) {
				counts.ActiveToday++
				break
			}
		}
	}
	return counts, nil
}

type userTx struct {
	store  *Store
	userID string

	profile        domain.UserProfile
	activities     []domain.ActivityRecord
	participations map[string]domain.ChallengeParticipation
	joined         map[string]struct{}
	completedRecs  map[string]struct{}
	posts          []domain.CommunityPost
	events         []events.Envelope
}

func (t *userTx) Profile(ctx context.Context) (domain.UserProfile, error) {
	return t.profile, nil
}

func (t *userTx) WriteProfile(ctx context.Context, profile domain.UserProfile) error {
	profile.ID = t.userID
	t.profile = profile
	return nil
}

func (t *userTx) AppendActivity(ctx context.Context, activity domain.ActivityRecord) error {
	activity.OwnerID = t.userID
	t.activities = append(t.activities, activity)
	return nil
}

func (t *userTx) ReadParticipation(ctx context.Context, challengeID string) (*domain.ChallengeParticipation, error) {
	if p, ok := t.participations[challengeID]; ok {
		return &p, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	p, ok := t.store.participations[t.userID][challengeID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *userTx) InsertParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	existing, err := t.ReadParticipation(ctx, p.ChallengeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrConflict
	}
	p.UserID = t.userID
	t.participations[p.ChallengeID] = p
	t.joined[p.ChallengeID] = struct{}{}
	return nil
}

func (t *userTx) UpdateParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	existing, err := t.ReadParticipation(ctx, p.ChallengeID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrParticipationNotFound
	}
	p.UserID = t.userID
	t.participations[p.ChallengeID] = p
	return nil
}

func (t *userTx) MarkRecommendationCompleted(ctx context.Context, recommendationID string) error {
	t.completedRecs[recommendationID] = struct{}{}
	return nil
}

func (t *userTx) WritePost(ctx context.Context, post domain.CommunityPost) error {
	t.posts = append(t.posts, post)
	return nil
}

func (t *userTx) RecordEvent(ctx context.Context, event events.Envelope) error {
	if _, ok := events.RouteFor(event.Type); !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	t.events = append(t.events, event)
	return nil
}
