package domain

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"example.com/carbontracker/internal/events"
	"example.com/carbontracker/internal/observability"
)

const (
	// DefaultLeaderboardSize bounds GetLeaderboard when no limit is given.
	DefaultLeaderboardSize = 10
	maxLeaderboardSize     = 100

	defaultActivityPage = 20
	maxActivityPage     = 100
	defaultPostPage     = 10
	maxPostPage         = 50

	maxDetailsLength     = 500
	maxPostLength        = 1000
	maxDisplayNameLength = 64

	// Activities may be stamped slightly ahead of the server clock.
	maxClockSkew = 5 * time.Minute
)

// Service orchestrates the carbon tracking workflows over a Store. It holds no
// per-user state of its own, so one instance is safe for concurrent use.
type Service struct {
	store           Store
	calc            *ImpactCalculator
	now             func() time.Time
	leaderboardSize int
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithImpactCalculator overrides the emission factor calculator.
func WithImpactCalculator(calc *ImpactCalculator) Option {
	return func(s *Service) {
		if calc != nil {
			s.calc = calc
		}
	}
}

// WithLeaderboardSize sets the default leaderboard length.
func WithLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		calc:            NewImpactCalculator(DefaultFactorTable()),
		now:             time.Now,
		leaderboardSize: DefaultLeaderboardSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("%s id is required", kind)
	}
	return nil
}

// LogActivityInput captures the payload from the API layer.
type LogActivityInput struct {
	UserID     string
	Category   string
	Quantity   *float64
	Details    string
	OccurredAt time.Time
}

// LogActivity derives the activity's impact, stores it and adds the impact to
// the user's cumulative footprint in one unit of work.
func (s *Service) LogActivity(ctx context.Context, in LogActivityInput) (*ActivityRecord, error) {
	if err := requireID("user", in.UserID); err != nil {
		return nil, err
	}
	category, ok := ParseCategory(in.Category)
	if !ok {
		return nil, invalidf("unknown category %q", in.Category)
	}
	if in.Quantity == nil {
		return nil, invalidf("quantity is required")
	}
	impact, err := s.calc.Impact(category, *in.Quantity)
	if err != nil {
		return nil, err
	}
	details := strings.TrimSpace(in.Details)
	if utf8.RuneCountInString(details) > maxDetailsLength {
		return nil, invalidf("details must be at most %d characters", maxDetailsLength)
	}

	now := s.clock()
	occurredAt := in.OccurredAt.UTC()
	if in.OccurredAt.IsZero() {
		occurredAt = now
	}
	if occurredAt.After(now.Add(maxClockSkew)) {
		return nil, invalidf("occurred_at cannot be in the future")
	}

	record := ActivityRecord{
		ID:             uuid.NewString(),
		OwnerID:        in.UserID,
		Category:       category,
		Quantity:       *in.Quantity,
		Details:        details,
		CarbonImpactKg: impact,
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}

	err = s.store.WithinUserTx(ctx, in.UserID, func(tx UserTx) error {
		profile, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		if err := tx.AppendActivity(ctx, record); err != nil {
			return err
		}
		profile.CarbonFootprintKg += impact
		profile.UpdatedAt = now
		if err := tx.WriteProfile(ctx, profile); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, events.Envelope{
			Type:          events.TypeActivityLogged,
			AggregateType: "activity",
			AggregateID:   record.ID,
			UserID:        in.UserID,
			Payload: events.ActivityLogged{
				ActivityID:     record.ID,
				UserID:         in.UserID,
				Category:       string(category),
				Quantity:       record.Quantity,
				CarbonImpactKg: impact,
				OccurredAt:     occurredAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RecordActivityLogged(string(category), impact, record.CreatedAt)
	return &record, nil
}

// ListActivities fetches activities newest first with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, userID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error) {
	if err := requireID("user", userID); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = defaultActivityPage
	}
	if limit > maxActivityPage {
		limit = maxActivityPage
	}
	return s.store.ListActivities(ctx, userID, cursor, limit)
}

// GetFootprintData aggregates the user's activities over the requested period.
// Unknown periods fall back to a week.
func (s *Service) GetFootprintData(ctx context.Context, userID, period string) (FootprintSummary, error) {
	if err := requireID("user", userID); err != nil {
		return FootprintSummary{}, err
	}
	p := ParsePeriod(period)
	start, end := p.Window(s.clock())
	activities, err := s.store.ReadActivities(ctx, userID, start, end)
	if err != nil {
		return FootprintSummary{}, err
	}
	summary := Aggregate(activities, start, end)
	summary.Period = p
	return summary, nil
}

// allTimeEnd bounds all-time reads; it sits past the largest accepted skew.
func allTimeEnd(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, 2)
}

func (s *Service) allActivities(ctx context.Context, userID string, now time.Time) ([]ActivityRecord, error) {
	return s.store.ReadActivities(ctx, userID, time.Time{}, allTimeEnd(now))
}

// GetBreakdown returns the user's all-time impact per category.
func (s *Service) GetBreakdown(ctx context.Context, userID string) ([]CategoryBreakdown, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	now := s.clock()
	activities, err := s.allActivities(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return Aggregate(activities, time.Time{}, allTimeEnd(now)).Breakdown, nil
}

// GetRecommendations returns the catalog ordered for the user.
func (s *Service) GetRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	breakdown, err := s.GetBreakdown(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.ReadRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return OrderRecommendations(recs, breakdown), nil
}

// CompleteRecommendation marks a recommendation as done for the user. Repeating
// it is harmless.
func (s *Service) CompleteRecommendation(ctx context.Context, userID, recommendationID string) (*Recommendation, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	if err := requireID("recommendation", recommendationID); err != nil {
		return nil, err
	}
	recs, err := s.store.ReadRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	var found *Recommendation
	for i := range recs {
		if recs[i].ID == recommendationID {
			found = &recs[i]
			break
		}
	}
	if found == nil {
		return nil, ErrRecommendationNotFound
	}
	if err := s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		return tx.MarkRecommendationCompleted(ctx, recommendationID)
	}); err != nil {
		return nil, err
	}
	found.Completed = true
	return found, nil
}

// ListChallenges returns the challenge catalog.
func (s *Service) ListChallenges(ctx context.Context) ([]Challenge, error) {
	return s.store.ListChallenges(ctx)
}

// GetChallenge fetches a challenge by id.
func (s *Service) GetChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	if err := requireID("challenge", challengeID); err != nil {
		return nil, err
	}
	challenge, err := s.store.ReadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

// MyChallenges lists the user's participations.
func (s *Service) MyChallenges(ctx context.Context, userID string) ([]ChallengeParticipation, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	return s.store.ListParticipations(ctx, userID)
}

// JoinChallenge enrolls the user. Joining twice returns the existing
// participation and leaves the participant count alone.
func (s *Service) JoinChallenge(ctx context.Context, userID, challengeID string) (*ChallengeParticipation, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	challenge, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	var joined ChallengeParticipation
	err = s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		existing, err := tx.ReadParticipation(ctx, challengeID)
		if err != nil {
			return err
		}
		if existing != nil {
			joined = *existing
			return nil
		}
		if challenge.ExpiresAt != nil && now.After(*challenge.ExpiresAt) {
			return ErrChallengeExpired
		}
		joined = ChallengeParticipation{
			UserID:      userID,
			ChallengeID: challengeID,
			JoinedAt:    now,
		}
		return tx.InsertParticipation(ctx, joined)
	})
	if err != nil {
		return nil, err
	}
	return &joined, nil
}

// ChallengeOutcome reports a participation change and any reward it earned.
type ChallengeOutcome struct {
	Participation ChallengeParticipation `json:"participation"`
	PointsEarned  int                    `json:"points_earned"`
	TotalPoints   int                    `json:"total_points"`
	Level         int                    `json:"level"`
}

// UpdateProgress moves the user's progress forward. Reaching 100 completes the
// challenge and awards its reward exactly once; updates after completion
// return the participation unchanged.
func (s *Service) UpdateProgress(ctx context.Context, userID, challengeID string, progress float64) (*ChallengeOutcome, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return nil, invalidf("progress must be a finite number")
	}
	if progress < 0 || progress > 100 {
		return nil, invalidf("progress must be between 0 and 100, got %v", progress)
	}
	challenge, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	var (
		outcome ChallengeOutcome
		reward  rewardResult
	)
	err = s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		current, err := tx.ReadParticipation(ctx, challengeID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrParticipationNotFound
		}
		updated, completedNow := UpdateChallengeProgress(*current, progress, now)
		if !completedNow && updated.ProgressPercent == current.ProgressPercent {
			profile, err := tx.Profile(ctx)
			if err != nil {
				return err
			}
			outcome = ChallengeOutcome{Participation: updated, TotalPoints: profile.Points, Level: profile.Level}
			return nil
		}
		outcome, reward, err = s.settle(ctx, tx, updated, *challenge, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	reward.observe()
	return &outcome, nil
}

// CompleteChallenge marks the participation complete and awards the reward.
// A participation whose reward was already paid yields
// ErrChallengeAlreadyCompleted.
func (s *Service) CompleteChallenge(ctx context.Context, userID, challengeID string) (*ChallengeOutcome, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	challenge, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	var (
		outcome ChallengeOutcome
		reward  rewardResult
	)
	err = s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		current, err := tx.ReadParticipation(ctx, challengeID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrParticipationNotFound
		}
		if current.RewardAwarded {
			return ErrChallengeAlreadyCompleted
		}
		updated, _ := UpdateChallengeProgress(*current, 100, now)
		outcome, reward, err = s.settle(ctx, tx, updated, *challenge, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	reward.observe()
	return &outcome, nil
}

type rewardResult struct {
	completed    bool
	points       int
	levelsGained int
}

func (r rewardResult) observe() {
	if !r.completed {
		return
	}
	observability.RecordChallengeCompleted()
	observability.RecordPointsAwarded("challenge", r.points, r.levelsGained)
}

// settle persists an updated participation and pays out the reward if it is
// due. It must run inside the user's unit of work.
func (s *Service) settle(ctx context.Context, tx UserTx, p ChallengeParticipation, challenge Challenge, now time.Time) (ChallengeOutcome, rewardResult, error) {
	profile, err := tx.Profile(ctx)
	if err != nil {
		return ChallengeOutcome{}, rewardResult{}, err
	}
	rewarded, paid, earned, err := ClaimReward(profile, p, challenge)
	if err != nil {
		return ChallengeOutcome{}, rewardResult{}, err
	}
	if err := tx.UpdateParticipation(ctx, paid); err != nil {
		return ChallengeOutcome{}, rewardResult{}, err
	}

	outcome := ChallengeOutcome{
		Participation: paid,
		PointsEarned:  earned,
		TotalPoints:   rewarded.Points,
		Level:         rewarded.Level,
	}
	if !paid.RewardAwarded || p.RewardAwarded {
		return outcome, rewardResult{}, nil
	}

	rewarded.UpdatedAt = now
	if err := tx.WriteProfile(ctx, rewarded); err != nil {
		return ChallengeOutcome{}, rewardResult{}, err
	}
	if earned > 0 {
		if err := tx.RecordEvent(ctx, pointsAwardedEvent(rewarded, earned, "challenge:"+challenge.ID, now)); err != nil {
			return ChallengeOutcome{}, rewardResult{}, err
		}
	}
	if err := tx.RecordEvent(ctx, events.Envelope{
		Type:          events.TypeChallengeCompleted,
		AggregateType: "challenge",
		AggregateID:   challenge.ID,
		UserID:        rewarded.ID,
		Payload: events.ChallengeCompleted{
			UserID:       rewarded.ID,
			ChallengeID:  challenge.ID,
			PointsEarned: earned,
			CO2SavedKg:   challenge.CO2SavingKg,
			CompletedAt:  now,
		},
	}); err != nil {
		return ChallengeOutcome{}, rewardResult{}, err
	}
	return outcome, rewardResult{
		completed:    true,
		points:       earned,
		levelsGained: rewarded.Level - profile.Level,
	}, nil
}

func pointsAwardedEvent(profile UserProfile, delta int, reason string, now time.Time) events.Envelope {
	return events.Envelope{
		Type:          events.TypePointsAwarded,
		AggregateType: "user",
		AggregateID:   profile.ID,
		UserID:        profile.ID,
		Payload: events.PointsAwarded{
			UserID:     profile.ID,
			Delta:      delta,
			Points:     profile.Points,
			Level:      profile.Level,
			Reason:     reason,
			OccurredAt: now,
		},
	}
}

// AddPoints credits points to the user and levels them up as thresholds are
// crossed.
func (s *Service) AddPoints(ctx context.Context, userID string, delta int, reason string) (*UserProfile, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	if delta < 0 {
		return nil, invalidf("points delta must be >= 0, got %d", delta)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual"
	}
	now := s.clock()

	var (
		updated      UserProfile
		levelsGained int
	)
	err := s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		profile, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		updated, err = AddPoints(profile, delta)
		if err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}
		levelsGained = updated.Level - profile.Level
		updated.UpdatedAt = now
		if err := tx.WriteProfile(ctx, updated); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, pointsAwardedEvent(updated, delta, reason, now))
	})
	if err != nil {
		return nil, err
	}
	observability.RecordPointsAwarded(reason, delta, levelsGained)
	return &updated, nil
}

// GetProfile fetches the user's profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	profile, err := s.store.ReadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	return profile, nil
}

// UpdateProfile changes the user's display name.
func (s *Service) UpdateProfile(ctx context.Context, userID, displayName string) (*UserProfile, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, invalidf("display name is required")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return nil, invalidf("display name must be at most %d characters", maxDisplayNameLength)
	}
	now := s.clock()

	var updated UserProfile
	err := s.store.WithinUserTx(ctx, userID, func(tx UserTx) error {
		profile, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		profile.DisplayName = displayName
		profile.UpdatedAt = now
		updated = profile
		return tx.WriteProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetUserStats composes the user dashboard. Users without a profile get the
// starting figures.
func (s *Service) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	if err := requireID("user", userID); err != nil {
		return UserStats{}, err
	}
	now := s.clock()

	var (
		profile        *UserProfile
		activities     []ActivityRecord
		participations []ChallengeParticipation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.store.ReadProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = s.allActivities(gctx, userID, now)
		return err
	})
	g.Go(func() error {
		var err error
		participations, err = s.store.ListParticipations(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return UserStats{}, err
	}
	if profile == nil {
		fresh := NewProfile(userID, "", now)
		profile = &fresh
	}
	return BuildUserStats(UserStatsInput{
		Profile:        *profile,
		Activities:     activities,
		Participations: participations,
		Now:            now,
	}), nil
}

// GetCommunityStats summarises the community.
func (s *Service) GetCommunityStats(ctx context.Context) (CommunityStats, error) {
	now := s.clock()

	var (
		counts   CommunityCounts
		profiles []UserProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.store.CommunityCounts(gctx, StartOfDay(now))
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.store.ListProfiles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return CommunityStats{}, err
	}
	return BuildCommunityStats(counts, profiles), nil
}

// GetLeaderboard returns the top users. A non-positive limit uses the
// configured default.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 {
		limit = s.leaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	ranked := Rank(RankEntriesFromProfiles(profiles))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ListPosts returns one page of community posts, newest first.
func (s *Service) ListPosts(ctx context.Context, page PageRequest) (PostPage, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit <= 0 {
		page.Limit = defaultPostPage
	}
	if page.Limit > maxPostPage {
		page.Limit = maxPostPage
	}
	posts, total, err := s.store.ReadPosts(ctx, page)
	if err != nil {
		return PostPage{}, err
	}
	if posts == nil {
		posts = []CommunityPost{}
	}
	return PostPage{
		Posts:      posts,
		Total:      total,
		Page:       page.Page,
		TotalPages: (total + page.Limit - 1) / page.Limit,
	}, nil
}

// CreatePostInput captures the payload from the API layer.
type CreatePostInput struct {
	UserID  string
	Content string
	Type    string
}

// CreatePost publishes a post under the user's current display name.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*CommunityPost, error) {
	if err := requireID("user", in.UserID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalidf("content is required")
	}
	if utf8.RuneCountInString(content) > maxPostLength {
		return nil, invalidf("content must be at most %d characters", maxPostLength)
	}
	postType, ok := ParsePostType(in.Type)
	if !ok {
		return nil, invalidf("unknown post type %q", in.Type)
	}
	now := s.clock()

	var post CommunityPost
	err := s.store.WithinUserTx(ctx, in.UserID, func(tx UserTx) error {
		profile, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		post = CommunityPost{
			ID:         ulid.Make().String(),
			AuthorID:   in.UserID,
			AuthorName: profile.DisplayName,
			Content:    content,
			Type:       postType,
			CreatedAt:  now,
		}
		if err := tx.WritePost(ctx, post); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, events.Envelope{
			Type:          events.TypePostCreated,
			AggregateType: "post",
			AggregateID:   post.ID,
			UserID:        in.UserID,
			Payload: events.PostCreated{
				PostID:    post.ID,
				AuthorID:  in.UserID,
				Type:      string(postType),
				CreatedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	observability.RecordPostCreated(string(postType))
	return &post, nil
}

// LikePost increments a post's like count and returns the new count.
func (s *Service) LikePost(ctx context.Context, postID string) (int, error) {
	if err := requireID("post", postID); err != nil {
		return 0, err
	}
	return s.store.LikePost(ctx, postID)
}
