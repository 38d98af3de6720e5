package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

const (
	// DefaultAggregateTTL is how long a cached aggregate stays fresh
	DefaultAggregateTTL = 60 * time.Second

	rankSize = 5

	leaderboardKey = "leaderboard"
)

func feedKey(req common.PageRequest) string { return fmt.Sprintf("feed:%d:%d", req.Page, req.Limit) }
func profileKey(userID string) string      { return "profile:" + userID }

// AggregateService serves the leaderboard, the global feed and per-profile
// rankings through the injected read-through cache
type AggregateService struct {
	profiles   ports.ProfileRepository
	questions  ports.QuestionRepository
	engagement *EngagementService
	cache      ports.Cache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewAggregateService creates a new aggregate service. A nil cache or a
// non-positive ttl computes every aggregate on demand.
func NewAggregateService(deps Dependencies, engagement *EngagementService, ttl time.Duration) *AggregateService {
	deps.withDefaults()
	return &AggregateService{
		profiles:   deps.Profiles,
		questions:  deps.Questions,
		engagement: engagement,
		cache:      deps.Cache,
		ttl:        ttl,
		logger:     deps.Logger,
	}
}

func (s *AggregateService) cached(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if s.cache == nil || s.ttl <= 0 {
		return load(ctx)
	}
	return s.cache.GetOrLoad(ctx, key, s.ttl, load)
}

// Leaderboard returns the global top-5 rankings
func (s *AggregateService) Leaderboard(ctx context.Context) (*entities.Leaderboard, error) {
	v, err := s.cached(ctx, leaderboardKey, func(ctx context.Context) (interface{}, error) {
		return s.computeLeaderboard(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Leaderboard), nil
}

func (s *AggregateService) computeLeaderboard(ctx context.Context) (*entities.Leaderboard, error) {
	var (
		profiles []*entities.Profile
		answered map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.profiles.List(gctx)
		return storeError(err, "profile", "profiles.List")
	})
	g.Go(func() error {
		var err error
		answered, err = s.questions.CountAnsweredByRecipient(gctx)
		return storeError(err, "question", "questions.CountAnsweredByRecipient")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Profile, len(profiles))
	followers := make(map[string]int, len(profiles))
	liked := make(map[string]int, len(profiles))
	asked := make(map[string]int, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
		followers[p.ID] = len(p.Followers)
		liked[p.ID] = p.Stats.Likes
		asked[p.ID] = p.Stats.Questions
	}

	s.logger.Debug("Leaderboard recomputed", zap.Int("profiles", len(profiles)))
	return &entities.Leaderboard{
		MostFollowers: rank(followers, byID),
		MostAnswered:  rank(answered, byID),
		MostLiked:     rank(liked, byID),
		MostAsked:     rank(asked, byID),
	}, nil
}

// Feed returns one page of the global answered-question feed
func (s *AggregateService) Feed(ctx context.Context, req common.PageRequest) (common.Page[*entities.QuestionView], error) {
	v, err := s.cached(ctx, feedKey(req), func(ctx context.Context) (interface{}, error) {
		return s.engagement.Feed(ctx, req)
	})
	if err != nil {
		return common.Page[*entities.QuestionView]{}, err
	}
	return v.(common.Page[*entities.QuestionView]), nil
}

// ProfileRanks returns the top askers, likers, commenters and most-followed
// followers of one member
func (s *AggregateService) ProfileRanks(ctx context.Context, userID string) (*entities.ProfileRanks, error) {
	v, err := s.cached(ctx, profileKey(userID), func(ctx context.Context) (interface{}, error) {
		return s.computeProfileRanks(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.ProfileRanks), nil
}

func (s *AggregateService) computeProfileRanks(ctx context.Context, userID string) (*entities.ProfileRanks, error) {
	owner, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByID")
	}
	questions, err := s.questions.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, storeError(err, "question", "questions.ListByRecipient")
	}

	askers := make(map[string]int)
	likers := make(map[string]int)
	commenters := make(map[string]int)
	for _, q := range questions {
		if from := q.VisibleFromID(); from != "" {
			askers[from]++
		}
		for _, id := range q.Likes {
			likers[id]++
		}
		for _, c := range q.Comments {
			commenters[c.UserID]++
		}
	}

	ids := append([]string{}, owner.Followers...)
	for _, counts := range []map[string]int{askers, likers, commenters} {
		for id := range counts {
			ids = append(ids, id)
		}
	}
	related, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, storeError(err, "profile", "profiles.GetMany")
	}

	popularity := make(map[string]int, len(owner.Followers))
	for _, id := range owner.Followers {
		if p, ok := related[id]; ok {
			popularity[id] = len(p.Followers)
		}
	}

	return &entities.ProfileRanks{
		MostAsked:     rank(askers, related),
		MostLiked:     rank(likers, related),
		MostCommented: rank(commenters, related),
		MostFollowers: rank(popularity, related),
	}, nil
}

// ProfileView renders username's profile for viewerID (empty for guests),
// hiding every counter and ranking the owner's privacy settings withhold
func (s *AggregateService) ProfileView(ctx context.Context, username, viewerID string) (*entities.ProfileView, error) {
	if username == "" {
		return nil, pkgerrors.NewValidationError("username is required")
	}
	p, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByUsername")
	}

	view := &entities.ProfileView{
		ProfileSummary: p.Summary(),
		Bio:            p.Bio,
		IsFollowing:    viewerID != "" && p.HasFollower(viewerID),
		IsOwner:        viewerID != "" && viewerID == p.ID,
		CreatedAt:      p.CreatedAt,
	}
	show := func(v entities.Visibility, n int) *int {
		if !p.CanView(v, viewerID) {
			return nil
		}
		return &n
	}
	view.Followers = show(p.Privacy.FollowerCount, len(p.Followers))
	view.Following = show(p.Privacy.FollowingCount, len(p.Following))
	view.Questions = show(p.Privacy.QuestionCount, p.Stats.Questions)
	view.Likes = show(p.Privacy.LikeCount, p.Stats.Likes)

	ranks, err := s.ProfileRanks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	gated := &entities.ProfileRanks{}
	if p.CanView(p.Privacy.MostAsked, viewerID) {
		gated.MostAsked = ranks.MostAsked
	}
	if p.CanView(p.Privacy.MostLiked, viewerID) {
		gated.MostLiked = ranks.MostLiked
	}
	if p.CanView(p.Privacy.MostCommented, viewerID) {
		gated.MostCommented = ranks.MostCommented
	}
	if p.CanView(p.Privacy.MostFollowers, viewerID) {
		gated.MostFollowers = ranks.MostFollowers
	}
	view.Stats = gated
	return view, nil
}

// FindUser looks a member up by exact username. An unknown username is not an
// error; the result is nil.
func (s *AggregateService) FindUser(ctx context.Context, username string) (*entities.ProfileSummary, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.NewValidationError("username is required")
	}
	p, err := s.profiles.GetByUsername(ctx, username)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByUsername")
	}
	return p.Summary(), nil
}

// OwnProfile returns the caller's full profile, privacy settings included
func (s *AggregateService) OwnProfile(ctx context.Context, userID string) (*entities.Profile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByID")
	}
	return p, nil
}

// rank returns the top entries of counts with a known profile, by count
// descending and username ascending. Zero counts are left out.
func rank(counts map[string]int, profiles map[string]*entities.Profile) []entities.RankEntry {
	entries := make([]entities.RankEntry, 0, len(counts))
	for id, n := range counts {
		p, ok := profiles[id]
		if !ok || n <= 0 {
			continue
		}
		entries = append(entries, entities.RankEntry{User: p.Summary(), Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].User.Username < entries[j].User.Username
	})
	if len(entries) > rankSize {
		entries = entries[:rankSize]
	}
	return entries
}
