package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askingwho-backend/domain/core/entities"
	"askingwho-backend/infrastructure/cache"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

func usernames(entries []entities.RankEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.User.Username)
	}
	return out
}

func TestAggregateService_Leaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, name := range []string{"alice", "bob", "carol", "dave", "erin", "frank", "gina"} {
		f.user(t, name)
	}
	for _, follower := range []string{"bob", "carol", "dave"} {
		_, err := f.graph.Follow(ctx, follower, "alice")
		require.NoError(t, err)
	}
	for _, follower := range []string{"alice", "carol"} {
		_, err := f.graph.Follow(ctx, follower, "bob")
		require.NoError(t, err)
	}

	ask := func(from, to string, answer bool) *entities.Question {
		q, err := f.engagement.SendQuestion(ctx, from, to, "why?", false)
		require.NoError(t, err)
		if answer {
			_, err = f.engagement.Answer(ctx, q.ID, to, "because")
			require.NoError(t, err)
		}
		return q
	}
	ask("bob", "carol", true)
	ask("dave", "carol", true)
	q := ask("alice", "bob", true)
	ask("alice", "bob", false)
	ask("alice", "bob", false)
	_, err := f.engagement.Like(ctx, q.ID, "carol")
	require.NoError(t, err)

	board, err := f.aggregates.Leaderboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, usernames(board.MostFollowers))
	assert.Equal(t, 3, board.MostFollowers[0].Count)
	assert.Equal(t, []string{"carol", "bob"}, usernames(board.MostAnswered))
	assert.Equal(t, []string{"bob"}, usernames(board.MostLiked))
	assert.Equal(t, []string{"bob", "carol"}, usernames(board.MostAsked))
}

func TestAggregateService_LeaderboardTopFive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	names := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for _, name := range names {
		f.user(t, name)
	}
	// Every member follows everyone else, so all tie and usernames decide.
	for _, a := range names {
		for _, b := range names {
			if a != b {
				_, err := f.graph.Follow(ctx, a, b)
				require.NoError(t, err)
			}
		}
	}

	board, err := f.aggregates.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, usernames(board.MostFollowers))
}

func TestAggregateService_Caching(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "alice")
	f.user(t, "bob")

	c, err := cache.New("aggregates", 16)
	require.NoError(t, err)
	deps := f.deps
	deps.Cache = c
	aggregates := NewAggregateService(deps, f.engagement, time.Minute)

	board, err := aggregates.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board.MostFollowers)

	_, err = f.graph.Follow(ctx, "bob", "alice")
	require.NoError(t, err)

	board, err = aggregates.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board.MostFollowers, "cached leaderboard stays until its ttl passes")

	c.Invalidate(leaderboardKey)
	board, err = aggregates.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, usernames(board.MostFollowers))

	q, err := f.engagement.SendQuestion(ctx, "bob", "alice", "hi?", false)
	require.NoError(t, err)
	_, err = f.engagement.Answer(ctx, q.ID, "alice", "hello")
	require.NoError(t, err)

	req := common.NewPageRequest(1, 0, DefaultAnsweredLimit)
	feed, err := aggregates.Feed(ctx, req)
	require.NoError(t, err)
	assert.Len(t, feed.Items, 1)

	other, err := aggregates.Feed(ctx, common.NewPageRequest(2, 0, DefaultAnsweredLimit))
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestAggregateService_ProfileView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "bob")
	f.user(t, "carol")
	f.user(t, "dave")
	alice := &entities.Profile{
		ID:        "alice",
		Username:  "alice",
		FirstName: "Alice",
		Bio:       "hi",
		Privacy: entities.Privacy{
			FollowerCount: entities.VisibilityEveryone,
			QuestionCount: entities.VisibilityFollowers,
			LikeCount:     entities.VisibilityNone,
			MostAsked:     entities.VisibilityFollowers,
			MostLiked:     entities.VisibilityNone,
		},
	}
	require.NoError(t, f.store.Profiles.Save(ctx, alice))

	_, err := f.graph.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = f.graph.Follow(ctx, "carol", "bob")
	require.NoError(t, err)
	q, err := f.engagement.SendQuestion(ctx, "bob", "alice", "hi?", false)
	require.NoError(t, err)
	_, err = f.engagement.SendQuestion(ctx, "carol", "alice", "secret", true)
	require.NoError(t, err)
	_, err = f.engagement.Like(ctx, q.ID, "dave")
	require.NoError(t, err)
	_, err = f.engagement.Comment(ctx, q.ID, "carol", "nice")
	require.NoError(t, err)

	t.Run("Should show public fields to guests", func(t *testing.T) {
		view, err := f.aggregates.ProfileView(ctx, "alice", "")
		require.NoError(t, err)
		require.NotNil(t, view.Followers)
		assert.Equal(t, 1, *view.Followers)
		assert.Nil(t, view.Questions)
		assert.Nil(t, view.Likes)
		assert.False(t, view.IsFollowing)
		assert.False(t, view.IsOwner)
		assert.Nil(t, view.Stats.MostAsked)
		assert.Nil(t, view.Stats.MostLiked)
		assert.Equal(t, []string{"carol"}, usernames(view.Stats.MostCommented))
	})

	t.Run("Should show follower fields to followers", func(t *testing.T) {
		view, err := f.aggregates.ProfileView(ctx, "alice", "bob")
		require.NoError(t, err)
		require.NotNil(t, view.Questions)
		assert.Equal(t, 2, *view.Questions)
		assert.True(t, view.IsFollowing)
		assert.Equal(t, []string{"bob"}, usernames(view.Stats.MostAsked))
		assert.Nil(t, view.Likes)
	})

	t.Run("Should show everything to the owner", func(t *testing.T) {
		view, err := f.aggregates.ProfileView(ctx, "alice", "alice")
		require.NoError(t, err)
		assert.True(t, view.IsOwner)
		require.NotNil(t, view.Likes)
		assert.Equal(t, 1, *view.Likes)
		assert.Equal(t, []string{"dave"}, usernames(view.Stats.MostLiked))
		assert.Equal(t, []string{"bob"}, usernames(view.Stats.MostFollowers))
	})

	t.Run("Should report unknown members", func(t *testing.T) {
		_, err := f.aggregates.ProfileView(ctx, "ghost", "")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestAggregateService_Directory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "alice")

	match, err := f.aggregates.FindUser(ctx, " alice ")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "alice", match.ID)

	match, err = f.aggregates.FindUser(ctx, "Alice")
	require.NoError(t, err)
	assert.Nil(t, match)

	_, err = f.aggregates.FindUser(ctx, "  ")
	assert.True(t, pkgerrors.IsValidation(err))

	me, err := f.aggregates.OwnProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, err = f.aggregates.OwnProfile(ctx, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
}
