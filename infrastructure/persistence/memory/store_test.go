package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

func TestProfileStoreEdges(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()
	require.NoError(t, s.Save(ctx, &entities.Profile{ID: "a", Username: "alice"}))

	t.Run("Should add once", func(t *testing.T) {
		added, err := s.AddFollowing(ctx, "a", "b")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = s.AddFollowing(ctx, "a", "b")
		require.NoError(t, err)
		assert.False(t, added)

		p, err := s.GetByID(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, p.Following)
		assert.Equal(t, 1, p.Stats.Following)
	})

	t.Run("Should not decrement a missing edge", func(t *testing.T) {
		removed, err := s.RemoveFollower(ctx, "a", "nobody")
		require.NoError(t, err)
		assert.False(t, removed)

		p, _ := s.GetByID(ctx, "a")
		assert.Equal(t, 0, p.Stats.Followers)
	})

	t.Run("Should report unknown profiles", func(t *testing.T) {
		_, err := s.AddFollower(ctx, "missing", "a")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestProfileStoreConcurrentFollow(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()
	require.NoError(t, s.Save(ctx, &entities.Profile{ID: "a", Username: "alice"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddFollowing(ctx, "a", "b")
		}()
	}
	wg.Wait()

	p, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, p.Following, 1)
	assert.Equal(t, 1, p.Stats.Following)
}

func TestProfileStoreHandles(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()
	require.NoError(t, s.Save(ctx, &entities.Profile{ID: "b", Username: "Bob"}))

	p, err := s.FindByHandle(ctx, "bOB")
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)

	_, err = s.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	err = s.Save(ctx, &entities.Profile{ID: "other", Username: "BOB"})
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestQuestionStoreAnswer(t *testing.T) {
	ctx := context.Background()
	s := NewQuestionStore()
	q, err := entities.NewQuestion("q1", "a", "b", "hi", false, 0, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, q))

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev, err := s.SetAnswer(ctx, "q1", "one", first)
	require.NoError(t, err)
	assert.False(t, prev.IsAnswered())

	prev, err = s.SetAnswer(ctx, "q1", "two", first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "one", prev.Answer)

	got, err := s.GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Answer)
	assert.True(t, got.AnsweredAt.Equal(first))
}

func TestQuestionStoreListAnsweredWindow(t *testing.T) {
	ctx := context.Background()
	s := NewQuestionStore()
	base := time.Now()
	for i := 0; i < 15; i++ {
		q, err := entities.NewQuestion(fmt.Sprintf("q%02d", i), "a", "b", "hi", false, 0, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Create(ctx, q))
		_, err = s.SetAnswer(ctx, q.ID, "yes", base)
		require.NoError(t, err)
	}

	items, total, err := s.ListAnswered(ctx, "b", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	require.Len(t, items, 5)
	assert.Equal(t, "q04", items[0].ID)

	items, _, err = s.ListAnswered(ctx, "b", 20, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConversationStorePairUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore()
	require.NoError(t, s.Create(ctx, entities.NewConversation("c1", "a", "b", time.Now())))

	err := s.Create(ctx, entities.NewConversation("c2", "b", "a", time.Now()))
	assert.ErrorIs(t, err, ports.ErrConflict)

	c, err := s.FindByPair(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}

func TestNotificationStoreOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewNotificationStore()
	require.NoError(t, s.Create(ctx, &entities.Notification{ID: "n1", RecipientID: "a", CreatedAt: time.Now()}))

	ok, err := s.MarkRead(ctx, "n1", "intruder")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkRead(ctx, "n1", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.MarkAllRead(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
