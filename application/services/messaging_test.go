package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

func TestMessagingService_StartConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "alice")
	f.user(t, "bob")

	first, err := f.messaging.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", first.OtherUser.Username)

	second, err := f.messaging.StartConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", second.OtherUser.Username)

	_, err = f.messaging.StartConversation(ctx, "alice", "alice")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.messaging.StartConversation(ctx, "alice", "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMessagingService_SendMessage(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *entities.ConversationView) {
		f := newFixture(t)
		f.user(t, "alice")
		f.user(t, "bob")
		f.user(t, "mallory")
		conv, err := f.messaging.StartConversation(ctx, "alice", "bob")
		require.NoError(t, err)
		return f, conv
	}

	t.Run("Should store, preview and push to the receiver", func(t *testing.T) {
		f, conv := setup(t)

		msg, err := f.messaging.SendMessage(ctx, conv.ID, "alice", "", " hello ")
		require.NoError(t, err)
		assert.Equal(t, "bob", msg.ReceiverID)
		assert.Equal(t, "hello", msg.Text)
		assert.False(t, msg.IsRead)

		require.Len(t, f.publisher.events, 1)
		ev := f.publisher.events[0]
		assert.Equal(t, "bob", ev.userID)
		assert.Equal(t, ports.EventNewMessage, ev.event)
		assert.Equal(t, msg, ev.payload)

		convs, err := f.messaging.ListConversations(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "hello", convs[0].LastMessage)
		assert.Equal(t, "alice", convs[0].OtherUser.Username)
	})

	t.Run("Should forbid outsiders and unknown conversations", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.messaging.SendMessage(ctx, conv.ID, "mallory", "", "hi")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsForbidden(err))
		assert.Equal(t, pkgerrors.CodeNotParticipant, pkgerrors.GetAppError(err).Code)

		_, err = f.messaging.SendMessage(ctx, "missing", "alice", "", "hi")
		assert.True(t, pkgerrors.IsForbidden(err))
		assert.Empty(t, f.publisher.events)
	})

	t.Run("Should reject a receiver outside the conversation", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.messaging.SendMessage(ctx, conv.ID, "alice", "mallory", "hi")
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should reject empty text", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.messaging.SendMessage(ctx, conv.ID, "alice", "bob", "  ")
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestMessagingService_ListAndRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "alice")
	f.user(t, "bob")
	f.user(t, "mallory")
	conv, err := f.messaging.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	var last *entities.Message
	for _, text := range []string{"one", "two", "three"} {
		last, err = f.messaging.SendMessage(ctx, conv.ID, "alice", "bob", text)
		require.NoError(t, err)
	}

	page, err := f.messaging.ListMessages(ctx, conv.ID, "bob", common.NewPageRequest(1, 2, DefaultMessageLimit))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "three", page.Items[0].Text)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)

	_, err = f.messaging.ListMessages(ctx, conv.ID, "mallory", common.NewPageRequest(1, 2, DefaultMessageLimit))
	assert.True(t, pkgerrors.IsForbidden(err))

	err = f.messaging.MarkMessageRead(ctx, last.ID, "alice")
	assert.True(t, pkgerrors.IsForbidden(err))

	require.NoError(t, f.messaging.MarkMessageRead(ctx, last.ID, "bob"))
	require.NoError(t, f.messaging.MarkMessageRead(ctx, last.ID, "bob"))
	stored, err := f.store.Messages.GetByID(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)

	err = f.messaging.MarkMessageRead(ctx, "missing", "bob")
	assert.True(t, pkgerrors.IsNotFound(err))
}
