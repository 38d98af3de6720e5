package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "askingwho-backend/pkg/errors"
)

func TestProfileCanView(t *testing.T) {
	owner := &Profile{
		ID:        "owner",
		Followers: []string{"fan", "mutual"},
		Following: []string{"idol", "mutual"},
	}

	tests := []struct {
		visibility Visibility
		viewer     string
		want       bool
	}{
		{VisibilityEveryone, "", true},
		{"", "stranger", true},
		{VisibilityNone, "fan", false},
		{VisibilityNone, "owner", true},
		{VisibilityFollowers, "fan", true},
		{VisibilityFollowers, "idol", false},
		{VisibilityFollowers, "", false},
		{VisibilityFollowing, "idol", true},
		{VisibilityFollowing, "fan", false},
		{VisibilityBoth, "mutual", true},
		{VisibilityBoth, "fan", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.visibility)+"/"+tt.viewer, func(t *testing.T) {
			assert.Equal(t, tt.want, owner.CanView(tt.visibility, tt.viewer))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&Profile{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}).DisplayName())
	assert.Equal(t, "ada", (&Profile{Username: "ada"}).DisplayName())
}

func TestNewQuestion(t *testing.T) {
	now := time.Now()

	t.Run("Should trim and initialise sets", func(t *testing.T) {
		q, err := NewQuestion("q1", "a", "b", "  hello  ", false, 500, now)
		require.NoError(t, err)
		assert.Equal(t, "hello", q.Text)
		assert.NotNil(t, q.Likes)
		assert.NotNil(t, q.Comments)
		assert.False(t, q.IsAnswered())
	})

	t.Run("Should reject self questions", func(t *testing.T) {
		_, err := NewQuestion("q1", "a", "a", "hello", false, 500, now)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeSelfReference, pkgerrors.GetAppError(err).Code)
	})

	t.Run("Should reject blank text", func(t *testing.T) {
		_, err := NewQuestion("q1", "a", "b", "   ", false, 500, now)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should reject long text", func(t *testing.T) {
		_, err := NewQuestion("q1", "a", "b", "abcdef", false, 5, now)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeTextTooLong, pkgerrors.GetAppError(err).Code)
	})

	t.Run("Should force anonymity without sender", func(t *testing.T) {
		q, err := NewQuestion("q1", "", "b", "hi", false, 500, now)
		require.NoError(t, err)
		assert.True(t, q.IsAnonymous)
	})
}

func TestQuestionViewHidesAnonymousSender(t *testing.T) {
	q, err := NewQuestion("q1", "asker", "owner", "who am i", true, 500, time.Now())
	require.NoError(t, err)
	q.Comments = append(q.Comments, Comment{UserID: "c1", Text: "nice"})

	lookup := func(id string) *ProfileSummary { return &ProfileSummary{ID: id, Username: id} }
	view := NewQuestionView(q, lookup)

	assert.Nil(t, view.From)
	assert.Equal(t, "owner", view.To.ID)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, "c1", view.Comments[0].User.Username)
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))

	c := NewConversation("c1", "zed", "amy", time.Now())
	assert.Equal(t, [2]string{"amy", "zed"}, c.Participants)
	assert.True(t, c.HasParticipant("zed"))
	assert.False(t, c.HasParticipant(""))
	assert.Equal(t, "amy", c.Other("zed"))
}
