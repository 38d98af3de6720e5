package ports

import (
	"context"
	"errors"
	"time"

	"askingwho-backend/domain/core/entities"
)

// Store sentinels. Repository implementations return these (possibly wrapped)
// and services translate them into application errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	// ErrUnavailable marks throttled or temporarily failing store calls.
	ErrUnavailable = errors.New("store temporarily unavailable")
)

// ProfileRepository is the identity directory view of member profiles plus the
// single-document graph mutations the social graph manager relies on.
type ProfileRepository interface {
	Save(ctx context.Context, profile *entities.Profile) error
	GetByID(ctx context.Context, id string) (*entities.Profile, error)
	GetByUsername(ctx context.Context, username string) (*entities.Profile, error)
	// FindByHandle matches a username case-insensitively.
	FindByHandle(ctx context.Context, handle string) (*entities.Profile, error)
	GetMany(ctx context.Context, ids []string) (map[string]*entities.Profile, error)
	List(ctx context.Context) ([]*entities.Profile, error)

	// AddFollowing adds targetID to the following set of userID and increments
	// the following counter in one conditional update. added is false when the
	// edge already existed, in which case nothing changes.
	AddFollowing(ctx context.Context, userID, targetID string) (added bool, err error)
	AddFollower(ctx context.Context, userID, followerID string) (added bool, err error)
	// RemoveFollowing and RemoveFollower only decrement when the edge was present.
	RemoveFollowing(ctx context.Context, userID, targetID string) (removed bool, err error)
	RemoveFollower(ctx context.Context, userID, followerID string) (removed bool, err error)

	IncrementStat(ctx context.Context, userID string, field entities.StatField, delta int) error
}

// QuestionRepository stores questions with their likes and comments
type QuestionRepository interface {
	Create(ctx context.Context, q *entities.Question) error
	GetByID(ctx context.Context, id string) (*entities.Question, error)
	// SetAnswer stores the answer text, sets AnsweredAt to now only if it is
	// unset, and returns the question as it was before the update.
	SetAnswer(ctx context.Context, id, answer string, now time.Time) (previous *entities.Question, err error)
	// AddLike and RemoveLike return the resulting like count and whether the set changed.
	AddLike(ctx context.Context, id, userID string) (count int, changed bool, err error)
	RemoveLike(ctx context.Context, id, userID string) (count int, changed bool, err error)
	AppendComment(ctx context.Context, id string, comment entities.Comment) error
	Delete(ctx context.Context, id string) error

	ListUnanswered(ctx context.Context, toID string) ([]*entities.Question, error)
	// ListAnswered returns one window of a member's answered questions, newest
	// created first, along with the total count.
	ListAnswered(ctx context.Context, toID string, skip, limit int) ([]*entities.Question, int, error)
	// ListFeed returns one window of all answered questions by answeredAt descending.
	ListFeed(ctx context.Context, skip, limit int) ([]*entities.Question, int, error)
	ListByRecipient(ctx context.Context, toID string) ([]*entities.Question, error)
	CountAnsweredByRecipient(ctx context.Context) (map[string]int, error)
}

// NotificationRepository stores notifications per recipient
type NotificationRepository interface {
	Create(ctx context.Context, n *entities.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entities.Notification, error)
	// MarkRead flips IsRead for a notification owned by recipientID. It reports
	// false without error when no such notification exists.
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	DeleteAll(ctx context.Context, recipientID string) (int, error)
	DeleteByQuestion(ctx context.Context, questionID string) (int, error)
}

// ConversationRepository stores two-party conversations
type ConversationRepository interface {
	// Create fails with ErrConflict when a conversation already exists for the pair.
	Create(ctx context.Context, c *entities.Conversation) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	FindByPair(ctx context.Context, a, b string) (*entities.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error)
	UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error
}

// MessageRepository stores the messages of conversations
type MessageRepository interface {
	Create(ctx context.Context, m *entities.Message) error
	GetByID(ctx context.Context, id string) (*entities.Message, error)
	// ListByConversation returns one window of messages, newest first.
	ListByConversation(ctx context.Context, conversationID string, skip, limit int) ([]*entities.Message, int, error)
	MarkRead(ctx context.Context, id string) error
}
