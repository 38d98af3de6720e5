package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// DefaultNotificationLimit is the number of notifications returned by List
const DefaultNotificationLimit = 20

// Notification texts. The rendered text is stored with the notification and
// never recomputed.
const (
	textAnonymousQuestion = "An anonymous user asked you a question."
	textQuestionMention   = "A question that mentions you was answered."
	textAnswerMention     = "You were mentioned in an answer."
)

func questionText(sender *entities.Profile) string {
	if sender == nil {
		return textAnonymousQuestion
	}
	return fmt.Sprintf("%s asked you a question.", sender.DisplayName())
}

func followText(follower *entities.Profile) string {
	return fmt.Sprintf("%s started following you.", follower.DisplayName())
}

func commentMentionText(commenter *entities.Profile) string {
	return fmt.Sprintf("%s mentioned you in a comment.", commenter.Username)
}

// NotificationDispatcher creates, lists and clears notifications
type NotificationDispatcher struct {
	repo     ports.NotificationRepository
	profiles ports.ProfileRepository
	clock    ports.Clock
	ids      ports.IDGenerator
	logger   *zap.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(deps Dependencies) *NotificationDispatcher {
	deps.withDefaults()
	return &NotificationDispatcher{
		repo:     deps.Notifications,
		profiles: deps.Profiles,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   deps.Logger,
	}
}

// Create inserts a notification. senderID and questionID may be empty.
func (d *NotificationDispatcher) Create(
	ctx context.Context,
	recipientID, senderID string,
	kind entities.NotificationType,
	questionID, text string,
) (*entities.Notification, error) {
	n := &entities.Notification{
		ID:          d.ids.NewID(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        kind,
		QuestionID:  questionID,
		Text:        text,
		CreatedAt:   d.clock.Now(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, storeError(err, "notification", "notifications.Create")
	}
	return n, nil
}

// Notify is the fan-out form of Create used after a primary mutation has
// already been stored. Failures are logged and dropped.
func (d *NotificationDispatcher) Notify(
	ctx context.Context,
	recipientID, senderID string,
	kind entities.NotificationType,
	questionID, text string,
) {
	if _, err := d.Create(ctx, recipientID, senderID, kind, questionID, text); err != nil {
		d.logger.Warn("Failed to create notification",
			zap.String("recipientID", recipientID),
			zap.String("type", string(kind)),
			zap.String("questionID", questionID),
			zap.Error(err),
		)
	}
}

// List returns the newest notifications of recipientID joined with sender summaries
func (d *NotificationDispatcher) List(ctx context.Context, recipientID string, limit int) ([]*entities.NotificationView, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	items, err := d.repo.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, storeError(err, "notification", "notifications.ListByRecipient")
	}

	senders := make([]string, 0, len(items))
	for _, n := range items {
		senders = append(senders, n.SenderID)
	}
	lookup, err := summaries(ctx, d.profiles, senders)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.NotificationView, 0, len(items))
	for _, n := range items {
		view := &entities.NotificationView{Notification: n}
		if n.SenderID != "" {
			view.Sender = lookup(n.SenderID)
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkRead marks one notification as read. Unknown ids and notifications owned
// by someone else are ignored without error.
func (d *NotificationDispatcher) MarkRead(ctx context.Context, id, recipientID string) error {
	if _, err := d.repo.MarkRead(ctx, id, recipientID); err != nil {
		return storeError(err, "notification", "notifications.MarkRead")
	}
	return nil
}

// MarkAllRead marks every notification of recipientID as read
func (d *NotificationDispatcher) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	n, err := d.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, storeError(err, "notification", "notifications.MarkAllRead")
	}
	return n, nil
}

// DeleteAll permanently removes every notification of recipientID
func (d *NotificationDispatcher) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	n, err := d.repo.DeleteAll(ctx, recipientID)
	if err != nil {
		return 0, storeError(err, "notification", "notifications.DeleteAll")
	}
	return n, nil
}

// DeleteForQuestion removes the notifications referencing a deleted question
func (d *NotificationDispatcher) DeleteForQuestion(ctx context.Context, questionID string) (int, error) {
	n, err := d.repo.DeleteByQuestion(ctx, questionID)
	if err != nil {
		return 0, storeError(err, "notification", "notifications.DeleteByQuestion")
	}
	return n, nil
}
