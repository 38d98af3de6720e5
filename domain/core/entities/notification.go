package entities

import "time"

// NotificationType classifies what triggered a notification
type NotificationType string

const (
	NotificationFollow   NotificationType = "follow"
	NotificationQuestion NotificationType = "question"
	NotificationLike     NotificationType = "like"
	NotificationAnswer   NotificationType = "answer"
	NotificationMention  NotificationType = "mention"
)

// Notification is an immutable snapshot addressed to one recipient.
// Only IsRead changes after creation, and only from false to true.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient"`
	SenderID    string           `json:"sender,omitempty"`
	Type        NotificationType `json:"type"`
	QuestionID  string           `json:"question,omitempty"`
	Text        string           `json:"text"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NotificationView is a notification joined with its sender's summary
type NotificationView struct {
	*Notification
	Sender *ProfileSummary `json:"senderProfile,omitempty"`
}
