// Package memory provides in-process repositories. They back local
// development and the service tests.
package memory

import "askingwho-backend/application/ports"

var (
	_ ports.ProfileRepository      = (*ProfileStore)(nil)
	_ ports.QuestionRepository     = (*QuestionStore)(nil)
	_ ports.NotificationRepository = (*NotificationStore)(nil)
	_ ports.ConversationRepository = (*ConversationStore)(nil)
	_ ports.MessageRepository      = (*MessageStore)(nil)
)

// Store bundles one instance of every in-memory repository
type Store struct {
	Profiles      *ProfileStore
	Questions     *QuestionStore
	Notifications *NotificationStore
	Conversations *ConversationStore
	Messages      *MessageStore
}

// New creates an empty store
func New() *Store {
	return &Store{
		Profiles:      NewProfileStore(),
		Questions:     NewQuestionStore(),
		Notifications: NewNotificationStore(),
		Conversations: NewConversationStore(),
		Messages:      NewMessageStore(),
	}
}
