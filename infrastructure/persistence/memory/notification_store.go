package memory

import (
	"context"
	"sort"
	"sync"

	"askingwho-backend/domain/core/entities"
)

// NotificationStore is an in-memory NotificationRepository
type NotificationStore struct {
	mu            sync.RWMutex
	notifications map[string]*entities.Notification
}

// NewNotificationStore creates an empty notification store
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{notifications: make(map[string]*entities.Notification)}
}

func (s *NotificationStore) Create(ctx context.Context, n *entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *NotificationStore) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, 0, limit), nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	return s.deleteWhere(func(n *entities.Notification) bool { return n.RecipientID == recipientID }), nil
}

func (s *NotificationStore) DeleteByQuestion(ctx context.Context, questionID string) (int, error) {
	return s.deleteWhere(func(n *entities.Notification) bool { return n.QuestionID == questionID }), nil
}

func (s *NotificationStore) deleteWhere(match func(*entities.Notification) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, n := range s.notifications {
		if match(n) {
			delete(s.notifications, id)
			count++
		}
	}
	return count
}
