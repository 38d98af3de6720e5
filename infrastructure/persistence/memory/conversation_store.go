package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// ConversationStore is an in-memory ConversationRepository. The pair index
// enforces one conversation per unordered participant pair.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*entities.Conversation
	pairs         map[string]string
}

// NewConversationStore creates an empty conversation store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*entities.Conversation),
		pairs:         make(map[string]string),
	}
}

func (s *ConversationStore) Create(ctx context.Context, c *entities.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.PairKey(c.Participants[0], c.Participants[1])
	if _, exists := s.pairs[key]; exists {
		return ports.ErrConflict
	}
	s.pairs[key] = c.ID
	s.conversations[c.ID] = cloneConversation(c)
	return nil
}

func (s *ConversationStore) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *ConversationStore) FindByPair(ctx context.Context, a, b string) (*entities.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[entities.PairKey(a, b)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneConversation(s.conversations[id]), nil
}

func (s *ConversationStore) ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActivityAt().After(out[j].ActivityAt())
	})
	return out, nil
}

func (s *ConversationStore) UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ports.ErrNotFound
	}
	c.LastMessage = text
	c.LastMessageAt = &at
	return nil
}

func cloneConversation(c *entities.Conversation) *entities.Conversation {
	out := *c
	if c.LastMessageAt != nil {
		at := *c.LastMessageAt
		out.LastMessageAt = &at
	}
	return &out
}

// MessageStore is an in-memory MessageRepository
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]*entities.Message
}

// NewMessageStore creates an empty message store
func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string]*entities.Message)}
}

func (s *MessageStore) Create(ctx context.Context, m *entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *m
	s.messages[m.ID] = &c
	return nil
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string, skip, limit int) ([]*entities.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, skip, limit), len(out), nil
}

func (s *MessageStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return ports.ErrNotFound
	}
	m.IsRead = true
	return nil
}
