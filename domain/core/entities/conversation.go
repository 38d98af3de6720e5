package entities

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a two-party thread. The unordered participant pair is unique.
type Conversation struct {
	ID            string     `json:"id"`
	Participants  [2]string  `json:"participants"`
	LastMessage   string     `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewConversation builds a conversation with participants stored in canonical order
func NewConversation(id, a, b string, now time.Time) *Conversation {
	pair := CanonicalPair(a, b)
	return &Conversation{
		ID:           id,
		Participants: pair,
		CreatedAt:    now,
	}
}

// CanonicalPair orders two ids so that {a,b} and {b,a} compare equal
func CanonicalPair(a, b string) [2]string {
	ids := []string{a, b}
	sort.Strings(ids)
	return [2]string{ids[0], ids[1]}
}

// PairKey is the uniqueness key of an unordered participant pair
func PairKey(a, b string) string {
	pair := CanonicalPair(a, b)
	return strings.Join(pair[:], "#")
}

// HasParticipant reports whether userID takes part in the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// Other returns the participant that is not userID
func (c *Conversation) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// ActivityAt is the timestamp used to order a member's conversations
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// ConversationView is a conversation joined with the other participant's summary
type ConversationView struct {
	*Conversation
	OtherUser *ProfileSummary `json:"otherUser,omitempty"`
}

// Message belongs to exactly one conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	SenderID       string    `json:"sender"`
	ReceiverID     string    `json:"receiver"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}
