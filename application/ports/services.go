package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Live event names pushed over a member's channel
const (
	EventJoin       = "join"
	EventNewMessage = "newMessage"
	EventError      = "error"
)

// LivePublisher pushes an event to every live channel a member holds.
// Delivery is best effort; offline members are skipped silently.
type LivePublisher interface {
	Publish(ctx context.Context, userID, event string, payload interface{}) error
}

// Cache is a read-through cache where every key carries its own expiry
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) (interface{}, error)
	Invalidate(key string)
	Purge()
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// IDGenerator creates identifiers for new records
type IDGenerator interface {
	NewID() string
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator issues time-ordered UUIDv7 identifiers
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// TextLimits are the maximum rune lengths of member-supplied text
type TextLimits struct {
	Question int `yaml:"question" json:"question"`
	Answer   int `yaml:"answer" json:"answer"`
	Comment  int `yaml:"comment" json:"comment"`
	Message  int `yaml:"message" json:"message"`
}

// DefaultTextLimits are used when no configuration overrides them
var DefaultTextLimits = TextLimits{Question: 500, Answer: 1000, Comment: 300, Message: 1000}

// LimitSource supplies the current text limits. Implementations may change
// their answer at runtime.
type LimitSource interface {
	TextLimits() TextLimits
}

// StaticLimits is a LimitSource that never changes
type StaticLimits TextLimits

func (l StaticLimits) TextLimits() TextLimits { return TextLimits(l) }
