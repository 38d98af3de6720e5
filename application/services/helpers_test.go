package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/infrastructure/persistence/memory"
	pkgerrors "askingwho-backend/pkg/errors"
)

// stepClock advances one second on every read
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type published struct {
	userID  string
	event   string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, userID, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userID: userID, event: event, payload: payload})
	return nil
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	deps      Dependencies

	notifier   *NotificationDispatcher
	graph      *SocialGraphService
	engagement *EngagementService
	messaging  *MessagingService
	aggregates *AggregateService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	deps := Dependencies{
		Profiles:      store.Profiles,
		Questions:     store.Questions,
		Notifications: store.Notifications,
		Conversations: store.Conversations,
		Messages:      store.Messages,
		Publisher:     pub,
		Limits:        ports.StaticLimits(ports.DefaultTextLimits),
		Clock:         &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		IDs:           &seqIDs{},
	}
	f := &fixture{store: store, publisher: pub, deps: deps}
	f.notifier = NewNotificationDispatcher(deps)
	f.graph = NewSocialGraphService(deps, f.notifier)
	f.engagement = NewEngagementService(deps, f.notifier)
	f.messaging = NewMessagingService(deps)
	f.aggregates = NewAggregateService(deps, f.engagement, 0)
	return f
}

// user seeds a profile whose id equals its username
func (f *fixture) user(t *testing.T, username string) *entities.Profile {
	t.Helper()
	p := &entities.Profile{ID: username, Username: username, FirstName: username}
	require.NoError(t, f.store.Profiles.Save(context.Background(), p))
	return p
}

func (f *fixture) profile(t *testing.T, id string) *entities.Profile {
	t.Helper()
	p, err := f.store.Profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) notifications(t *testing.T, recipient string) []*entities.Notification {
	t.Helper()
	items, err := f.store.Notifications.ListByRecipient(context.Background(), recipient, 100)
	require.NoError(t, err)
	return items
}

func (f *fixture) notificationsOfType(t *testing.T, recipient string, kind entities.NotificationType) []*entities.Notification {
	t.Helper()
	var out []*entities.Notification
	for _, n := range f.notifications(t, recipient) {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestStoreErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("get: %w", ports.ErrNotFound), http.StatusNotFound},
		{"conflict", ports.ErrConflict, http.StatusConflict},
		{"throttled", fmt.Errorf("query: %w", ports.ErrUnavailable), http.StatusServiceUnavailable},
		{"passthrough", pkgerrors.NewForbiddenError("no"), http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := pkgerrors.GetAppError(storeError(tt.err, "question", "questions.GetByID"))
			require.NotNil(t, appErr)
			require.Equal(t, tt.status, appErr.HTTPStatus)
		})
	}
	require.NoError(t, storeError(nil, "question", "questions.GetByID"))
}
