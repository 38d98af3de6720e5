package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	pkgerrors "askingwho-backend/pkg/errors"
)

// Dependencies are the collaborators shared by every service
type Dependencies struct {
	Profiles      ports.ProfileRepository
	Questions     ports.QuestionRepository
	Notifications ports.NotificationRepository
	Conversations ports.ConversationRepository
	Messages      ports.MessageRepository
	Publisher     ports.LivePublisher
	Cache         ports.Cache
	Limits        ports.LimitSource
	Clock         ports.Clock
	IDs           ports.IDGenerator
	Logger        *zap.Logger
}

func (d *Dependencies) withDefaults() {
	if d.Publisher == nil {
		d.Publisher = ports.NopPublisher{}
	}
	if d.Limits == nil {
		d.Limits = ports.StaticLimits(ports.DefaultTextLimits)
	}
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}
	if d.IDs == nil {
		d.IDs = ports.UUIDGenerator{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// storeError translates repository sentinels into application errors
func storeError(err error, resource, operation string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrNotFound):
		return pkgerrors.NewNotFoundError(resource)
	case errors.Is(err, ports.ErrConflict):
		return pkgerrors.NewConflictError(resource + " already exists")
	case errors.Is(err, ports.ErrUnavailable):
		return pkgerrors.NewUnavailableError("store").WithCause(err)
	case pkgerrors.GetAppError(err) != nil:
		return err
	default:
		return pkgerrors.NewStoreError(operation, err)
	}
}

// summaries resolves profile summaries for ids in one round trip. Unknown ids
// are left out of the map.
func summaries(ctx context.Context, profiles ports.ProfileRepository, ids []string) (entities.ProfileLookup, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := profiles.GetMany(ctx, unique)
	if err != nil {
		return nil, storeError(err, "profile", "profiles.GetMany")
	}
	return func(id string) *entities.ProfileSummary {
		if p, ok := found[id]; ok {
			return p.Summary()
		}
		return nil
	}, nil
}
