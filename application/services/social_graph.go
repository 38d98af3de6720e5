package services

import (
	"context"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	pkgerrors "askingwho-backend/pkg/errors"
)

// SocialGraphService maintains follow edges and the follower/following counters.
// Each side of an edge is a separate single-document update; there is no
// transaction spanning both profiles.
type SocialGraphService struct {
	profiles ports.ProfileRepository
	notifier *NotificationDispatcher
	logger   *zap.Logger
}

// NewSocialGraphService creates a new social graph service
func NewSocialGraphService(deps Dependencies, notifier *NotificationDispatcher) *SocialGraphService {
	deps.withDefaults()
	return &SocialGraphService{
		profiles: deps.Profiles,
		notifier: notifier,
		logger:   deps.Logger,
	}
}

// Follow makes followerID follow the member named targetUsername
func (s *SocialGraphService) Follow(ctx context.Context, followerID, targetUsername string) (*entities.Profile, error) {
	follower, target, err := s.resolvePair(ctx, followerID, targetUsername, "follow")
	if err != nil {
		return nil, err
	}
	if follower.IsFollowing(target.ID) {
		return nil, pkgerrors.NewConflictError("already following this user").WithCode(pkgerrors.CodeAlreadyFollowed)
	}

	added, err := s.profiles.AddFollowing(ctx, follower.ID, target.ID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.AddFollowing")
	}
	if !added {
		// A concurrent Follow won the race between our read and the write.
		return nil, pkgerrors.NewConflictError("already following this user").WithCode(pkgerrors.CodeAlreadyFollowed)
	}

	if _, err := s.profiles.AddFollower(ctx, target.ID, follower.ID); err != nil {
		s.logger.Error("Follow edge left half-applied",
			zap.String("followerID", follower.ID),
			zap.String("targetID", target.ID),
			zap.Error(err),
		)
		return nil, storeError(err, "user", "profiles.AddFollower")
	}

	s.notifier.Notify(ctx, target.ID, follower.ID, entities.NotificationFollow, "", followText(follower))

	s.logger.Debug("User followed",
		zap.String("followerID", follower.ID),
		zap.String("targetID", target.ID),
	)
	return target, nil
}

// Unfollow removes the edge if present. Missing edges are not an error.
func (s *SocialGraphService) Unfollow(ctx context.Context, followerID, targetUsername string) (*entities.Profile, error) {
	follower, target, err := s.resolvePair(ctx, followerID, targetUsername, "unfollow")
	if err != nil {
		return nil, err
	}

	removed, err := s.profiles.RemoveFollowing(ctx, follower.ID, target.ID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.RemoveFollowing")
	}
	// The reverse side is removed unconditionally; it only decrements when the
	// follower id is actually present, which also repairs a half-applied edge.
	if _, err := s.profiles.RemoveFollower(ctx, target.ID, follower.ID); err != nil {
		return nil, storeError(err, "user", "profiles.RemoveFollower")
	}

	if removed {
		s.logger.Debug("User unfollowed",
			zap.String("followerID", follower.ID),
			zap.String("targetID", target.ID),
		)
	}
	return target, nil
}

// IsFollowing reports whether a follows b
func (s *SocialGraphService) IsFollowing(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" {
		return false, nil
	}
	p, err := s.profiles.GetByID(ctx, a)
	if err != nil {
		return false, storeError(err, "user", "profiles.GetByID")
	}
	return p.IsFollowing(b), nil
}

func (s *SocialGraphService) resolvePair(ctx context.Context, actorID, targetUsername, action string) (*entities.Profile, *entities.Profile, error) {
	if targetUsername == "" {
		return nil, nil, pkgerrors.NewValidationError("username is required")
	}
	target, err := s.profiles.GetByUsername(ctx, targetUsername)
	if err != nil {
		return nil, nil, storeError(err, "user", "profiles.GetByUsername")
	}
	if target.ID == actorID {
		return nil, nil, pkgerrors.NewSelfReferenceError(action)
	}
	actor, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, storeError(err, "user", "profiles.GetByID")
	}
	return actor, target, nil
}
