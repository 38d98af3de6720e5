package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/domain/mentions"
)

// ProfileStore is an in-memory ProfileRepository. Every mutation runs under the
// store lock, which gives the same single-document atomicity as the real store.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*entities.Profile
	byHandle map[string]string
}

// NewProfileStore creates an empty profile store
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*entities.Profile),
		byHandle: make(map[string]string),
	}
}

// Save inserts or replaces a profile. Usernames are unique case-insensitively.
func (s *ProfileStore) Save(ctx context.Context, profile *entities.Profile) error {
	if profile == nil || profile.ID == "" || profile.Username == "" {
		return fmt.Errorf("invalid profile")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := mentions.Fold(profile.Username)
	if owner, ok := s.byHandle[key]; ok && owner != profile.ID {
		return fmt.Errorf("username %q: %w", profile.Username, ports.ErrConflict)
	}
	if existing, ok := s.profiles[profile.ID]; ok {
		delete(s.byHandle, mentions.Fold(existing.Username))
	}

	s.profiles[profile.ID] = cloneProfile(profile)
	s.byHandle[key] = profile.ID
	return nil
}

// GetByID returns a copy of the profile with the given id
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneProfile(p), nil
}

// GetByUsername matches the username exactly
func (s *ProfileStore) GetByUsername(ctx context.Context, username string) (*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHandle[mentions.Fold(username)]
	if !ok || s.profiles[id].Username != username {
		return nil, ports.ErrNotFound
	}
	return cloneProfile(s.profiles[id]), nil
}

// FindByHandle matches the username case-insensitively
func (s *ProfileStore) FindByHandle(ctx context.Context, handle string) (*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHandle[mentions.Fold(handle)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneProfile(s.profiles[id]), nil
}

// GetMany returns the profiles that exist among ids, keyed by id
func (s *ProfileStore) GetMany(ctx context.Context, ids []string) (map[string]*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*entities.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = cloneProfile(p)
		}
	}
	return out, nil
}

// List returns every profile ordered by username
func (s *ProfileStore) List(ctx context.Context) ([]*entities.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// AddFollowing adds targetID to userID's following set
func (s *ProfileStore) AddFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return s.addEdge(userID, targetID, func(p *entities.Profile) *[]string { return &p.Following }, entities.StatFollowing)
}

// AddFollower adds followerID to userID's followers set
func (s *ProfileStore) AddFollower(ctx context.Context, userID, followerID string) (bool, error) {
	return s.addEdge(userID, followerID, func(p *entities.Profile) *[]string { return &p.Followers }, entities.StatFollowers)
}

// RemoveFollowing removes targetID from userID's following set
func (s *ProfileStore) RemoveFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return s.removeEdge(userID, targetID, func(p *entities.Profile) *[]string { return &p.Following }, entities.StatFollowing)
}

// RemoveFollower removes followerID from userID's followers set
func (s *ProfileStore) RemoveFollower(ctx context.Context, userID, followerID string) (bool, error) {
	return s.removeEdge(userID, followerID, func(p *entities.Profile) *[]string { return &p.Followers }, entities.StatFollowers)
}

func (s *ProfileStore) addEdge(userID, otherID string, set func(*entities.Profile) *[]string, field entities.StatField) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return false, ports.ErrNotFound
	}
	ids := set(p)
	for _, id := range *ids {
		if id == otherID {
			return false, nil
		}
	}
	*ids = append(*ids, otherID)
	bumpStat(&p.Stats, field, 1)
	return true, nil
}

func (s *ProfileStore) removeEdge(userID, otherID string, set func(*entities.Profile) *[]string, field entities.StatField) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return false, ports.ErrNotFound
	}
	ids := set(p)
	for i, id := range *ids {
		if id == otherID {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			bumpStat(&p.Stats, field, -1)
			return true, nil
		}
	}
	return false, nil
}

// IncrementStat adjusts a counter, never going below zero
func (s *ProfileStore) IncrementStat(ctx context.Context, userID string, field entities.StatField, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ports.ErrNotFound
	}
	bumpStat(&p.Stats, field, delta)
	return nil
}

func bumpStat(stats *entities.ProfileStats, field entities.StatField, delta int) {
	var counter *int
	switch field {
	case entities.StatFollowers:
		counter = &stats.Followers
	case entities.StatFollowing:
		counter = &stats.Following
	case entities.StatQuestions:
		counter = &stats.Questions
	case entities.StatLikes:
		counter = &stats.Likes
	default:
		return
	}
	*counter += delta
	if *counter < 0 {
		*counter = 0
	}
}

func cloneProfile(p *entities.Profile) *entities.Profile {
	c := *p
	c.Followers = append([]string{}, p.Followers...)
	c.Following = append([]string{}, p.Following...)
	return &c
}
