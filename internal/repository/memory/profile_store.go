// Package memory provides in-process implementations of the profile stores.
// A write builds the complete new aggregate first and swaps it in under the
// store mutex, so a failed write leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/internal/repository"
	"profile-registry/pkg/apperror"

	"github.com/google/uuid"
)

type ownerKey struct {
	owner   string
	variant domain.Variant
}

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Aggregate
	byOwner  map[ownerKey]string
	now      func() time.Time
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*domain.Aggregate),
		byOwner:  make(map[ownerKey]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; tests use it to pin timestamps.
func (s *ProfileStore) WithClock(now func() time.Time) *ProfileStore {
	s.now = now
	return s
}

func (s *ProfileStore) UpsertAggregate(ctx context.Context, ownerID string, variant domain.Variant, envelope domain.Profile, children domain.Children) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperror.StorageUnavailable(err)
	}

	env, err := repository.PrepareEnvelope(variant, envelope)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored *domain.Profile
	id := uuid.NewString()
	if existingID, ok := s.byOwner[ownerKey{ownerID, variant}]; ok {
		stored = &s.profiles[existingID].Profile
		id = existingID
		if err := repository.CheckWritable(stored, env.Version); err != nil {
			return "", err
		}
	}
	if env.ID != "" && env.ID != id {
		return "", apperror.Validation("envelope.id", "envelope id does not match the owner's profile")
	}

	parentID := ""
	if stored != nil {
		parentID = id
	}
	kids, err := repository.PrepareChildren(parentID, variant, children)
	if err != nil {
		return "", err
	}

	if err := s.checkRegistrationNumber(id, env); err != nil {
		return "", err
	}

	now := s.now()
	next := &domain.Aggregate{
		Profile:  repository.MergeEnvelope(stored, env, ownerID, id),
		Children: repository.WithParent(kids, id),
	}
	next.Profile.UpdatedAt = now
	if stored == nil {
		next.Profile.CreatedAt = now
	}

	s.profiles[id] = cloneAggregate(next)
	s.byOwner[ownerKey{ownerID, variant}] = id
	return id, nil
}

func (s *ProfileStore) checkRegistrationNumber(id string, env domain.Profile) error {
	if env.Company == nil || env.Company.BusinessRegistrationNumber == "" {
		return nil
	}
	brn := env.Company.BusinessRegistrationNumber
	for otherID, agg := range s.profiles {
		p := agg.Profile
		if otherID == id || p.DeletedAt != nil || p.Company == nil {
			continue
		}
		if p.Company.BusinessRegistrationNumber == brn {
			return apperror.Conflict(repository.ConstraintBusinessRegNo, "business registration number is already registered")
		}
	}
	return nil
}

func (s *ProfileStore) LoadAggregate(ctx context.Context, profileID string, opts domain.LoadOptions) (*domain.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StorageUnavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.profiles[profileID]
	if !ok || (agg.Profile.DeletedAt != nil && !opts.IncludeDeleted) {
		return nil, apperror.NotFound("Profile not found")
	}
	return cloneAggregate(agg), nil
}

func (s *ProfileStore) FindByOwner(ctx context.Context, ownerID string, variant domain.Variant) (*domain.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StorageUnavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerKey{ownerID, variant}]
	if !ok {
		return nil, apperror.NotFound("Profile not found")
	}
	return cloneAggregate(s.profiles[id]), nil
}

func (s *ProfileStore) UpdateState(ctx context.Context, change domain.StateChange) error {
	if err := ctx.Err(); err != nil {
		return apperror.StorageUnavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, err := s.live(change.ProfileID)
	if err != nil {
		return err
	}
	p := agg.Profile
	if err := repository.ApplyStateChange(&p, change); err != nil {
		return err
	}
	agg.Profile = p
	return nil
}

func (s *ProfileStore) UpdateRating(ctx context.Context, profileID string, rating *float64, reviewCount int) error {
	if err := ctx.Err(); err != nil {
		return apperror.StorageUnavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, err := s.live(profileID)
	if err != nil {
		return err
	}
	agg.Profile.Rating = clonePtr(rating)
	agg.Profile.ReviewCount = reviewCount
	return nil
}

// SoftDelete marks the profile deleted and frees its (owner, variant) slot
// and registration number for reuse.
func (s *ProfileStore) SoftDelete(ctx context.Context, profileID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return apperror.StorageUnavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, err := s.live(profileID)
	if err != nil {
		return err
	}
	agg.Profile.DeletedAt = &at
	agg.Profile.UpdatedAt = at
	delete(s.byOwner, ownerKey{agg.Profile.OwnerID, agg.Profile.Variant})
	return nil
}

func (s *ProfileStore) live(profileID string) (*domain.Aggregate, error) {
	agg, ok := s.profiles[profileID]
	if !ok || agg.Profile.DeletedAt != nil {
		return nil, apperror.NotFound("Profile not found")
	}
	return agg, nil
}

// snapshot returns copies of every live aggregate for the search side.
func (s *ProfileStore) snapshot() []*domain.Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Aggregate, 0, len(s.profiles))
	for _, agg := range s.profiles {
		if agg.Profile.DeletedAt == nil {
			out = append(out, cloneAggregate(agg))
		}
	}
	return out
}
