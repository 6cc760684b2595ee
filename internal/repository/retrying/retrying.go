// Package retrying wraps the stores so that transient storage failures are
// retried with bounded exponential backoff. Every other error kind is
// returned on first sight.
package retrying

import (
	"context"
	"log/slog"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/retry"
)

// Policy builds a retry config that only retries StorageUnavailable.
func Policy(attempts int, initial, maxBackoff time.Duration) *retry.Config {
	cfg := retry.DefaultConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if initial > 0 {
		cfg.InitialBackoff = initial
	}
	if maxBackoff > 0 {
		cfg.MaxBackoff = maxBackoff
	}
	cfg.Retryable = func(err error) bool {
		return apperror.IsKind(err, apperror.KindStorageUnavailable)
	}
	return cfg
}

type aggregateRepo struct {
	next domain.AggregateRepository
	cfg  *retry.Config
	log  *slog.Logger
}

func NewAggregateRepository(next domain.AggregateRepository, cfg *retry.Config, log *slog.Logger) domain.AggregateRepository {
	return &aggregateRepo{next: next, cfg: cfg, log: log}
}

func (r *aggregateRepo) UpsertAggregate(ctx context.Context, ownerID string, variant domain.Variant, envelope domain.Profile, children domain.Children) (string, error) {
	return retry.Do(ctx, r.cfg, r.log, "profiles.upsert", func(ctx context.Context) (string, error) {
		return r.next.UpsertAggregate(ctx, ownerID, variant, envelope, children)
	})
}

func (r *aggregateRepo) LoadAggregate(ctx context.Context, profileID string, opts domain.LoadOptions) (*domain.Aggregate, error) {
	return retry.Do(ctx, r.cfg, r.log, "profiles.load", func(ctx context.Context) (*domain.Aggregate, error) {
		return r.next.LoadAggregate(ctx, profileID, opts)
	})
}

func (r *aggregateRepo) FindByOwner(ctx context.Context, ownerID string, variant domain.Variant) (*domain.Aggregate, error) {
	return retry.Do(ctx, r.cfg, r.log, "profiles.find_by_owner", func(ctx context.Context) (*domain.Aggregate, error) {
		return r.next.FindByOwner(ctx, ownerID, variant)
	})
}

func (r *aggregateRepo) UpdateState(ctx context.Context, change domain.StateChange) error {
	return retry.Run(ctx, r.cfg, r.log, "profiles.update_state", func(ctx context.Context) error {
		return r.next.UpdateState(ctx, change)
	})
}

func (r *aggregateRepo) UpdateRating(ctx context.Context, profileID string, rating *float64, reviewCount int) error {
	return retry.Run(ctx, r.cfg, r.log, "profiles.update_rating", func(ctx context.Context) error {
		return r.next.UpdateRating(ctx, profileID, rating, reviewCount)
	})
}

func (r *aggregateRepo) SoftDelete(ctx context.Context, profileID string, at time.Time) error {
	return retry.Run(ctx, r.cfg, r.log, "profiles.soft_delete", func(ctx context.Context) error {
		return r.next.SoftDelete(ctx, profileID, at)
	})
}

type searchRepo struct {
	next domain.SearchRepository
	cfg  *retry.Config
	log  *slog.Logger
}

func NewSearchRepository(next domain.SearchRepository, cfg *retry.Config, log *slog.Logger) domain.SearchRepository {
	return &searchRepo{next: next, cfg: cfg, log: log}
}

func (r *searchRepo) SearchProfiles(ctx context.Context, c domain.SearchCriteria) (domain.SearchResult, error) {
	return retry.Do(ctx, r.cfg, r.log, "profiles.search", func(ctx context.Context) (domain.SearchResult, error) {
		return r.next.SearchProfiles(ctx, c)
	})
}

type codeStore struct {
	next domain.ClassificationCodeStore
	cfg  *retry.Config
	log  *slog.Logger
}

func NewClassificationCodeStore(next domain.ClassificationCodeStore, cfg *retry.Config, log *slog.Logger) domain.ClassificationCodeStore {
	return &codeStore{next: next, cfg: cfg, log: log}
}

func (s *codeStore) ListGroups(ctx context.Context) ([]string, error) {
	return retry.Do(ctx, s.cfg, s.log, "codes.list_groups", s.next.ListGroups)
}

func (s *codeStore) ListCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	return retry.Do(ctx, s.cfg, s.log, "codes.list", func(ctx context.Context) ([]domain.ClassificationCode, error) {
		return s.next.ListCodes(ctx, group)
	})
}

func (s *codeStore) GetCode(ctx context.Context, group, key string) (*domain.ClassificationCode, error) {
	return retry.Do(ctx, s.cfg, s.log, "codes.get", func(ctx context.Context) (*domain.ClassificationCode, error) {
		return s.next.GetCode(ctx, group, key)
	})
}
