package memory

import (
	"context"

	"profile-registry/internal/domain"
	"profile-registry/internal/search"
	"profile-registry/pkg/apperror"
)

// SearchStore answers search queries by scanning a ProfileStore.
type SearchStore struct {
	profiles *ProfileStore
}

func NewSearchStore(profiles *ProfileStore) *SearchStore {
	return &SearchStore{profiles: profiles}
}

func (s *SearchStore) SearchProfiles(ctx context.Context, c domain.SearchCriteria) (domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchResult{}, apperror.StorageUnavailable(err)
	}

	var hits []domain.ProfileSummary
	for _, agg := range s.profiles.snapshot() {
		if search.Matches(agg, c) {
			hits = append(hits, search.Summarize(agg))
		}
	}
	search.Rank(hits)
	return domain.SearchResult{
		Items: search.Page(hits, c.Limit, c.Offset),
		Total: len(hits),
	}, nil
}
