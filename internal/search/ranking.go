package search

import (
	"cmp"
	"slices"
	"strings"

	"profile-registry/internal/domain"
)

// Compare orders summaries by rating desc (null as 0), review count desc,
// then id asc. It is a total order, so equal inputs always rank the same.
func Compare(a, b domain.ProfileSummary) int {
	if c := cmp.Compare(ratingOf(b.Rating), ratingOf(a.Rating)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.ReviewCount, a.ReviewCount); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Rank sorts items in place.
func Rank(items []domain.ProfileSummary) {
	slices.SortStableFunc(items, Compare)
}

func ratingOf(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}

// Eligible reports whether a profile may appear in search results at all.
func Eligible(p domain.Profile) bool {
	return p.State == domain.StateApproved && p.DeletedAt == nil
}

// Matches applies normalised criteria to an aggregate in memory. The
// postgres query implements the same predicate in SQL.
func Matches(agg *domain.Aggregate, c domain.SearchCriteria) bool {
	p := agg.Profile
	if !Eligible(p) {
		return false
	}
	if c.Variant != "" && p.Variant != c.Variant {
		return false
	}
	if c.LocationCode != nil && (p.LocationCode == nil || *p.LocationCode != *c.LocationCode) {
		return false
	}
	if c.MinRating != nil && (p.Rating == nil || *p.Rating < *c.MinRating) {
		return false
	}
	for group, keys := range c.Tags {
		if !hasSome(agg.Children.Tags, group, keys) {
			return false
		}
	}
	if c.Keyword != "" && !keywordMatch(agg, c.Keyword) {
		return false
	}
	return true
}

func hasSome(tags []domain.ClassificationTag, group string, keys []string) bool {
	for _, t := range tags {
		if t.Group == group && slices.Contains(keys, t.Key) {
			return true
		}
	}
	return false
}

// keywordMatch checks the name and title fields case-insensitively.
func keywordMatch(agg *domain.Aggregate, keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(agg.Profile.DisplayName), kw) {
		return true
	}
	for _, e := range agg.Children.Experiences {
		if strings.Contains(strings.ToLower(e.Title), kw) {
			return true
		}
	}
	return false
}

// Summarize projects an aggregate into a search hit.
func Summarize(agg *domain.Aggregate) domain.ProfileSummary {
	tags := make([]domain.ClassificationTag, len(agg.Children.Tags))
	copy(tags, agg.Children.Tags)
	return domain.ProfileSummary{
		ID:           agg.Profile.ID,
		Variant:      agg.Profile.Variant,
		DisplayName:  agg.Profile.DisplayName,
		LocationCode: agg.Profile.LocationCode,
		Rating:       agg.Profile.Rating,
		ReviewCount:  agg.Profile.ReviewCount,
		Tags:         tags,
		UpdatedAt:    agg.Profile.UpdatedAt,
	}
}

// Page cuts a ranked slice to the requested window.
func Page(items []domain.ProfileSummary, limit, offset int) []domain.ProfileSummary {
	if offset >= len(items) {
		return []domain.ProfileSummary{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
