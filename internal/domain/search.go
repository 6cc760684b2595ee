package domain

import (
	"context"
	"time"
)

// SearchCriteria filters are ANDed across categories. Within Tags, a group
// matches when the profile holds at least one of the listed keys.
type SearchCriteria struct {
	Variant      Variant             `json:"variant,omitempty"`
	LocationCode *int                `json:"location_code,omitempty"`
	MinRating    *float64            `json:"min_rating,omitempty"`
	Tags         map[string][]string `json:"tags,omitempty"`
	Keyword      string              `json:"keyword,omitempty"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// ProfileSummary is one ranked search hit.
type ProfileSummary struct {
	ID           string              `json:"id"`
	Variant      Variant             `json:"variant"`
	DisplayName  string              `json:"display_name"`
	LocationCode *int                `json:"location_code,omitempty"`
	Rating       *float64            `json:"rating,omitempty"`
	ReviewCount  int                 `json:"review_count"`
	Tags         []ClassificationTag `json:"tags"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SearchResult is a page of ranked summaries plus the unpaginated total.
type SearchResult struct {
	Items []ProfileSummary `json:"items"`
	Total int              `json:"total"`
}

// SearchRepository runs a normalised query against storage. Results are
// already restricted to approved, non-deleted profiles and ranked.
type SearchRepository interface {
	SearchProfiles(ctx context.Context, criteria SearchCriteria) (SearchResult, error)
}
