// Package search implements filtering and deterministic ranking of
// approved profiles.
package search

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxRating    = 5.0
)

// Options tunes pagination.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// Engine validates criteria, delegates the query, and guarantees the
// ranking contract on whatever the backend returns.
type Engine struct {
	repo  domain.SearchRepository
	codes domain.ClassificationCodeStore
	opts  Options
}

func NewEngine(repo domain.SearchRepository, codes domain.ClassificationCodeStore, opts Options) *Engine {
	if opts.MaxLimit < 1 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit < 1 || opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = min(DefaultLimit, opts.MaxLimit)
	}
	return &Engine{repo: repo, codes: codes, opts: opts}
}

// Search returns ranked summaries. No match is an empty result, never an error.
func (e *Engine) Search(ctx context.Context, criteria domain.SearchCriteria) (domain.SearchResult, error) {
	c, err := e.Normalize(ctx, criteria)
	if err != nil {
		return domain.SearchResult{}, err
	}

	res, err := e.repo.SearchProfiles(ctx, c)
	if err != nil {
		return domain.SearchResult{}, err
	}

	if res.Items == nil {
		res.Items = []domain.ProfileSummary{}
	}
	Rank(res.Items)
	if res.Total < len(res.Items) {
		res.Total = len(res.Items)
	}
	return res, nil
}

// Normalize validates criteria and puts them in canonical form: trimmed
// keyword, clamped pagination, deduplicated sorted tag keys, and groups with
// no keys dropped. Tag groups must exist in the code store.
func (e *Engine) Normalize(ctx context.Context, in domain.SearchCriteria) (domain.SearchCriteria, error) {
	out := domain.SearchCriteria{
		Variant:      in.Variant,
		LocationCode: in.LocationCode,
		MinRating:    in.MinRating,
		Keyword:      strings.TrimSpace(in.Keyword),
		Limit:        in.Limit,
		Offset:       in.Offset,
	}

	if out.Variant != "" && !out.Variant.Valid() {
		return out, apperror.Validation("variant", fmt.Sprintf("unknown profile variant %q", out.Variant))
	}
	if out.LocationCode != nil && *out.LocationCode < 0 {
		return out, apperror.Validation("location_code", "location code must not be negative")
	}
	if out.MinRating != nil && (math.IsNaN(*out.MinRating) || *out.MinRating < 0 || *out.MinRating > MaxRating) {
		return out, apperror.Validation("min_rating", fmt.Sprintf("minimum rating must be between 0 and %.0f", MaxRating))
	}
	if len(out.Keyword) > 200 {
		return out, apperror.Validation("keyword", "keyword must be at most 200 characters")
	}
	if out.Offset < 0 {
		return out, apperror.Validation("offset", "offset must not be negative")
	}
	if out.Limit <= 0 {
		out.Limit = e.opts.DefaultLimit
	}
	if out.Limit > e.opts.MaxLimit {
		out.Limit = e.opts.MaxLimit
	}

	if len(in.Tags) == 0 {
		return out, nil
	}

	var known []string
	if e.codes != nil {
		groups, err := e.codes.ListGroups(ctx)
		if err != nil {
			return out, err
		}
		known = groups
	}

	out.Tags = make(map[string][]string, len(in.Tags))
	for group, keys := range in.Tags {
		group = strings.TrimSpace(group)
		var clean []string
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				clean = append(clean, k)
			}
		}
		if len(clean) == 0 {
			continue
		}
		if e.codes != nil && !slices.Contains(known, group) {
			return out, apperror.Validation("tags."+group, fmt.Sprintf("unknown classification group %q", group))
		}
		slices.Sort(clean)
		out.Tags[group] = append(out.Tags[group], slices.Compact(clean)...)
	}
	if len(out.Tags) == 0 {
		out.Tags = nil
	}
	return out, nil
}
