package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"profile-registry/internal/domain"
	"profile-registry/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type searchRepo struct {
	db *pgxpool.Pool
}

// NewSearchRepository creates the read-only search query. It runs outside
// any transaction at read-committed isolation.
func NewSearchRepository(db *pgxpool.Pool) domain.SearchRepository {
	return &searchRepo{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSearchFilter renders criteria as a WHERE clause over profiles p.
func buildSearchFilter(c domain.SearchCriteria) (string, []any) {
	where := []string{"p.state = 'approved'", "p.deleted_at IS NULL"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if c.Variant != "" {
		where = append(where, "p.variant = "+arg(string(c.Variant)))
	}
	if c.LocationCode != nil {
		where = append(where, "p.location_code = "+arg(*c.LocationCode))
	}
	if c.MinRating != nil {
		where = append(where, "p.rating >= "+arg(*c.MinRating))
	}

	groups := make([]string, 0, len(c.Tags))
	for g := range c.Tags {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	for _, g := range groups {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM profile_tags t WHERE t.profile_id = p.id AND t.group_code = %s AND t.code_key = ANY(%s))",
			arg(g), arg(pq.Array(c.Tags[g]))))
	}

	if c.Keyword != "" {
		pattern := arg("%" + likeEscaper.Replace(c.Keyword) + "%")
		where = append(where, fmt.Sprintf(
			`(p.display_name ILIKE %[1]s ESCAPE '\' OR EXISTS (
				SELECT 1 FROM profile_experiences e WHERE e.profile_id = p.id AND e.title ILIKE %[1]s ESCAPE '\'))`,
			pattern))
	}

	return strings.Join(where, " AND "), args
}

func (r *searchRepo) SearchProfiles(ctx context.Context, c domain.SearchCriteria) (domain.SearchResult, error) {
	filter, args := buildSearchFilter(c)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles p WHERE `+filter, args...).Scan(&total); err != nil {
		return domain.SearchResult{}, database.ClassifyError(fmt.Errorf("failed to count profiles: %w", err))
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.variant, p.display_name, p.location_code, p.rating, p.review_count, p.updated_at
		FROM profiles p
		WHERE %s
		ORDER BY COALESCE(p.rating, 0) DESC, p.review_count DESC, p.id ASC
		LIMIT $%d OFFSET $%d`, filter, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, c.Limit, c.Offset)...)
	if err != nil {
		return domain.SearchResult{}, database.ClassifyError(fmt.Errorf("failed to query profiles: %w", err))
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProfileSummary, error) {
		var s domain.ProfileSummary
		err := row.Scan(&s.ID, &s.Variant, &s.DisplayName, &s.LocationCode, &s.Rating, &s.ReviewCount, &s.UpdatedAt)
		s.Tags = []domain.ClassificationTag{}
		return s, err
	})
	if err != nil {
		return domain.SearchResult{}, database.ClassifyError(err)
	}

	if err := r.attachTags(ctx, items); err != nil {
		return domain.SearchResult{}, err
	}
	return domain.SearchResult{Items: items, Total: total}, nil
}

// attachTags loads the tags of every hit in one query.
func (r *searchRepo) attachTags(ctx context.Context, items []domain.ProfileSummary) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
		index[it.ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT profile_id, group_code, code_key, label, sequence
		FROM profile_tags
		WHERE profile_id = ANY($1)
		ORDER BY profile_id, group_code, sequence`, pq.Array(ids))
	if err != nil {
		return database.ClassifyError(err)
	}
	tags, err := pgx.CollectRows(rows, scanTag)
	if err != nil {
		return database.ClassifyError(err)
	}
	for _, t := range tags {
		i := index[t.ProfileID]
		items[i].Tags = append(items[i].Tags, t)
	}
	return nil
}
