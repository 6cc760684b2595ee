package postgres

import (
	"testing"

	"profile-registry/internal/domain"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestBuildSearchFilter_Empty(t *testing.T) {
	where, args := buildSearchFilter(domain.SearchCriteria{})
	assert.Equal(t, "p.state = 'approved' AND p.deleted_at IS NULL", where)
	assert.Empty(t, args)
}

func TestBuildSearchFilter_AllCategories(t *testing.T) {
	loc, minRating := 11, 4.0
	where, args := buildSearchFilter(domain.SearchCriteria{
		Variant:      domain.VariantPersonal,
		LocationCode: &loc,
		MinRating:    &minRating,
		Tags: map[string][]string{
			"specialty": {"ISMS-P", "ISO27001"},
			"country":   {"KR"},
		},
		Keyword: "50%_off",
	})

	assert.Contains(t, where, "p.variant = $1")
	assert.Contains(t, where, "p.location_code = $2")
	assert.Contains(t, where, "p.rating >= $3")
	// groups are rendered in sorted order so the statement text is stable
	assert.Contains(t, where, "t.group_code = $4 AND t.code_key = ANY($5)")
	assert.Contains(t, where, "t.group_code = $6 AND t.code_key = ANY($7)")
	assert.Contains(t, where, "ILIKE $8 ESCAPE")

	assert.Equal(t, "personal", args[0])
	assert.Equal(t, 11, args[1])
	assert.Equal(t, 4.0, args[2])
	assert.Equal(t, "country", args[3])
	assert.Equal(t, pq.Array([]string{"KR"}), args[4])
	assert.Equal(t, "specialty", args[5])
	assert.Equal(t, `%50\%\_off%`, args[7])
}
