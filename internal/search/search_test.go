package search_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/internal/search"
	"profile-registry/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearchRepo struct {
	mock.Mock
}

func (m *MockSearchRepo) SearchProfiles(ctx context.Context, c domain.SearchCriteria) (domain.SearchResult, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(domain.SearchResult), args.Error(1)
}

type MockCodeStore struct {
	mock.Mock
}

func (m *MockCodeStore) ListGroups(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCodeStore) ListCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ClassificationCode), args.Error(1)
}

func (m *MockCodeStore) GetCode(ctx context.Context, group, key string) (*domain.ClassificationCode, error) {
	args := m.Called(ctx, group, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClassificationCode), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func approved(id string, rating *float64, tags ...domain.ClassificationTag) *domain.Aggregate {
	return &domain.Aggregate{
		Profile: domain.Profile{
			ID:           id,
			Variant:      domain.VariantPersonal,
			DisplayName:  "Consultant " + id,
			LocationCode: ptr(11),
			State:        domain.StateApproved,
			Rating:       rating,
		},
		Children: domain.Children{Tags: tags},
	}
}

func tag(group, key string) domain.ClassificationTag {
	return domain.ClassificationTag{Group: group, Key: key}
}

func TestMatches_TagHasSomeWithinGroup(t *testing.T) {
	agg := approved("p1", ptr(4.8), tag("specialty", "ISMS-P"), tag("specialty", "ISO27001"))

	assert.True(t, search.Matches(agg, domain.SearchCriteria{Tags: map[string][]string{"specialty": {"ISO27001"}}}))
	assert.False(t, search.Matches(agg, domain.SearchCriteria{Tags: map[string][]string{"specialty": {"GDPR"}}}))
	assert.True(t, search.Matches(agg, domain.SearchCriteria{Tags: map[string][]string{"specialty": {"GDPR", "ISMS-P"}}}))

	// groups are ANDed
	assert.False(t, search.Matches(agg, domain.SearchCriteria{Tags: map[string][]string{
		"specialty": {"ISO27001"},
		"country":   {"KR"},
	}}))
}

func TestMatches_FiltersAndEligibility(t *testing.T) {
	agg := approved("p1", nil)

	assert.True(t, search.Matches(agg, domain.SearchCriteria{}))
	assert.True(t, search.Matches(agg, domain.SearchCriteria{LocationCode: ptr(11)}))
	assert.False(t, search.Matches(agg, domain.SearchCriteria{LocationCode: ptr(26)}))
	assert.False(t, search.Matches(agg, domain.SearchCriteria{Variant: domain.VariantCompany}))
	assert.False(t, search.Matches(agg, domain.SearchCriteria{MinRating: ptr(0.0)}), "unrated profiles fail any rating floor")
	assert.True(t, search.Matches(agg, domain.SearchCriteria{Keyword: "CONSULTANT"}))

	for _, s := range []domain.State{domain.StateDraft, domain.StateSubmitted, domain.StateRejected} {
		other := approved("p2", ptr(5.0))
		other.Profile.State = s
		assert.False(t, search.Matches(other, domain.SearchCriteria{}), s)
	}

	deleted := approved("p3", ptr(5.0))
	deleted.Profile.DeletedAt = ptr(time.Now())
	assert.False(t, search.Matches(deleted, domain.SearchCriteria{}))
}

func TestRank_DeterministicOrder(t *testing.T) {
	items := []domain.ProfileSummary{
		{ID: "c", Rating: ptr(4.5), ReviewCount: 3},
		{ID: "b", Rating: nil, ReviewCount: 9},
		{ID: "a", Rating: ptr(4.5), ReviewCount: 3},
		{ID: "d", Rating: ptr(4.5), ReviewCount: 10},
		{ID: "e", Rating: ptr(0.0), ReviewCount: 9},
	}
	search.Rank(items)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	// null rating ranks as 0, ties fall through to review count then id
	assert.Equal(t, []string{"d", "a", "c", "b", "e"}, ids)
}

func TestPage(t *testing.T) {
	items := make([]domain.ProfileSummary, 5)
	assert.Len(t, search.Page(items, 2, 0), 2)
	assert.Len(t, search.Page(items, 2, 4), 1)
	assert.Empty(t, search.Page(items, 2, 5))
	assert.NotNil(t, search.Page(items, 2, 9))
}

func TestEngine_Normalize(t *testing.T) {
	codes := new(MockCodeStore)
	codes.On("ListGroups", mock.Anything).Return([]string{"specialty", "country"}, nil)
	e := search.NewEngine(new(MockSearchRepo), codes, search.Options{DefaultLimit: 20, MaxLimit: 100})
	ctx := context.Background()

	c, err := e.Normalize(ctx, domain.SearchCriteria{
		Keyword: "  audit ",
		Limit:   500,
		Tags: map[string][]string{
			"specialty": {"ISO27001", " ISO27001", "GDPR"},
			"country":   {" "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "audit", c.Keyword)
	assert.Equal(t, 100, c.Limit)
	assert.Equal(t, map[string][]string{"specialty": {"GDPR", "ISO27001"}}, c.Tags)

	c, err = e.Normalize(ctx, domain.SearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 20, c.Limit)

	_, err = e.Normalize(ctx, domain.SearchCriteria{Tags: map[string][]string{"planet": {"mars"}}})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, "tags.planet", appErr.Field)

	_, err = e.Normalize(ctx, domain.SearchCriteria{MinRating: ptr(5.5)})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = e.Normalize(ctx, domain.SearchCriteria{MinRating: ptr(math.NaN())})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, "min_rating", appErr.Field)

	_, err = e.Normalize(ctx, domain.SearchCriteria{Offset: -1})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = e.Normalize(ctx, domain.SearchCriteria{Variant: "robot"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestEngine_SearchRanksAndNeverReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSearchRepo)
	e := search.NewEngine(repo, nil, search.Options{})

	repo.On("SearchProfiles", ctx, domain.SearchCriteria{Limit: 20}).
		Return(domain.SearchResult{}, nil).Once()
	res, err := e.Search(ctx, domain.SearchCriteria{})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Zero(t, res.Total)

	repo.On("SearchProfiles", ctx, domain.SearchCriteria{Keyword: "x", Limit: 20}).
		Return(domain.SearchResult{Items: []domain.ProfileSummary{
			{ID: "b", Rating: ptr(3.0)},
			{ID: "a", Rating: ptr(4.8)},
		}, Total: 2}, nil).Once()
	res, err = e.Search(ctx, domain.SearchCriteria{Keyword: "x"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "a", res.Items[0].ID)

	repo.AssertExpectations(t)
}

func TestEngine_SearchPropagatesStorageErrors(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSearchRepo)
	e := search.NewEngine(repo, nil, search.Options{})

	repo.On("SearchProfiles", ctx, mock.Anything).
		Return(domain.SearchResult{}, apperror.StorageUnavailable(errors.New("connection refused")))
	_, err := e.Search(ctx, domain.SearchCriteria{})
	assert.True(t, apperror.IsKind(err, apperror.KindStorageUnavailable))
}

func TestEngine_SearchRejectsNaNMinRating(t *testing.T) {
	repo := new(MockSearchRepo)
	e := search.NewEngine(repo, nil, search.Options{})

	_, err := e.Search(context.Background(), domain.SearchCriteria{MinRating: ptr(math.NaN())})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	repo.AssertNotCalled(t, "SearchProfiles", mock.Anything, mock.Anything)
}
