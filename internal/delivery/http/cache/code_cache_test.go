package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"profile-registry/internal/delivery/http/cache"
	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCodeSource struct {
	mock.Mock
}

func (m *MockCodeSource) ListClassificationGroups(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCodeSource) ListClassificationCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ClassificationCode), args.Error(1)
}

var countries = []domain.ClassificationCode{{Group: "country", Key: "KR", Label: "Korea", Sequence: 1, Active: true}}

func TestCodeCache_BypassesWithoutRedis(t *testing.T) {
	ctx := context.Background()
	src := new(MockCodeSource)
	src.On("ListClassificationCodes", ctx, "country").Return(countries, nil).Twice()

	c := cache.NewCodeCache(src, nil, 0)
	for range 2 {
		got, err := c.ListClassificationCodes(ctx, "country")
		require.NoError(t, err)
		assert.Equal(t, countries, got)
	}
	src.AssertExpectations(t)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestCodeCache_BypassesWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	src := new(MockCodeSource)
	src.On("ListClassificationGroups", ctx).Return([]string{"country", "specialty"}, nil)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := cache.NewCodeCache(src, client, time.Minute)
	got, err := c.ListClassificationGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "specialty"}, got)
}

func TestCodeCache_SourceErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	src := new(MockCodeSource)
	notFound := apperror.NotFound("unknown classification group")
	src.On("ListClassificationCodes", ctx, "planet").Return(nil, notFound)

	c := cache.NewCodeCache(src, nil, time.Minute)
	_, err := c.ListClassificationCodes(ctx, "planet")
	assert.True(t, errors.Is(err, notFound))
}
