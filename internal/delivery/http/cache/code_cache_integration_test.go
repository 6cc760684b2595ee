//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"profile-registry/internal/delivery/http/cache"
	redispkg "profile-registry/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestCodeCache_ReadThroughRedis(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := redispkg.New(ctx, redispkg.Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, redispkg.HealthCheck(ctx, client))

	src := new(MockCodeSource)
	src.On("ListClassificationCodes", ctx, "country").Return(countries, nil).Once()

	c := cache.NewCodeCache(src, client, time.Minute)
	for range 3 {
		got, err := c.ListClassificationCodes(ctx, "country")
		require.NoError(t, err)
		assert.Equal(t, countries, got)
	}
	src.AssertNumberOfCalls(t, "ListClassificationCodes", 1)

	require.NoError(t, c.Invalidate(ctx))
	src.On("ListClassificationCodes", ctx, "country").Return(countries, nil).Once()
	_, err = c.ListClassificationCodes(ctx, "country")
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "ListClassificationCodes", 2)
}
