package tracing_test

import (
	"context"
	"testing"

	"profile-registry/pkg/logger"
	"profile-registry/pkg/tracing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := tracing.Init(context.Background(), logger.Log, "", "profile-registry", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_WithEndpoint(t *testing.T) {
	for _, endpoint := range []string{"localhost:4318", "http://localhost:4318"} {
		shutdown, err := tracing.Init(context.Background(), logger.Log, endpoint, "profile-registry", "test")
		require.NoError(t, err, endpoint)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()), endpoint)
	}
}
