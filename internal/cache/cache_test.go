package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/cache"
	"github.com/kariro/kariro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestJobStatus_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	status, found, err := rc.GetJobStatus(ctx, userID, "job-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, status)

	require.NoError(t, rc.SetJobStatus(ctx, userID, "job-1", models.JobStatusProcessing, 10*time.Second))

	status, found, err = rc.GetJobStatus(ctx, userID, "job-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.JobStatusProcessing, status)

	// A different user's lookup misses: the key is scoped to the owner.
	_, found, err = rc.GetJobStatus(ctx, uuid.New(), "job-1")
	require.NoError(t, err)
	assert.False(t, found)

	// Terminal transition overwrites.
	require.NoError(t, rc.SetJobStatus(ctx, userID, "job-1", models.JobStatusCompleted, 10*time.Second))
	status, _, err = rc.GetJobStatus(ctx, userID, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)
}

func TestJobStatus_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, userID, "job-1", models.JobStatusProcessing, 100*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, found, err := rc.GetJobStatus(ctx, userID, "job-1")
	require.NoError(t, err)
	assert.False(t, found)
}
