//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	runRecordStoreContract(t, NewRedis(rc.Client))
}

func TestRedisStore_Retention(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	s := NewRedis(rc.Client, WithRetention(time.Hour))

	require.NoError(t, s.Set(ctx, "visitor", "sitepulse_consent", []byte(`{}`)))
	ttl, err := rc.Client.TTL(ctx, redisKey("visitor", "sitepulse_consent")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.NewPostgresContainer(t)
	s := NewPostgres(pg.Pool)
	require.NoError(t, s.EnsureSchema(context.Background()))

	runRecordStoreContract(t, s)
}
