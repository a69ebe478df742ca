//go:build integration

package tokenstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/database"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := database.Open(ctx, database.Options{URL: url, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	f := NewPostgresFactory(db.Pool, time.Hour)
	exerciseStore(t, f.Scoped(uuid.NewString()))

	expired := NewPostgresFactory(db.Pool, -time.Second).Scoped(uuid.NewString())
	require.NoError(t, expired.Write(ctx, KeyAccessToken, "stale"))
	_, ok := expired.Read(ctx, KeyAccessToken)
	require.False(t, ok)

	removed, err := f.CleanExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := NewRedisFactory(client, "portal-test", time.Minute)
	exerciseStore(t, f.Scoped(uuid.NewString()))
}
