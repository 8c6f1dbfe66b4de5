package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/diceodds/internal/config"
	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/odds"
	"github.com/cory-johannsen/diceodds/internal/storage/postgres"
	"github.com/cory-johannsen/diceodds/internal/testutil"
)

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestDistributionRepository(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	ctx := context.Background()

	require.NoError(t, pc.Pool.Health(ctx, 5*time.Second))
	repo := postgres.NewDistributionRepository(pc.RawPool)

	t.Run("miss", func(t *testing.T) {
		_, err := repo.Get(ctx, uniqueKey("absent"))
		assert.ErrorIs(t, err, odds.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		want, err := dice.MustParse("4d6k3-1d4").Probabilities()
		require.NoError(t, err)
		key := uniqueKey("4d6k3")
		require.NoError(t, repo.Put(ctx, key, want))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want.Min(), got.Min())
		assert.Equal(t, want.Max(), got.Max())
		for v := want.Min(); v <= want.Max(); v++ {
			assert.InDelta(t, want.PEq(v), got.PEq(v), 1e-12)
		}
	})

	t.Run("incomplete flag survives", func(t *testing.T) {
		want, err := dice.MustParse("1d6x").Probabilities()
		require.NoError(t, err)
		key := uniqueKey("1d6x")
		require.NoError(t, repo.Put(ctx, key, want))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, got.Incomplete())
	})

	t.Run("upsert replaces", func(t *testing.T) {
		key := uniqueKey("replace")
		require.NoError(t, repo.Put(ctx, key, probability.Point(3)))
		require.NoError(t, repo.Put(ctx, key, probability.Point(-2)))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.PEq(-2))
	})

	t.Run("delete", func(t *testing.T) {
		key := uniqueKey("delete")
		require.NoError(t, repo.Put(ctx, key, probability.Point(1)))
		require.NoError(t, repo.Delete(ctx, key))
		assert.ErrorIs(t, repo.Delete(ctx, key), odds.ErrNotFound)
	})
}

func TestMigrate(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	dir := testutil.MigrationsDir()

	status, err := postgres.Migrate(pc.Config, dir, "up", 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), status.Version)
	assert.False(t, status.NoChange)

	status, err = postgres.Migrate(pc.Config, dir, "up", 0)
	require.NoError(t, err)
	assert.True(t, status.NoChange)

	status, err = postgres.Migrate(pc.Config, dir, "down", 1)
	require.NoError(t, err)
	assert.False(t, status.Dirty)
}

func TestMigrate_InvalidDirection(t *testing.T) {
	_, err := postgres.Migrate(config.DatabaseConfig{}, "migrations", "sideways", 0)
	assert.ErrorContains(t, err, "invalid direction")
}
