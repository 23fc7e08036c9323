package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csvflow/csvflow/internal/core"
	"github.com/csvflow/csvflow/internal/storage"
)

// The id/key columns are uuid-typed, so a malformed identifier must resolve
// to not-found before it reaches Postgres, which would otherwise reject the
// comparison as a server error. The stores are built on a nil connection
// here: if a malformed identifier ever got past the guard, these tests would
// panic instead of merely failing.
func TestJobStoreRejectsMalformedIdentifiers(t *testing.T) {
	jobs := storage.NewJobStore(nil)
	ctx := context.Background()
	owner := "11111111-1111-1111-1111-111111111111"

	t.Run("get with garbage job id", func(t *testing.T) {
		_, err := jobs.Get(ctx, owner, "not-a-uuid")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("get with garbage owner id", func(t *testing.T) {
		_, err := jobs.Get(ctx, "user-1", "22222222-2222-2222-2222-222222222222")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("get by id with garbage job id", func(t *testing.T) {
		_, err := jobs.GetByID(ctx, "garbage")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list with garbage owner id is empty", func(t *testing.T) {
		listed, err := jobs.List(ctx, "user-1", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("progress update with garbage job id", func(t *testing.T) {
		err := jobs.SetProgress(ctx, "garbage", 1)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("finish with garbage job id", func(t *testing.T) {
		_, err := jobs.Finish(ctx, "garbage", core.StatusFailed, 0, "boom")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestImporterStoreRejectsMalformedIdentifiers(t *testing.T) {
	importers := storage.NewImporterStore(nil)
	ctx := context.Background()

	t.Run("garbage bearer key", func(t *testing.T) {
		_, err := importers.ResolveKey(ctx, "'); DROP TABLE importers; --")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("garbage importer id", func(t *testing.T) {
		_, err := importers.Get(ctx, "11111111-1111-1111-1111-111111111111", "imp-1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("garbage owner id", func(t *testing.T) {
		_, err := importers.Get(ctx, "user-1", "22222222-2222-2222-2222-222222222222")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
