package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepositoryContract runs the behaviour every backend must share.
// newRepo must return an empty repository.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("EmptyLoad", func(t *testing.T) {
		items, err := newRepo(t).Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("CreateLoadComplete", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		created, err := repo.CreateItem(ctx, "Buy milk")
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "Buy milk", created.Description)
		assert.False(t, created.IsComplete)

		items, err := repo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assertSameTasks(t, []Task{created}, items)

		items, err = NewService().MarkComplete(items, created.ID, true)
		require.NoError(t, err)
		_, err = repo.Save(ctx, items)
		require.NoError(t, err)

		items, err = repo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, created.ID, items[0].ID)
		assert.True(t, items[0].IsComplete)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seed(t, repo, "one", "two", "three")

		items, err := repo.Load(ctx)
		require.NoError(t, err)
		items[1].IsComplete = true
		items[2].Description = "three, edited"
		items[2].ModifiedAt = time.Now().UTC()

		saved, err := repo.Save(ctx, items)
		require.NoError(t, err)
		assertSameTasks(t, items, saved)

		loaded, err := repo.Load(ctx)
		require.NoError(t, err)
		assertSameTasks(t, items, loaded)
	})

	t.Run("ReconcileUpdateInsertDelete", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seed(t, repo, "one", "two", "three")

		items, err := repo.Load(ctx)
		require.NoError(t, err)
		two := items[1]
		two.Description = "two, edited"
		four := Task{ID: 4, Description: "four", CreatedAt: time.Now().UTC()}

		_, err = repo.Save(ctx, []Task{two, four})
		require.NoError(t, err)

		loaded, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4}, ids(loaded))
		assert.Equal(t, "two, edited", loaded[0].Description)
		assert.Equal(t, "four", loaded[1].Description)
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seed(t, repo, "one", "two")

		items, err := repo.Load(ctx)
		require.NoError(t, err)

		_, err = repo.Save(ctx, items)
		require.NoError(t, err)
		first, err := repo.Load(ctx)
		require.NoError(t, err)

		_, err = repo.Save(ctx, items)
		require.NoError(t, err)
		second, err := repo.Load(ctx)
		require.NoError(t, err)

		assertSameTasks(t, first, second)
	})

	t.Run("PlaceholdersGetStoredIDs", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seed(t, repo, "one")

		items, err := repo.Load(ctx)
		require.NoError(t, err)
		svc := NewService()
		items = svc.Create(items, "two")
		items = svc.Create(items, "three")

		saved, err := repo.Save(ctx, items)
		require.NoError(t, err)
		require.Len(t, saved, 3)
		for _, it := range saved {
			assert.True(t, it.Persisted(), "id %d should be stored", it.ID)
		}
		assert.NoError(t, checkUnique(saved))
		assert.Equal(t, "two", saved[1].Description)
		assert.Equal(t, "three", saved[2].Description)

		loaded, err := repo.Load(ctx)
		require.NoError(t, err)
		assertSameTasks(t, saved, loaded)

		// saving the returned collection again must not duplicate rows
		_, err = repo.Save(ctx, saved)
		require.NoError(t, err)
		loaded, err = repo.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, loaded, 3)
	})

	t.Run("ExplicitIDsAdvanceTheSequence", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Save(ctx, []Task{{ID: 10, Description: "ten", CreatedAt: time.Now().UTC()}})
		require.NoError(t, err)

		next, err := repo.CreateItem(ctx, "after ten")
		require.NoError(t, err)
		assert.Greater(t, next.ID, int64(10))
	})

	t.Run("DuplicateIDsRejected", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seed(t, repo, "one")

		now := time.Now().UTC()
		_, err := repo.Save(ctx, []Task{
			{ID: 7, Description: "a", CreatedAt: now},
			{ID: 7, Description: "b", CreatedAt: now},
		})
		require.ErrorIs(t, err, ErrDuplicateID)

		loaded, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids(loaded))
	})
}

func TestInMemoryRepo_Contract(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) Repository {
		return NewInMemoryRepo()
	})
}

func seed(t *testing.T, repo Repository, descriptions ...string) {
	t.Helper()
	for _, d := range descriptions {
		if _, err := repo.CreateItem(context.Background(), d); err != nil {
			t.Fatalf("seed %q: %v", d, err)
		}
	}
}

func ids(items []Task) []int64 {
	out := make([]int64, len(items))
	for i, t := range items {
		out[i] = t.ID
	}
	return out
}

// assertSameTasks compares item by item. Timestamps only need to agree to
// the millisecond since some engines store microseconds.
func assertSameTasks(t *testing.T, want, got []Task) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "id at %d", i)
		assert.Equal(t, want[i].Description, got[i].Description, "description of %d", want[i].ID)
		assert.Equal(t, want[i].IsComplete, got[i].IsComplete, "is_complete of %d", want[i].ID)
		assert.WithinDuration(t, want[i].CreatedAt, got[i].CreatedAt, time.Millisecond, "created_at of %d", want[i].ID)
		assert.Equal(t, want[i].ModifiedAt.IsZero(), got[i].ModifiedAt.IsZero(), "modified_at set of %d", want[i].ID)
		if !want[i].ModifiedAt.IsZero() {
			assert.WithinDuration(t, want[i].ModifiedAt, got[i].ModifiedAt, time.Millisecond)
		}
	}
}
