package ports

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunOutputStoreContract runs a suite of tests to verify that an OutputStore implementation
// adheres to the defined interface contract.
func RunOutputStoreContract(t *testing.T, store OutputStore) {
	ctx := context.Background()
	graphID := "contract-graph-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		out := map[string]any{"result": 3, "label": "three", "tags": []any{"a", "b"}}
		require.NoError(t, store.Save(ctx, graphID, "add", out), "Save should not return error")

		loaded, err := store.Load(ctx, graphID, "add")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "three", loaded["label"])
		// JSON persistence turns ints into float64, which is acceptable for this interface.
		assert.EqualValues(t, 3, loaded["result"])
		assert.Equal(t, []any{"a", "b"}, loaded["tags"])
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, graphID, "over", map[string]any{"v": "old"}))
		require.NoError(t, store.Save(ctx, graphID, "over", map[string]any{"v": "new"}))

		loaded, err := store.Load(ctx, graphID, "over")
		require.NoError(t, err)
		assert.Equal(t, "new", loaded["v"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, graphID, "missing")
		assert.ErrorIs(t, err, domain.ErrOutputNotFound)

		_, err = store.Load(ctx, "other-"+graphID, "add")
		assert.ErrorIs(t, err, domain.ErrOutputNotFound, "outputs are scoped by graph")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, graphID, "gone", map[string]any{}))
		require.NoError(t, store.Delete(ctx, graphID, "gone"), "Delete should not return error")

		_, err := store.Load(ctx, graphID, "gone")
		assert.ErrorIs(t, err, domain.ErrOutputNotFound, "Load after Delete should return ErrOutputNotFound")

		assert.NoError(t, store.Delete(ctx, graphID, "never-existed"))
	})

	t.Run("List", func(t *testing.T) {
		listID := graphID + "-list"
		require.NoError(t, store.Save(ctx, listID, "b", map[string]any{"x": 1}))
		require.NoError(t, store.Save(ctx, listID, "a", map[string]any{"x": 2}))
		defer func() {
			_ = store.Delete(ctx, listID, "a")
			_ = store.Delete(ctx, listID, "b")
		}()

		ids, err := store.List(ctx, listID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		empty, err := store.List(ctx, "empty-"+graphID)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

// RunLockerContract verifies mutual exclusion and release for a RunLocker.
func RunLockerContract(t *testing.T, locker RunLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405.000000")

	t.Run("Exclusive", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)

		var acquired atomic.Bool
		done := make(chan struct{})
		go func() {
			defer close(done)
			u, err := locker.Lock(ctx, key, time.Minute)
			if err == nil {
				acquired.Store(true)
				_ = u(ctx)
			}
		}()

		time.Sleep(150 * time.Millisecond)
		assert.False(t, acquired.Load(), "second Lock must wait for release")

		require.NoError(t, unlock(ctx))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never acquired the released lock")
		}
		assert.True(t, acquired.Load())
	})

	t.Run("Context Cancel", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(cctx, key, time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Independent Keys", func(t *testing.T) {
		u1, err := locker.Lock(ctx, key+"-a", time.Minute)
		require.NoError(t, err)
		u2, err := locker.Lock(ctx, key+"-b", time.Minute)
		require.NoError(t, err)
		assert.NoError(t, u1(ctx))
		assert.NoError(t, u2(ctx))
	})
}
