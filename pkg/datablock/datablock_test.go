package datablock_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lattice/pkg/datablock"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_AddRowsFillsChunks(t *testing.T) {
	b := datablock.NewBlock("reader", []string{"n"}, 3)
	b.AddRows(1, 2)
	b.AddRows(3, 4, 5, 6, 7)

	assert.Equal(t, 7, b.TotalRows())
	assert.Equal(t, 3, b.ChunkCount())
	assert.Equal(t, []any{1, 2, 3, 4, 5, 6, 7}, b.Rows())

	var sizes []int
	require.NoError(t, b.Each(func(chunk []any) error {
		sizes = append(sizes, len(chunk))
		return nil
	}))
	assert.Equal(t, []int{3, 3, 1}, sizes)

	even := b.Filter(func(row any) bool { return row.(int)%2 == 0 })
	assert.Equal(t, []any{2, 4, 6}, even)
	assert.Equal(t, []any{10, 20, 30, 40, 50, 60, 70}, b.Map(func(row any) any { return row.(int) * 10 }))

	meta := b.Metadata()
	assert.Equal(t, "reader", meta.NodeID)
	assert.Equal(t, 3, meta.ChunkSize)
	assert.Contains(t, meta.ID, "block_")
}

func TestBlock_EachStopsOnError(t *testing.T) {
	b := datablock.NewBlock("", nil, 1)
	b.AddRows("a", "b", "c")
	stop := errors.New("stop")
	calls := 0
	err := b.Each(func([]any) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func runStorageSuite(t *testing.T, s datablock.Storage) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "b1", []byte("payload")))
		got, err := s.Load(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)

		ok, err := s.Exists(ctx, "b1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Load Missing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrBlockNotFound)
		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("List and Delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "b2", []byte("x")))
		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", "b2"}, ids)

		require.NoError(t, s.Delete(ctx, "b1"))
		require.NoError(t, s.Delete(ctx, "never"))
		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b2"}, ids)
	})
}

func TestMemoryStorage(t *testing.T) {
	s := datablock.NewMemoryStorage()
	runStorageSuite(t, s)
	assert.Equal(t, 1, s.Len())
}

func TestFileStorage(t *testing.T) {
	s := datablock.NewFileStorage(t.TempDir())
	runStorageSuite(t, s)

	assert.Error(t, s.Save(context.Background(), "../escape", []byte("x")))
	_, err := s.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestFileStorage_ListEmptyDirectory(t *testing.T) {
	s := datablock.NewFileStorage(t.TempDir() + "/absent")
	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManager_SaveAndLoadThroughStorage(t *testing.T) {
	ctx := context.Background()
	storage := datablock.NewFileStorage(t.TempDir())
	writer := datablock.NewManager(datablock.WithStorage(storage))

	b := datablock.NewBlock("reader", []string{"name", "age"}, 2)
	b.AddRows(
		map[string]any{"name": "ann", "age": 31},
		map[string]any{"name": "bob", "age": 42},
		map[string]any{"name": "cid", "age": 19},
	)
	id, err := writer.Save(ctx, b)
	require.NoError(t, err)

	reader := datablock.NewManager(datablock.WithStorage(storage))
	loaded, err := reader.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TotalRows())
	assert.Equal(t, 2, loaded.ChunkCount())
	assert.Equal(t, []string{"name", "age"}, loaded.Metadata().ColumnNames)
	assert.Equal(t, "bob", loaded.Rows()[1].(map[string]any)["name"])

	again, err := reader.Load(ctx, id)
	require.NoError(t, err)
	assert.Same(t, loaded, again)

	owned, err := reader.FindByNodeID(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, owned)

	stats, err := reader.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, datablock.Stats{TotalBlocks: 1, CachedBlocks: 1, TotalRows: 3}, stats)
}

func TestManager_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	m := datablock.NewManager()

	first := datablock.NewBlock("a", nil, 0)
	first.AddRows(1)
	id, err := m.Save(ctx, first)
	require.NoError(t, err)
	second := datablock.NewBlock("b", nil, 0)
	_, err = m.Save(ctx, second)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))
	ok, err := m.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = m.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)

	require.NoError(t, m.Clear(ctx))
	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManager_WriteAndReadBytes(t *testing.T) {
	ctx := context.Background()
	storage := datablock.NewMemoryStorage()
	payload := bytes.Repeat([]byte("lattice-"), 100)

	m := datablock.NewManager(datablock.WithStorage(storage), datablock.WithByteChunk(64))
	id, err := m.Write(ctx, payload)
	require.NoError(t, err)

	got, err := m.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	cold := datablock.NewManager(datablock.WithStorage(storage), datablock.WithCacheSize(0))
	got, err = cold.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	block, err := cold.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 13, block.TotalRows())

	empty, err := m.Write(ctx, nil)
	require.NoError(t, err)
	got, err = cold.Read(ctx, empty)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestManager_ReadRejectsRowBlocks(t *testing.T) {
	ctx := context.Background()
	m := datablock.NewManager()
	b := datablock.NewBlock("n", []string{"x"}, 0)
	b.AddRows(1)
	id, err := m.Save(ctx, b)
	require.NoError(t, err)

	_, err = m.Read(ctx, id)
	assert.Error(t, err)
}
