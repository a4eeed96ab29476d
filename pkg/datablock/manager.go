package datablock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aretw0/lattice/pkg/cache"
	"github.com/aretw0/lattice/pkg/domain"
)

const (
	// DefaultCacheSize is how many decoded blocks a Manager keeps in memory.
	DefaultCacheSize = 100
	// DefaultByteChunk is the chunk length used by Write.
	DefaultByteChunk = 64 << 10

	bytesColumn = "bytes"
)

var _ domain.DataBlockManager = (*Manager)(nil)

// record is the persisted form of a block.
type record struct {
	Metadata Metadata `json:"metadata"`
	Rows     []any    `json:"rows"`
}

// Stats summarises the blocks a Manager can see.
type Stats struct {
	TotalBlocks  int `json:"totalBlocks"`
	CachedBlocks int `json:"cachedBlocks"`
	TotalRows    int `json:"totalRows"`
}

// Manager saves and loads blocks through a Storage and keeps recently used
// blocks decoded in an LRU cache. It also serves raw payloads to node
// executors as domain.DataBlockManager. Safe for concurrent use when the
// storage is.
type Manager struct {
	storage   Storage
	blocks    *cache.Manager
	byteChunk int
}

// Option configures a Manager.
type Option func(*Manager)

// WithStorage sets the backing storage (default: a MemoryStorage).
func WithStorage(s Storage) Option {
	return func(m *Manager) {
		if s != nil {
			m.storage = s
		}
	}
}

// WithCacheSize bounds the decoded block cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(m *Manager) {
		m.blocks.SetMaxSize(n)
	}
}

// WithByteChunk sets the chunk length used by Write.
func WithByteChunk(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.byteChunk = n
		}
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		storage:   NewMemoryStorage(),
		blocks:    cache.New(cache.WithMaxSize(DefaultCacheSize)),
		byteChunk: DefaultByteChunk,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Storage returns the backing storage.
func (m *Manager) Storage() Storage { return m.storage }

// Save persists b and returns its id.
func (m *Manager) Save(ctx context.Context, b *Block) (string, error) {
	data, err := json.Marshal(record{Metadata: b.Metadata(), Rows: b.Rows()})
	if err != nil {
		return "", fmt.Errorf("failed to encode block %s: %w", b.ID(), err)
	}
	if err := m.storage.Save(ctx, b.ID(), data); err != nil {
		return "", fmt.Errorf("failed to save block %s: %w", b.ID(), err)
	}
	m.blocks.Set(b.ID(), b)
	return b.ID(), nil
}

// Load returns the block with id, from the cache when possible.
func (m *Manager) Load(ctx context.Context, id string) (*Block, error) {
	if v, ok := m.blocks.Get(id); ok {
		if b, ok := v.(*Block); ok {
			return b, nil
		}
	}
	data, err := m.storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %w", id, err)
	}
	meta := rec.Metadata
	meta.TotalRows = 0
	b := &Block{meta: meta}
	if b.meta.ChunkSize <= 0 {
		b.meta.ChunkSize = DefaultChunkSize
	}
	b.AddRows(rec.Rows...)
	m.blocks.Set(id, b)
	return b, nil
}

// Delete removes a block from the storage and the cache.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.blocks.Invalidate(id)
	return m.storage.Delete(ctx, id)
}

// Exists reports whether the storage holds id.
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	return m.storage.Exists(ctx, id)
}

// List returns every stored block id.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.storage.List(ctx)
}

// FindByNodeID returns the ids of the blocks owned by nodeID.
func (m *Manager) FindByNodeID(ctx context.Context, nodeID string) ([]string, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		b, err := m.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.meta.NodeID == nodeID {
			out = append(out, id)
		}
	}
	return out, nil
}

// Clear deletes every stored block and empties the cache.
func (m *Manager) Clear(ctx context.Context) error {
	ids, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.storage.Delete(ctx, id); err != nil {
			return err
		}
	}
	m.blocks.Clear()
	return nil
}

// ClearCache drops the decoded blocks without touching the storage.
func (m *Manager) ClearCache() { m.blocks.Clear() }

// Stats loads every block to count its rows.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{TotalBlocks: len(ids)}
	for _, id := range ids {
		b, err := m.Load(ctx, id)
		if err != nil {
			return Stats{}, err
		}
		s.TotalRows += b.TotalRows()
	}
	s.CachedBlocks = m.blocks.Stats().TotalEntries
	return s, nil
}

// Write stores data as a block of byte chunks and returns its id.
func (m *Manager) Write(ctx context.Context, data []byte) (string, error) {
	b := NewBlock("", []string{bytesColumn}, 0)
	for start := 0; start < len(data); start += m.byteChunk {
		end := min(start+m.byteChunk, len(data))
		b.AddRows(append([]byte(nil), data[start:end]...))
	}
	return m.Save(ctx, b)
}

// Read reassembles a payload stored by Write.
func (m *Manager) Read(ctx context.Context, blockID string) ([]byte, error) {
	b, err := m.Load(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if cols := b.meta.ColumnNames; len(cols) != 1 || cols[0] != bytesColumn {
		return nil, fmt.Errorf("block %s does not hold a byte payload", blockID)
	}
	out := []byte{}
	err = b.Each(func(chunk []any) error {
		for _, row := range chunk {
			switch v := row.(type) {
			case []byte:
				out = append(out, v...)
			case string:
				raw, err := base64.StdEncoding.DecodeString(v)
				if err != nil {
					return fmt.Errorf("block %s: corrupt chunk: %w", blockID, err)
				}
				out = append(out, raw...)
			default:
				return fmt.Errorf("block %s: unexpected chunk type %T", blockID, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
