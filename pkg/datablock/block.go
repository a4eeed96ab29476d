// Package datablock stores large node payloads out of band, as chunked blocks
// of rows persisted through a pluggable Storage.
package datablock

import (
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is the number of rows per chunk when none is given.
const DefaultChunkSize = 1000

// Metadata describes a block.
type Metadata struct {
	ID          string    `json:"id"`
	NodeID      string    `json:"nodeId,omitempty"`
	TotalRows   int       `json:"totalRows"`
	ColumnNames []string  `json:"columnNames,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ChunkSize   int       `json:"chunkSize"`
}

// Block is an ordered sequence of rows held in fixed-size chunks.
// A Block is not safe for concurrent mutation.
type Block struct {
	meta   Metadata
	chunks [][]any
}

// NewBlock creates an empty block owned by nodeID. A non-positive chunkSize
// means DefaultChunkSize.
func NewBlock(nodeID string, columns []string, chunkSize int) *Block {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Block{meta: Metadata{
		ID:          "block_" + uuid.NewString(),
		NodeID:      nodeID,
		ColumnNames: append([]string(nil), columns...),
		CreatedAt:   time.Now(),
		ChunkSize:   chunkSize,
	}}
}

// AddRows appends rows, filling the last chunk before starting a new one.
func (b *Block) AddRows(rows ...any) {
	for len(rows) > 0 {
		n := len(b.chunks)
		if n == 0 || len(b.chunks[n-1]) >= b.meta.ChunkSize {
			b.chunks = append(b.chunks, make([]any, 0, b.meta.ChunkSize))
			n++
		}
		room := b.meta.ChunkSize - len(b.chunks[n-1])
		if room > len(rows) {
			room = len(rows)
		}
		b.chunks[n-1] = append(b.chunks[n-1], rows[:room]...)
		b.meta.TotalRows += room
		rows = rows[room:]
	}
}

// Metadata returns a copy of the block metadata.
func (b *Block) Metadata() Metadata {
	m := b.meta
	m.ColumnNames = append([]string(nil), b.meta.ColumnNames...)
	return m
}

// ID returns the block id.
func (b *Block) ID() string { return b.meta.ID }

// TotalRows returns the number of rows added so far.
func (b *Block) TotalRows() int { return b.meta.TotalRows }

// ChunkCount returns the number of chunks.
func (b *Block) ChunkCount() int { return len(b.chunks) }

// Each calls fn with every chunk in order and stops at the first error.
func (b *Block) Each(fn func(chunk []any) error) error {
	for _, c := range b.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns every row in order. It materialises the whole block.
func (b *Block) Rows() []any {
	out := make([]any, 0, b.meta.TotalRows)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Filter returns the rows for which keep reports true.
func (b *Block) Filter(keep func(row any) bool) []any {
	var out []any
	for _, c := range b.chunks {
		for _, row := range c {
			if keep(row) {
				out = append(out, row)
			}
		}
	}
	return out
}

// Map returns fn applied to every row.
func (b *Block) Map(fn func(row any) any) []any {
	out := make([]any, 0, b.meta.TotalRows)
	for _, c := range b.chunks {
		for _, row := range c {
			out = append(out, fn(row))
		}
	}
	return out
}
