package datablock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Storage persists encoded blocks by id. Load of a missing id returns
// domain.ErrBlockNotFound; Delete of a missing id is not an error.
type Storage interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// MemoryStorage keeps blocks in process. Safe for concurrent use.
type MemoryStorage struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blocks: make(map[string][]byte)}
}

func (s *MemoryStorage) Save(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorage) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blocks[id]
	if !ok {
		return nil, domain.ErrBlockNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, id)
	return nil
}

func (s *MemoryStorage) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[id]
	return ok, nil
}

func (s *MemoryStorage) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.blocks))
	for id := range s.blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored blocks.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// FileStorage keeps each block in BasePath/<id>.block.
type FileStorage struct {
	BasePath string
}

const blockExt = ".block"

// NewFileStorage creates a FileStorage. An empty basePath defaults to
// ".lattice/blocks".
func NewFileStorage(basePath string) *FileStorage {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "blocks")
	}
	return &FileStorage{BasePath: basePath}
}

func (s *FileStorage) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid block id %q", id)
	}
	return filepath.Join(s.BasePath, id+blockExt), nil
}

// Save writes the block atomically through a synced temp file and a rename.
func (s *FileStorage) Save(_ context.Context, id string, data []byte) error {
	dest, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure block directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.BasePath, "tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write block: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync block: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close block: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename block: %w", err)
	}
	return nil
}

func (s *FileStorage) Load(_ context.Context, id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to read block: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(_ context.Context, id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat block: %w", err)
	}
}

func (s *FileStorage) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != blockExt || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, blockExt))
	}
	sort.Strings(ids)
	return ids, nil
}
