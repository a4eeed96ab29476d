package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.OutputStore using the local filesystem.
// Each output is a JSON file at BasePath/<graph>/<node>.json.
type Store struct {
	BasePath string
}

// NewStore creates a Store with the given base path.
// If basePath is empty, it defaults to ".lattice/outputs".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "outputs")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) dir(graphID string) (string, error) {
	if graphID == "" || strings.ContainsAny(graphID, `/\`) || graphID == "." || graphID == ".." {
		return "", fmt.Errorf("invalid graph id %q", graphID)
	}
	return filepath.Join(s.BasePath, graphID), nil
}

func (s *Store) path(graphID, nodeID string) (string, error) {
	dir, err := s.dir(graphID)
	if err != nil {
		return "", err
	}
	if nodeID == "" || strings.ContainsAny(nodeID, `/\`) || nodeID == "." || nodeID == ".." {
		return "", fmt.Errorf("invalid node id %q", nodeID)
	}
	return filepath.Join(dir, nodeID+".json"), nil
}

// Save writes the output atomically: a temp file in the same directory is
// synced, then renamed over the destination.
func (s *Store) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	dest, err := s.path(graphID, nodeID)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure output directory: %w", err)
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-"+nodeID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the output of nodeID.
func (s *Store) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	p, err := s.path(graphID, nodeID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrOutputNotFound
		}
		return nil, fmt.Errorf("failed to read output file: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return out, nil
}

// Delete removes the output file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, graphID, nodeID string) error {
	p, err := s.path(graphID, nodeID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete output file: %w", err)
	}
	return nil
}

// List returns the node ids stored for graphID.
func (s *Store) List(ctx context.Context, graphID string) ([]string, error) {
	dir, err := s.dir(graphID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
