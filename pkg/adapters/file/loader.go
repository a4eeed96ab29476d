// Package file reads graph definitions from disk and persists node outputs as
// JSON files.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/pkg/domain"
)

// Loader implements ports.GraphLoader over YAML and JSON files.
// Refs are paths, resolved against BaseDir when relative.
type Loader struct {
	BaseDir string
	parser  *compiler.Parser
}

// NewLoader creates a loader rooted at baseDir. An empty baseDir resolves refs
// against the working directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{BaseDir: baseDir, parser: compiler.NewParser()}
}

// LoadGraph reads and compiles the graph file at ref. The format follows the
// file extension (.json is JSON, anything else YAML).
func (l *Loader) LoadGraph(ctx context.Context, ref string) (*domain.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.resolve(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("graph %s: %w", ref, domain.ErrGraphNotFound)
		}
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	g, err := l.parser.Parse(data, compiler.FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return g, nil
}

// List returns the graph files directly under BaseDir, relative to it.
func (l *Loader) List() ([]string, error) {
	dir := l.BaseDir
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	refs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			refs = append(refs, entry.Name())
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (l *Loader) resolve(ref string) string {
	if l.BaseDir == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(l.BaseDir, ref)
}
