package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/aretw0/lattice/pkg/nodes"
	"gopkg.in/yaml.v3"
)

// SampleGraph is the graph written by Scaffold.
func SampleGraph() *dsl.Builder {
	b := dsl.New("hello").Name("Hello lattice")
	b.Add("answer", nodes.TypeConstant).Config("value", 40)
	b.Add("plus", nodes.TypeAdd).Input("b", 2).From("a", "answer.value")
	b.Add("greet", nodes.TypeTemplate).
		Config("template", "the answer is {{.n}}").
		From("n", "plus.result")
	return b
}

// Scaffold writes a starter project into dir: lattice.yaml and
// graphs/hello.yaml. Existing files are left alone unless force is set.
// It returns the paths it wrote.
func Scaffold(dir string, force bool) ([]string, error) {
	g, err := SampleGraph().Build()
	if err != nil {
		return nil, err
	}
	graphYAML, err := compiler.NewParser().Marshal(g, compiler.FormatYAML)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.GraphsDir = "graphs"
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, config.DefaultPath), cfgYAML},
		{filepath.Join(dir, "graphs", "hello.yaml"), graphYAML},
	}

	var written []string
	for _, f := range files {
		if !force {
			if _, err := os.Stat(f.path); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, err
			}
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			return written, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(f.path, f.data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}
