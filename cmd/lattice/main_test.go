package main

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lattice version "+strings.TrimSpace(lattice.Version)+"\n", out)
}

func TestInitThenRun(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+filepath.Join(dir, "lattice.yaml"))

	cfgPath := filepath.Join(dir, "lattice.yaml")
	graphs := filepath.Join(dir, "graphs")

	out, err = execute(t, "run", "--config", cfgPath, "--dir", graphs, "--json", "hello.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, "the answer is 42")

	out, err = execute(t, "validate", "--config", cfgPath, "--dir", graphs, "hello.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "hello.yaml is valid")
}

func TestNodes_MissingConfigIsAnErrorWhenExplicit(t *testing.T) {
	_, err := execute(t, "nodes", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
