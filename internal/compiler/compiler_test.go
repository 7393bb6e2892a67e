package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
)

func TestProcessCompilerSuccess(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.css")
	out := filepath.Join(dir, "out.css")
	require.NoError(t, os.WriteFile(in, []byte("a{}"), 0o644))
	manifests := filepath.Join(dir, "manifests")

	p := &ProcessCompiler{ManifestDir: manifests, RunID: "run-1", Logger: log.Discard()}
	res, err := p.Compile(context.Background(), Request{
		Tool:    "css",
		Command: []string{"sh", "-c"},
		Args:    []string{`cat "$0" > "$1"`, in, out},
		Inputs:  []string{in},
		Outputs: []string{out},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(content))

	saved, err := LoadManifests(manifests)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "css", saved[0].Tool)
	assert.Equal(t, "run-1", saved[0].RunID)
	assert.Contains(t, saved[0].InputHashes, in)
	assert.Contains(t, saved[0].OutputHashes, out)
}

func TestProcessCompilerFailureRemovesOutputs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.js")

	p := &ProcessCompiler{Logger: log.Discard()}
	res, err := p.Compile(context.Background(), Request{
		Tool:    "js",
		Command: []string{"sh", "-c", `echo partial > "$0"; echo "bad input" >&2; exit 3`},
		Args:    []string{out},
		Outputs: []string{out},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCompilerFailed))
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, 3, res.ExitCode)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial output is removed")
}

func TestProcessCompilerMissingOutput(t *testing.T) {
	p := &ProcessCompiler{Logger: log.Discard()}
	_, err := p.Compile(context.Background(), Request{
		Tool:    "soy",
		Command: []string{"true"},
		Outputs: []string{filepath.Join(t.TempDir(), "never.js")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce")
}

func TestProcessCompilerNoCommand(t *testing.T) {
	p := &ProcessCompiler{Logger: log.Discard()}
	_, err := p.Compile(context.Background(), Request{Tool: "protoc"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCompilerFailed))
}

func TestProcessCompilerUnknownExecutable(t *testing.T) {
	p := &ProcessCompiler{Logger: log.Discard()}
	_, err := p.Compile(context.Background(), Request{
		Tool:    "css",
		Command: []string{"/definitely/not/a/compiler"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestFuncAdapter(t *testing.T) {
	var got Request
	c := Func(func(_ context.Context, req Request) (*Result, error) {
		got = req
		return &Result{}, nil
	})
	_, err := c.Compile(context.Background(), Request{Tool: "x", Command: []string{"a"}, Args: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Argv())
}

func TestSaveManifestNamesAreDistinct(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for _, argv := range [][]string{{"a"}, {"b"}} {
		m := &RunManifest{Timestamp: now, Tool: "css", Command: argv}
		require.NoError(t, SaveManifest(m, dir))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "c\nd", tail("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", tail("a", 5))
}
