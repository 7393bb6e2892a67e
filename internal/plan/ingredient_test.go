package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/buildplan/internal/sources"
)

func TestIngredientsAreShared(t *testing.T) {
	ings := NewIngredients(t.TempDir())

	assert.Same(t, ings.StringValue("x"), ings.StringValue("x"))
	assert.Same(t, ings.Path("a/b"), ings.Path("a/b"))
	assert.Same(t, ings.NamedFileSet("out"), ings.NamedFileSet("out"))
	assert.NotEqual(t, ings.StringValue("1").Key(), ings.StringList("1").Key())
	assert.Equal(t, 5, ings.Len())
}

func TestValueDigests(t *testing.T) {
	ings := NewIngredients(t.TempDir())

	d1, err := ings.StringValue("a").Digest()
	require.NoError(t, err)
	d2, err := ings.StringValue("b").Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	l1, err := ings.StringList("a", "b").Digest()
	require.NoError(t, err)
	l2, err := ings.StringList("a,b").Digest()
	require.NoError(t, err)
	assert.NotEqual(t, l1, l2)
}

func TestFileIngredientTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.css")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	ings := NewIngredients(dir)
	f, err := ings.File(path)
	require.NoError(t, err)

	before, err := f.Digest()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	after, err := f.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	require.NoError(t, os.Remove(path))
	_, err = f.Digest()
	assert.Error(t, err)
}

func TestFileSetResolution(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	ings := NewIngredients(dir)
	fs := ings.FileSet(FileSetSpec{Roots: []sources.Root{{Path: dir}}, Extensions: []string{".css"}})
	assert.Same(t, fs, ings.FileSet(FileSetSpec{Roots: []sources.Root{{Path: dir}}, Extensions: []string{".css"}}))

	assert.False(t, fs.IsResolved())
	_, err := fs.Digest()
	require.Error(t, err, "unresolved sets cannot be hashed")

	require.NoError(t, fs.Resolve())
	srcs, err := fs.Sources()
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "a.css", srcs[0].RelativePath)

	d1, err := fs.Digest()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("changed"), 0o644))
	d2, err := fs.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	named := ings.NamedFileSet("generated")
	assert.Error(t, named.Resolve())
	named.SetSources(nil)
	assert.True(t, named.IsResolved())
}

func TestStoredObject(t *testing.T) {
	ings := NewIngredients(t.TempDir())
	stored := StoredObject[[]string](ings, "bundles.json")
	assert.Same(t, stored, StoredObject[[]string](ings, "bundles.json"))

	_, err := stored.Digest()
	require.Error(t, err)

	require.NoError(t, stored.Write([]string{"a", "b"}))
	d1, err := stored.Digest()
	require.NoError(t, err)

	got, err := stored.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, stored.Write([]string{"a"}))
	d2, err := stored.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestStoredReadIfPresent(t *testing.T) {
	ings := NewIngredients(t.TempDir())
	stored := StoredObject[map[string]int](ings, "counts.json")

	_, found, err := stored.ReadIfPresent()
	require.NoError(t, err, "a missing object is not an error")
	assert.False(t, found)

	require.NoError(t, stored.Write(map[string]int{"a": 1}))
	got, found, err := stored.ReadIfPresent()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"a": 1}, got)

	require.NoError(t, os.WriteFile(stored.Path, []byte("{not json"), 0o644))
	_, _, err = stored.ReadIfPresent()
	assert.Error(t, err)
}
