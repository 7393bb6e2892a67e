package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/buildplan/internal/digest"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Ingredient is a keyed, hashable handle to a value a Step consumes.
// Digest fails when the value cannot currently be resolved.
type Ingredient interface {
	Key() PlanKey
	Digest() (digest.Digest, error)
}

// FileIngredient is the content of one source file.
type FileIngredient struct {
	key    PlanKey
	Source sources.Source
}

func (f *FileIngredient) Key() PlanKey { return f.key }

// Digest hashes the current file content.
func (f *FileIngredient) Digest() (digest.Digest, error) {
	content, err := os.ReadFile(f.Source.CanonicalPath)
	if err != nil {
		return digest.Digest{}, errors.NewFileReadError(f.Source.CanonicalPath, err)
	}
	return digest.Sum(content), nil
}

// PathValue is a path whose text, not content, matters.
type PathValue struct {
	key  PlanKey
	Path string
}

func (p *PathValue) Key() PlanKey                    { return p.key }
func (p *PathValue) Digest() (digest.Digest, error) { return digest.SumString(p.Path), nil }

// Value is a literal option such as a flag value or a command line.
type Value struct {
	key  PlanKey
	Text string
}

func (v *Value) Key() PlanKey                    { return v.key }
func (v *Value) Digest() (digest.Digest, error) { return digest.SumString(v.Text), nil }

// FileSetSpec describes the files a FileSet resolves to when scanned.
type FileSetSpec struct {
	Roots      []sources.Root
	Extensions []string
}

// FileSet is a set of source files. It is unresolved until Resolve or
// SetSources is called, and cannot be hashed until then.
type FileSet struct {
	key  PlanKey
	spec *FileSetSpec
	ings *Ingredients

	mu      sync.Mutex
	files   []*FileIngredient
	present bool
}

func (fs *FileSet) Key() PlanKey { return fs.key }

// Resolve scans the roots of a spec'd file set. Calling it again rescans.
func (fs *FileSet) Resolve() error {
	if fs.spec == nil {
		return errors.Newf(errors.ErrCodePlanInvalidStep, "file set %s has no roots to scan", fs.key)
	}
	found, err := sources.ScanAll(fs.spec.Roots, fs.spec.Extensions...)
	if err != nil {
		return err
	}
	fs.SetSources(found)
	return nil
}

// SetSources resolves the set to srcs, replacing any earlier resolution.
func (fs *FileSet) SetSources(srcs []sources.Source) {
	files := make([]*FileIngredient, len(srcs))
	for i, s := range srcs {
		files[i] = fs.ings.Source(s)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files = files
	fs.present = true
}

// IsResolved reports whether the set has been resolved.
func (fs *FileSet) IsResolved() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.present
}

// Files returns the resolved file ingredients.
func (fs *FileSet) Files() ([]*FileIngredient, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.present {
		return nil, errors.Newf(errors.ErrCodePlanInvalidStep, "file set %s was never resolved", fs.key)
	}
	return append([]*FileIngredient(nil), fs.files...), nil
}

// Sources returns the resolved sources.
func (fs *FileSet) Sources() ([]sources.Source, error) {
	files, err := fs.Files()
	if err != nil {
		return nil, err
	}
	out := make([]sources.Source, len(files))
	for i, f := range files {
		out[i] = f.Source
	}
	return out, nil
}

// Digest combines the path and content digest of every file.
func (fs *FileSet) Digest() (digest.Digest, error) {
	files, err := fs.Files()
	if err != nil {
		return digest.Digest{}, err
	}
	parts := make([]digest.Digest, 0, 2*len(files))
	for _, f := range files {
		d, err := f.Digest()
		if err != nil {
			return digest.Digest{}, err
		}
		parts = append(parts, digest.SumString(f.Source.CanonicalPath), d)
	}
	return digest.SumAll(parts...), nil
}

// Stored is an intermediate object persisted as JSON under the cache
// directory. Its digest is the digest of the encoded bytes.
type Stored[T any] struct {
	key  PlanKey
	Path string
}

func (s *Stored[T]) Key() PlanKey { return s.key }

// Digest hashes the encoded object. It fails until the object is written.
func (s *Stored[T]) Digest() (digest.Digest, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return digest.Digest{}, errors.NewFileReadError(s.Path, err)
	}
	return digest.Sum(content), nil
}

// Read decodes the persisted object.
func (s *Stored[T]) Read() (T, error) {
	var v T
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return v, errors.NewFileReadError(s.Path, err)
	}
	if err := json.Unmarshal(content, &v); err != nil {
		return v, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to decode %s", s.Path), err)
	}
	return v, nil
}

// ReadIfPresent is Read for an object that may not be written yet: a
// missing file yields the zero value and false, anything else unreadable
// is an error.
func (s *Stored[T]) ReadIfPresent() (T, bool, error) {
	var v T
	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		return v, false, nil
	}
	v, err := s.Read()
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Write persists v, replacing any earlier object.
func (s *Stored[T]) Write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to encode %s", s.Path), err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return errors.NewFileWriteError(s.Path, err)
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return errors.NewFileWriteError(s.Path, err)
	}
	return nil
}

// Ingredients creates ingredients and hands out one shared instance per key.
type Ingredients struct {
	cacheDir string

	mu    sync.Mutex
	byKey map[PlanKey]Ingredient
}

// NewIngredients returns a factory whose stored objects live in cacheDir.
func NewIngredients(cacheDir string) *Ingredients {
	return &Ingredients{
		cacheDir: cacheDir,
		byKey:    make(map[PlanKey]Ingredient),
	}
}

// CacheDir returns the directory holding stored objects.
func (f *Ingredients) CacheDir() string {
	return f.cacheDir
}

// Len returns the number of distinct ingredients created.
func (f *Ingredients) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byKey)
}

func intern[T Ingredient](f *Ingredients, key PlanKey, create func() T) T {
	f.mu.Lock()
	defer f.mu.Unlock()
	if got, ok := f.byKey[key]; ok {
		typed, ok := got.(T)
		if !ok {
			panic(fmt.Sprintf("ingredient %s already registered as %T", key, got))
		}
		return typed
	}
	ing := create()
	f.byKey[key] = ing
	return ing
}

// Source returns the ingredient for a scanned source file.
func (f *Ingredients) Source(src sources.Source) *FileIngredient {
	key := NewKey("file").AddString(src.CanonicalPath).Build()
	return intern(f, key, func() *FileIngredient {
		return &FileIngredient{key: key, Source: src}
	})
}

// File returns the ingredient for a single file outside any root.
func (f *Ingredients) File(path string) (*FileIngredient, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewFileReadError(path, err)
	}
	return f.Source(sources.Source{
		CanonicalPath: abs,
		RelativePath:  filepath.Base(abs),
		Root:          sources.Root{Path: filepath.Dir(abs)},
	}), nil
}

// Path returns an ingredient for the text of p.
func (f *Ingredients) Path(p string) *PathValue {
	key := NewKey("path").AddString(p).Build()
	return intern(f, key, func() *PathValue { return &PathValue{key: key, Path: p} })
}

// StringValue returns an ingredient for a literal string.
func (f *Ingredients) StringValue(s string) *Value {
	key := NewKey("str").AddString(s).Build()
	return intern(f, key, func() *Value { return &Value{key: key, Text: s} })
}

// StringList returns an ingredient for an ordered list of strings.
func (f *Ingredients) StringList(ss ...string) *Value {
	key := NewKey("strs").AddStrings(ss...).Build()
	return intern(f, key, func() *Value { return &Value{key: key, Text: key.String()} })
}

// FileSet returns the file set described by spec.
func (f *Ingredients) FileSet(spec FileSetSpec) *FileSet {
	kb := NewKey("fileset").AddStrings(spec.Extensions...)
	for _, r := range spec.Roots {
		kb.AddStrings(append([]string{r.Path}, r.Props.Names()...)...)
	}
	key := kb.Build()
	return intern(f, key, func() *FileSet {
		s := spec
		return &FileSet{key: key, spec: &s, ings: f}
	})
}

// NamedFileSet returns a file set that a step resolves explicitly.
func (f *Ingredients) NamedFileSet(name string) *FileSet {
	key := NewKey("named-files").AddString(name).Build()
	return intern(f, key, func() *FileSet { return &FileSet{key: key, ings: f} })
}

// StoredObject returns the stored object persisted under name in the
// cache directory.
func StoredObject[T any](f *Ingredients, name string) *Stored[T] {
	key := NewKey("stored-object").AddString(name).Build()
	return intern(f, key, func() *Stored[T] {
		return &Stored[T]{key: key, Path: filepath.Join(f.cacheDir, name)}
	})
}

// digestAll combines the digests of ings in order.
func digestAll(ings []Ingredient) (digest.Digest, error) {
	ds := make([]digest.Digest, len(ings))
	for i, ing := range ings {
		d, err := ing.Digest()
		if err != nil {
			return digest.Digest{}, err
		}
		ds[i] = d
	}
	return digest.SumAll(ds...), nil
}
