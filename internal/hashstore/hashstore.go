// Package hashstore persists the input digest of every step that ran
// successfully, so unchanged steps can be skipped next time.
package hashstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/felixgeelhaar/buildplan/internal/digest"
	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// Store maps step keys to digests.
//
// hashes holds every digest known this run, including the ones loaded
// from disk. stored holds only the ones set this run, and is the only map
// that gets written back, so keys no step revisited are dropped.
type Store struct {
	hashes sync.Map
	stored sync.Map
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Get returns the digest recorded for key.
func (s *Store) Get(key string) (digest.Digest, bool) {
	v, ok := s.hashes.Load(key)
	if !ok {
		return digest.Digest{}, false
	}
	return v.(digest.Digest), true
}

// Set records d for key, replacing any earlier digest.
func (s *Store) Set(key string, d digest.Digest) {
	s.hashes.Store(key, d)
	s.stored.Store(key, d)
}

// Len returns the number of keys that would be written.
func (s *Store) Len() int {
	n := 0
	s.stored.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Keys returns the keys that would be written, sorted.
func (s *Store) Keys() []string {
	var keys []string
	s.stored.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Known returns every key with a digest, loaded or set, sorted.
func (s *Store) Known() []string {
	var keys []string
	s.hashes.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func malformed(cause error) error {
	return errors.NewFormatError(errors.ErrCodeHashStoreMalformed, "hash store", cause).
		WithSuggestion("Delete the hash store file; every step will rebuild once")
}

// Read parses a flat JSON object of key to hex digest. A non-string key or
// value, a duplicate key, nesting or trailing data rejects the whole input.
func Read(r io.Reader) (*Store, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, malformed(fmt.Errorf("expected a JSON object, got %v", tok))
	}

	s := New()
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, malformed(fmt.Errorf("key %v is not a string", tok))
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, malformed(err)
		}
		text, ok := tok.(string)
		if !ok {
			return nil, malformed(fmt.Errorf("value for %q is %v, not a string", key, tok))
		}

		if _, dup := seen[key]; dup {
			return nil, malformed(fmt.Errorf("multiple digests for key %q", key))
		}
		seen[key] = struct{}{}

		d, err := digest.Parse(text)
		if err != nil {
			return nil, malformed(fmt.Errorf("value for %q: %w", key, err))
		}
		s.hashes.Store(key, d)
	}

	if _, err := dec.Token(); err != nil {
		return nil, malformed(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed(fmt.Errorf("trailing data after hash store object"))
	}
	return s, nil
}

// Write serializes the digests set this run as a JSON object with sorted keys.
func (s *Store) Write(w io.Writer) error {
	out := make(map[string]string)
	s.stored.Range(func(k, v any) bool {
		out[k.(string)] = v.(digest.Digest).String()
		return true
	})
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Load reads the store at path. A missing file is an empty store.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.NewFileReadError(path, err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Save writes the store to path through a temporary file so a crash never
// leaves a truncated store behind.
func (s *Store) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	tmp, err := os.CreateTemp(dir, ".hashes-*.json")
	if err != nil {
		return errors.NewFileWriteError(path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := s.Write(tmp); err != nil {
		_ = tmp.Close()
		return errors.NewFileWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	return nil
}
