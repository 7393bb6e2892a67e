// Package metadata memoizes per-file derived data, recomputing it only for
// files whose content digest changed since the previous run.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/buildplan/internal/digest"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Entry pairs extracted metadata with the digest of the content it was
// extracted from.
type Entry[T any] struct {
	Digest  digest.Digest `json:"digest"`
	Payload T             `json:"payload"`
}

// Map holds entries keyed by canonical source path.
type Map[T any] map[string]Entry[T]

// Loader reads the content of a source.
type Loader func(src sources.Source) ([]byte, error)

// Extractor derives metadata from a source's content. It must be pure.
type Extractor[T any] func(src sources.Source, content []byte) (T, error)

// ReadFile is the Loader that reads a source from disk.
func ReadFile(src sources.Source) ([]byte, error) {
	return os.ReadFile(src.CanonicalPath)
}

func loadFailed(src sources.Source, cause error) error {
	return errors.Wrap(errors.ErrCodeMetadataLoadFailed,
		fmt.Sprintf("failed to load metadata for %s", src.CanonicalPath), cause)
}

// updateOne computes the entry for src, reusing prev's entry when the
// content digest is unchanged.
func updateOne[T any](prev Map[T], load Loader, extract Extractor[T], src sources.Source) (Entry[T], error) {
	content, err := load(src)
	if err != nil {
		return Entry[T]{}, loadFailed(src, err)
	}
	d := digest.Sum(content)
	if old, ok := prev[src.CanonicalPath]; ok && old.Digest.Equal(d) {
		return old, nil
	}
	payload, err := extract(src, content)
	if err != nil {
		return Entry[T]{}, loadFailed(src, err)
	}
	return Entry[T]{Digest: d, Payload: payload}, nil
}

// Update returns a map with one entry per source. An entry from prev is
// reused unchanged when its digest matches the source's current content;
// otherwise extract runs. The first failure aborts the whole batch.
func Update[T any](prev Map[T], load Loader, extract Extractor[T], srcs []sources.Source) (Map[T], error) {
	next := make(Map[T], len(srcs))
	for _, src := range srcs {
		e, err := updateOne(prev, load, extract, src)
		if err != nil {
			return nil, err
		}
		next[src.CanonicalPath] = e
	}
	return next, nil
}

// UpdateConcurrent is Update spread over up to workers goroutines. Each
// source is handled by exactly one goroutine.
func UpdateConcurrent[T any](ctx context.Context, prev Map[T], load Loader, extract Extractor[T], srcs []sources.Source, workers int) (Map[T], error) {
	if workers <= 1 {
		return Update(prev, load, extract, srcs)
	}

	entries := make([]Entry[T], len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := updateOne(prev, load, extract, src)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := make(Map[T], len(srcs))
	for i, src := range srcs {
		next[src.CanonicalPath] = entries[i]
	}
	return next, nil
}

// Load reads a map saved by Save. A missing file is an empty map.
func Load[T any](path string) (Map[T], error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Map[T]{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadataLoadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	var m Map[T]
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadataLoadFailed, fmt.Sprintf("failed to decode %s", path), err)
	}
	if m == nil {
		m = Map[T]{}
	}
	return m, nil
}

// Save writes m to path as JSON.
func Save[T any](path string, m Map[T]) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to encode %s", path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	return nil
}
