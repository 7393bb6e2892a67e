// Package sources describes source files found under configured roots.
package sources

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// Property qualifies how the files under a root are used.
type Property uint8

const (
	// TestOnly marks roots whose files are only compiled into test outputs.
	TestOnly Property = 1 << iota
	// LoadAsNeeded marks library roots whose files are only included when
	// something else requires a symbol they provide.
	LoadAsNeeded
)

var propertyNames = []struct {
	p    Property
	name string
}{
	{TestOnly, "test-only"},
	{LoadAsNeeded, "load-as-needed"},
}

// Names lists the set properties in declaration order.
func (p Property) Names() []string {
	var names []string
	for _, pn := range propertyNames {
		if p&pn.p != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

// Root is a directory that holds source files.
type Root struct {
	Path  string
	Props Property
}

// Has reports whether the root carries property p.
func (r Root) Has(p Property) bool {
	return r.Props&p != 0
}

// Source is a file found under a Root.
type Source struct {
	// CanonicalPath is absolute and symlink-free. It identifies the file.
	CanonicalPath string
	// RelativePath is slash separated and relative to Root.Path.
	RelativePath string
	Root         Root
}

// BaseName returns the file name without directories.
func (s Source) BaseName() string {
	return path.Base(s.RelativePath)
}

// Scan walks root and returns every regular file whose name ends with one
// of extensions, sorted by relative path. No extensions means every file.
// A root that does not exist yields no sources.
func Scan(root Root, extensions ...string) ([]Source, error) {
	base, err := filepath.Abs(root.Path)
	if err != nil {
		return nil, errors.NewFileReadError(root.Path, err)
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	} else if os.IsNotExist(err) {
		return nil, nil
	}

	var found []Source
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !hasExtension(d.Name(), extensions) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		found = append(found, Source{
			CanonicalPath: p,
			RelativePath:  filepath.ToSlash(rel),
			Root:          root,
		})
		return nil
	})
	if err != nil {
		return nil, errors.NewFileReadError(root.Path, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].RelativePath < found[j].RelativePath })
	return found, nil
}

// ScanAll scans each root in order and concatenates the results.
func ScanAll(roots []Root, extensions ...string) ([]Source, error) {
	var all []Source
	for _, r := range roots {
		found, err := Scan(r, extensions...)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

func hasExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// TrimExtension drops everything from the last dot of the final path
// element onwards.
func TrimExtension(p string) string {
	slash := strings.LastIndexByte(p, '/')
	if dot := strings.LastIndexByte(p, '.'); dot > slash {
		return p[:dot]
	}
	return p
}

// EndsWithWordOrIs reports whether s ends with the lowercase word suffix.
// The suffix counts as a word when it is all of s, follows a character that
// is not a letter or digit, or starts a camelCase hump:
//
//	EndsWithWordOrIs("foo-main", "main")  // true
//	EndsWithWordOrIs("fooMain", "main")   // true
//	EndsWithWordOrIs("domain", "main")    // false
func EndsWithWordOrIs(s, suffix string) bool {
	if suffix == "" {
		return true
	}
	start := len(s)
	for n := utf8.RuneCountInString(suffix); n > 0; n-- {
		if start == 0 {
			return false
		}
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	tail := s[start:]
	for _, want := range suffix {
		got, size := utf8.DecodeRuneInString(tail)
		if unicode.ToLower(got) != want {
			return false
		}
		tail = tail[size:]
	}

	if start == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:start])
	if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(s[start:])
	return unicode.IsLower(prev) && unicode.IsUpper(first)
}
