package js

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// Module is a group of scripts compiled as a unit.
type Module struct {
	Name string `json:"name"`
	// Deps lists every module this one depends on, directly or not, in
	// module order.
	Deps    []string         `json:"deps,omitempty"`
	Sources []sources.Source `json:"sources"`
}

// Record renders the module as a compiler module spec:
// name:count[:dep,...].
func (m Module) Record() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(m.Sources)))
	for i, dep := range m.Deps {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(dep)
	}
	return b.String()
}

// Modules is a dependency-ordered list of modules.
type Modules struct {
	Modules []Module `json:"modules"`
}

func invalidModule(format string, args ...any) error {
	return errors.Newf(errors.ErrCodeJSInvalidModule, format, args...)
}

// NewModules validates mods. Names must be unique, non-empty and free of
// the ':' and ',' flag delimiters, and each module must follow its deps.
func NewModules(mods []Module) (*Modules, error) {
	index := make(map[string]int, len(mods))
	for i, m := range mods {
		if m.Name == "" {
			return nil, invalidModule("module at index %d has no name", i)
		}
		if strings.ContainsAny(m.Name, ":,") {
			return nil, invalidModule("module name %q contains ':' or ','", m.Name)
		}
		if prev, dup := index[m.Name]; dup {
			return nil, invalidModule("duplicate modules with name %s at indices %d, %d", m.Name, prev, i)
		}
		index[m.Name] = i
	}
	for i, m := range mods {
		for _, dep := range m.Deps {
			di, ok := index[dep]
			if !ok {
				return nil, invalidModule("unsatisfied dependency %s required by %s", dep, m.Name)
			}
			if di >= i {
				return nil, invalidModule("%s appears before its dependency %s", m.Name, dep)
			}
		}
	}
	return &Modules{Modules: mods}, nil
}

// Len returns the number of modules.
func (m *Modules) Len() int {
	return len(m.Modules)
}

// Names returns the module names in order.
func (m *Modules) Names() []string {
	names := make([]string, len(m.Modules))
	for i, mod := range m.Modules {
		names[i] = mod.Name
	}
	return names
}

// Records returns the module spec of each module in order.
func (m *Modules) Records() []string {
	recs := make([]string, len(m.Modules))
	for i, mod := range m.Modules {
		recs[i] = mod.Record()
	}
	return recs
}

// Flags returns the compiler flags declaring every module: --module with
// the module spec, then --js for each of its files.
func (m *Modules) Flags() []string {
	var argv []string
	for _, mod := range m.Modules {
		argv = append(argv, "--module", mod.Record())
		for _, s := range mod.Sources {
			argv = append(argv, "--js", s.CanonicalPath)
		}
	}
	return argv
}

// Sources returns every file of every module in compilation order.
func (m *Modules) Sources() []sources.Source {
	var all []sources.Source
	for _, mod := range m.Modules {
		all = append(all, mod.Sources...)
	}
	return all
}
