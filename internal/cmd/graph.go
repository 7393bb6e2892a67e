package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/css"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/js"
	"github.com/felixgeelhaar/buildplan/internal/planner"
	"github.com/felixgeelhaar/buildplan/internal/sources"
)

// stylesheet is one row of the css order listing.
type stylesheet struct {
	Path       string   `json:"path" yaml:"path"`
	Relative   string   `json:"relative" yaml:"relative"`
	EntryPoint bool     `json:"entry_point" yaml:"entry_point"`
	Provides   []string `json:"provides,omitempty" yaml:"provides,omitempty"`
	Requires   []string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

type stylesheetList []stylesheet

func (l stylesheetList) WriteText(w io.Writer) error {
	for _, s := range l {
		mark := " "
		if s.EntryPoint {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", mark, s.Path); err != nil {
			return err
		}
	}
	return nil
}

func newCSSCmd(a *app) *cobra.Command {
	cssCmd := &cobra.Command{
		Use:   "css",
		Short: "Inspect stylesheet ordering",
	}

	var entryPoint string
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "List stylesheets in dependency order",
		Long: `List every stylesheet so that each one follows the stylesheets providing
what it requires. Entry points are marked with '*'. With --entry-point only
the stylesheets compiled into that entry point are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			g, err := planner.New(a.cfg, nil).CSSGraph(cmd.Context())
			if err != nil {
				return err
			}

			srcs := g.Sorted()
			if entryPoint != "" {
				src, ok := findEntryPoint(g, entryPoint)
				if !ok {
					return errors.Newf(errors.ErrCodeConfigInvalid, "no entry point named %q", entryPoint).
						WithSuggestion("Run 'buildplan css order' to list the entry points")
				}
				srcs = g.TransitiveClosureDeps(src)
			}

			list := make(stylesheetList, len(srcs))
			for i, s := range srcs {
				info := g.DepInfo(s)
				list[i] = stylesheet{
					Path:       s.CanonicalPath,
					Relative:   s.RelativePath,
					EntryPoint: css.IsEntryPoint(s),
					Provides:   info.Provides,
					Requires:   info.Requires,
				}
			}
			return a.format(cmd, list)
		},
	}
	orderCmd.Flags().StringVarP(&entryPoint, "entry-point", "e", "", "relative path or file name of an entry point")

	cssCmd.AddCommand(orderCmd)
	return cssCmd
}

func findEntryPoint(g *css.Graph, name string) (sources.Source, bool) {
	for _, ep := range g.EntryPoints() {
		if ep.RelativePath == name || ep.BaseName() == name || ep.CanonicalPath == name {
			return ep, true
		}
	}
	return sources.Source{}, false
}

// module is one row of the js modules listing.
type module struct {
	Name  string   `json:"name" yaml:"name"`
	Deps  []string `json:"deps,omitempty" yaml:"deps,omitempty"`
	Files []string `json:"files" yaml:"files"`
}

type moduleList struct {
	modules []module
	files   bool
}

func (l moduleList) WriteText(w io.Writer) error {
	for _, m := range l.modules {
		record := fmt.Sprintf("%s:%d", m.Name, len(m.Files))
		if len(m.Deps) > 0 {
			record += ":" + strings.Join(m.Deps, ",")
		}
		if _, err := fmt.Fprintln(w, record); err != nil {
			return err
		}
		if !l.files {
			continue
		}
		for _, f := range m.Files {
			if _, err := fmt.Fprintf(w, "    %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}

func newJSCmd(a *app) *cobra.Command {
	jsCmd := &cobra.Command{
		Use:   "js",
		Short: "Inspect script modules",
	}

	var files bool
	modulesCmd := &cobra.Command{
		Use:   "modules",
		Short: "List script modules in compilation order",
		Long: `Group scripts into modules and list them in the order they are passed to
the script compiler, as name:file-count:deps. Generated scripts are included
when a build has produced them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			mods, err := planner.New(a.cfg, nil).JSModules(cmd.Context(), a.logger)
			if err != nil {
				return err
			}
			list := moduleList{files: files}
			for _, m := range mods.Modules {
				list.modules = append(list.modules, moduleRow(m))
			}
			if a.output == "text" || a.output == "" {
				return a.format(cmd, list)
			}
			return a.format(cmd, list.modules)
		},
	}
	modulesCmd.Flags().BoolVarP(&files, "files", "f", false, "list the files of each module")

	jsCmd.AddCommand(modulesCmd)
	return jsCmd
}

func moduleRow(m js.Module) module {
	row := module{Name: m.Name, Deps: m.Deps, Files: make([]string, len(m.Sources))}
	for i, s := range m.Sources {
		row.Files[i] = s.CanonicalPath
	}
	return row
}
