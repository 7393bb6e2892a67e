package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/compiler"
	"github.com/felixgeelhaar/buildplan/internal/errors"
)

type runList []*compiler.RunManifest

func (l runList) WriteText(w io.Writer) error {
	for _, m := range l {
		_, err := fmt.Fprintf(w, "%s  %-6s exit %-3d %8s  %s\n",
			m.Timestamp.Format(time.DateTime), m.Tool, m.ExitCode, m.Duration, m.RunID)
		if err != nil {
			return err
		}
	}
	return nil
}

func newRunsCmd(a *app) *cobra.Command {
	var runID, tool string

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List the compiler invocations recorded by previous builds",
		Long: `List the manifest of every external compiler invocation: when it ran, its
exit code and duration, and the build it belonged to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			manifests, err := compiler.LoadManifests(a.cfg.ManifestDir())
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read run manifests", err)
			}

			list := runList{}
			for _, m := range manifests {
				if runID != "" && !strings.HasPrefix(m.RunID, runID) {
					continue
				}
				if tool != "" && m.Tool != tool {
					continue
				}
				list = append(list, m)
			}
			return a.format(cmd, list)
		},
	}

	runsCmd.Flags().StringVar(&runID, "run", "", "only list invocations of the build with this run ID or ID prefix")
	runsCmd.Flags().StringVar(&tool, "tool", "", "only list invocations of this tool: protoc, soy, css or js")
	return runsCmd
}
