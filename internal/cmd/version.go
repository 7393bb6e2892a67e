package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var verbose bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			switch {
			case a.output != "text" && a.output != "":
				return a.format(cmd, info)
			case verbose:
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return err
			default:
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "buildplan %s\n", info.Short())
				return err
			}
		},
	}

	versionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed version information")
	return versionCmd
}
