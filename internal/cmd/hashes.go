package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/buildplan/internal/hashstore"
	"github.com/felixgeelhaar/buildplan/internal/plan"
)

type hashEntry struct {
	Step   string `json:"step" yaml:"step"`
	Key    string `json:"key" yaml:"key"`
	Digest string `json:"digest" yaml:"digest"`
}

type hashList []hashEntry

func (l hashList) WriteText(w io.Writer) error {
	for _, e := range l {
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.Digest, e.Key); err != nil {
			return err
		}
	}
	return nil
}

func newHashesCmd(a *app) *cobra.Command {
	var step string

	hashesCmd := &cobra.Command{
		Use:   "hashes",
		Short: "List the input digests recorded by previous builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			store, err := hashstore.Load(a.cfg.HashStorePath())
			if err != nil {
				return err
			}

			list := hashList{}
			for _, key := range store.Known() {
				prefix := plan.ParseKey(key).Prefix()
				if step != "" && prefix != step {
					continue
				}
				d, _ := store.Get(key)
				list = append(list, hashEntry{Step: prefix, Key: key, Digest: d.String()})
			}
			return a.format(cmd, list)
		},
	}

	hashesCmd.Flags().StringVarP(&step, "step", "s", "", "only list steps of this kind: "+strings.Join(stepKinds, ", "))
	_ = hashesCmd.RegisterFlagCompletionFunc("step", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return stepKinds, cobra.ShellCompDirectiveNoFileComp
	})
	return hashesCmd
}

var stepKinds = []string{
	"run-protoc", "soy-to-js", "css-dep-graph", "css-compile",
	"js-dep-info", "js-module-graph", "js-compile",
}
