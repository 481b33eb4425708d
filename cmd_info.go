package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawire/pypi2spack/pkg/cliutil"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep503"
)

func init() {
	cmd := &cobra.Command{
		Use:   "info [flags] [PACKAGE]",
		Short: "Show basic info about the index snapshot or a package",
		Args:  cliutil.WrapPositionalArgs(cobra.MaximumNArgs(1)),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openIndex(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				packages, versions, err := store.Counts(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Total packages:", packages)
				fmt.Fprintln(out, "Total versions:", versions)
				return nil
			}

			if err := pep503.ValidateName(args[0]); err != nil {
				return err
			}
			name := pep503.NormalizeName(args[0])
			lookup := &pypi.Lookup{Index: store, KnownPythons: pypi.KnownPythonVersions()}
			vers, err := lookup.Versions(ctx, name)
			if err != nil {
				return err
			}
			if len(vers) == 0 {
				return fmt.Errorf("no versions of %q in the index", name)
			}
			fmt.Fprintln(out, "Package:", name)
			fmt.Fprintln(out, "Versions:", len(vers))
			const show = 10
			newest := vers
			if len(newest) > show {
				newest = newest[len(newest)-show:]
			}
			for i := len(newest) - 1; i >= 0; i-- {
				fmt.Fprintln(out, " ", newest[i].String())
			}
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
