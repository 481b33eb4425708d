package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawire/pypi2spack/pkg/cliutil"
	"github.com/datawire/pypi2spack/pkg/convert"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list [flags] REQUIREMENT...",
		Short: "List the dependencies of packages",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),

		Long: "Walk the transitive dependency graph of the given requirements and print " +
			"the names of every package reached, one per line.",

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openIndex(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			floor, err := cfg.floor(ctx)
			if err != nil {
				return err
			}
			eval := &convert.Evaluator{
				Lookup: &pypi.Lookup{Index: store, KnownPythons: pypi.KnownPythonVersions()},
				Floor:  floor,
			}
			gen := convert.NewGenerator(store, eval, convert.Options{
				MaxVersions: cfg.MaxVersions,
				Prefix:      cfg.Prefix,
				Recurse:     true,
			})
			for _, arg := range args {
				req, err := pep508.ParseRequirement(arg)
				if err != nil {
					return err
				}
				gen.Request(*req)
			}
			if err := gen.Run(ctx); err != nil {
				return err
			}
			for _, name := range gen.DependencyNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
