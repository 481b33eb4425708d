package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/datawire/pypi2spack/pkg/convert"
	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep503"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
)

func init() {
	var flags struct {
		Requirements string
		Match        string
		Directory    string
		Recursive    bool
		MaxVersions  int
	}
	cmd := &cobra.Command{
		Use:   "generate [flags] [REQUIREMENT...] >package.py",
		Short: "Generate package.py recipes",
		Args:  cobra.ArbitraryArgs,

		Long: "Generate a Spack package.py recipe for each requested package, from the " +
			"metadata in the index snapshot.  Requirements are given as arguments " +
			`("requests[socks]>=2.8"), in a requirements.txt file via ` +
			"--requirements, and/or as every indexed package sharing a name prefix " +
			"via --match." +
			"\n\n" +
			"By default the output is written to stdout; with --directory, each " +
			"package is written to DIR/py-NAME/package.py, matching the layout of " +
			"Spack's builtin package repository.",

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var requirements []pep508.Requirement
			for _, arg := range args {
				req, err := pep508.ParseRequirement(arg)
				if err != nil {
					return err
				}
				requirements = append(requirements, *req)
			}
			if flags.Requirements != "" {
				fromFile, err := readRequirements(flags.Requirements)
				if err != nil {
					return err
				}
				requirements = append(requirements, fromFile...)
			}
			if len(requirements) == 0 && flags.Match == "" {
				return fmt.Errorf("no requirements given; pass them as arguments, via --requirements, or via --match")
			}

			store, err := openIndex(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if flags.Match != "" {
				if err := pep503.ValidateName(flags.Match); err != nil {
					return err
				}
				names, err := store.NamesWithPrefix(ctx, pep503.NormalizeName(flags.Match))
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return fmt.Errorf("no packages matching prefix %q in the index", flags.Match)
				}
				for _, name := range names {
					requirements = append(requirements, pep508.Requirement{Name: name})
				}
			}

			floor, err := cfg.floor(ctx)
			if err != nil {
				return err
			}
			eval := &convert.Evaluator{
				Lookup: &pypi.Lookup{Index: store, KnownPythons: pypi.KnownPythonVersions()},
				Floor:  floor,
			}
			maxVersions := cfg.MaxVersions
			if flags.MaxVersions > 0 {
				maxVersions = flags.MaxVersions
			}
			gen := convert.NewGenerator(store, eval, convert.Options{
				MaxVersions: maxVersions,
				Prefix:      cfg.Prefix,
				Recurse:     flags.Recursive,
			})
			for _, req := range requirements {
				gen.Request(req)
			}
			if err := gen.Run(ctx); err != nil {
				return err
			}

			for _, name := range gen.NodeNames() {
				manifest, err := gen.Manifest(ctx, name)
				if err != nil {
					return err
				}
				if flags.Directory == "" {
					if _, err := fmt.Fprint(cmd.OutOrStdout(), manifest); err != nil {
						return err
					}
					continue
				}
				pkgdir := filepath.Join(flags.Directory, cfg.Prefix+name)
				if err := os.MkdirAll(pkgdir, 0o777); err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(pkgdir, "package.py"), []byte(manifest), 0o666); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.Requirements, "requirements", "r", "",
		"Read requirements from `FILE` (requirements.txt syntax)")
	cmd.Flags().StringVar(&flags.Match, "match", "",
		"Also generate every indexed package whose normalized name starts with `PREFIX`")
	cmd.Flags().StringVarP(&flags.Directory, "directory", "o", "",
		"Write each recipe to `DIR`/py-NAME/package.py instead of stdout")
	cmd.Flags().BoolVar(&flags.Recursive, "recursive", false,
		"Also generate recipes for transitive dependencies")
	cmd.Flags().IntVar(&flags.MaxVersions, "max-versions", 0,
		"Process at most `N` of the newest matching releases per package (overrides the config file)")

	argparser.AddCommand(cmd)
}
