package main

import (
	"github.com/spf13/cobra"

	"github.com/datawire/pypi2spack/pkg/cliutil"
	"github.com/datawire/pypi2spack/pkg/pypi"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [flags]",
		Short: "Download the latest index snapshot",

		Long: "Fetch the gzipped index snapshot from the configured URL and install it " +
			"at the configured database path.  The download is atomic: a partial " +
			"fetch never replaces an existing snapshot.",

		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return pypi.DownloadSnapshot(cmd.Context(), cfg.SnapshotURL, cfg.DB)
		},
	}
	argparser.AddCommand(cmd)
}
