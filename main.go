// Command pypi2spack converts PyPI package metadata into Spack package.py
// recipes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawire/pypi2spack/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "pypi2spack {[flags]|SUBCOMMAND...}",
	Short: "Convert PyPI package metadata to Spack recipes",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"Read configuration from `FILE` instead of looking for pypi2spack.yaml")
	argparser.PersistentFlags().StringVar(&flagDB, "db", "",
		"The database `FILE` to read from (overrides the config file)")
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
