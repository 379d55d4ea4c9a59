package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/hpy/internal/builder"
)

var buildProduction bool

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Compile the project (or a single page) to HTML",
	Long: `Compile every page under the source directory into the output directory.

With a file argument, compile just that page. Layouts, the app shell, and
components are always resolved from the source directory.

Examples:
  hpy build                     # compile everything under src/ into dist/
  hpy build src/about.hpy       # compile one page
  hpy build --production        # quiet runtime, no debug output`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildProduction, "production", false, "production build (debug level 0)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Production = buildProduction

	b, err := builder.New(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if len(args) == 1 {
		return b.CompileFile(ctx, args[0], false)
	}
	return b.CompileDirectory(ctx, false)
}
