package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/hpy/internal/scaffolding"
)

var initForce bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new hpy project",
	Long: `Create a starter project: a source tree with a shared layout, example
pages, a reusable component, static assets, and a ` + "`.hpy.yml`" + ` config file.

Without a directory argument the current directory is initialized. Existing
files are never overwritten unless --force is given.

Examples:
  hpy init my-site
  hpy init            # initialize the current directory
  hpy init --force    # overwrite existing starter files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	_, log, err := loadConfig()
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	g := scaffolding.NewProjectGenerator(log)
	return g.Generate(cmd.Context(), scaffolding.Options{Dir: dir, Force: initForce})
}
