// Package cmd provides the command-line interface for hpy with configuration
// management supporting multiple configuration sources.
//
// Configuration precedence, highest to lowest:
//  1. Command-line flags (--src, --out, --port, ...)
//  2. HPY_CONFIG_FILE environment variable - custom config file path
//  3. Individual environment variables (HPY_INPUT_DIR, HPY_SERVER_PORT, ...)
//  4. The .hpy.yml configuration file
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hpy",
	Short: "Compile .hpy documents into standalone HTML pages",
	Long: `hpy compiles source documents that mix HTML, CSS, and Python (run in the
browser via Brython) into self-contained HTML pages.

Key Features:
  • Single-file pages with scoped, reusable components
  • Shared layouts and an optional outer app shell
  • Incremental watch-mode rebuilds driven by a dependency graph
  • Development server with live reload

Quick Start:
  hpy init my-site                Initialize a new project
  hpy build                       Compile the project
  hpy watch                       Rebuild on changes
  hpy serve                       Watch, rebuild, and serve with live reload`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is "+config.ConfigFilename+", can also use HPY_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")

	rootCmd.PersistentFlags().String("src", "", "source directory (default "+config.DefaultInputDir+")")
	rootCmd.PersistentFlags().String("out", "", "output directory (default "+config.DefaultOutputDir+")")
	_ = viper.BindPFlag("input_dir", rootCmd.PersistentFlags().Lookup("src"))
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("out"))
}

// initConfig initializes viper from the config file and HPY_* environment
// variables. A missing config file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("HPY_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".hpy")
	}

	viper.SetEnvPrefix("HPY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective configuration and a logger for a command
// invocation.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Verbose = verbose

	level := logging.ParseLevel(logLevel)
	if verbose {
		level = logging.LevelDebug
	}
	log := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: "text",
		Output: os.Stderr,
	})
	return cfg, log, nil
}
