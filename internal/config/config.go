// Package config provides configuration management for hpy projects using
// Viper for flexible configuration loading from files, environment variables,
// and command-line flags.
//
// The configuration system supports YAML files (.hpy.yml), environment
// variable overrides with the HPY_ prefix, and validation. Every key is
// optional; absent keys fall back to the documented defaults below so a
// project with no config file at all still builds.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default directory locations consumed by the build pipeline.
const (
	DefaultInputDir          = "src"
	DefaultOutputDir         = "dist"
	DefaultDevOutputDir      = ".hpy_dev_output"
	DefaultStaticDirName     = "static"
	DefaultComponentsDirName = "components"

	ConfigFilename = ".hpy.yml"
)

// Fixed conventional filenames and placeholder markers of the document syntax.
const (
	LayoutFilename   = "_layout.hpy"
	AppShellFilename = "_app.html"

	LayoutPlaceholder       = "<!-- HPY_PAGE_CONTENT -->"
	AppShellHeadPlaceholder = "<!-- HPY_HEAD_CONTENT -->"
	AppShellBodyPlaceholder = "<!-- HPY_BODY_CONTENT -->"

	// ReloadTriggerName is the marker file under the output root whose
	// modification time is the sole live-reload signal.
	ReloadTriggerName = ".hpy_reload"
)

// BrythonVersion pins the scripting runtime loaded from the CDN.
const BrythonVersion = "3.11.3"

// WatcherDebounceInterval coalesces rapid filesystem events into one batch.
const WatcherDebounceInterval = 500 * time.Millisecond

type Config struct {
	InputDir          string       `yaml:"input_dir" mapstructure:"input_dir"`
	OutputDir         string       `yaml:"output_dir" mapstructure:"output_dir"`
	DevOutputDir      string       `yaml:"dev_output_dir" mapstructure:"dev_output_dir"`
	StaticDirName     string       `yaml:"static_dir_name" mapstructure:"static_dir_name"`
	ComponentsDirName string       `yaml:"components_dir_name" mapstructure:"components_dir_name"`
	Server            ServerConfig `yaml:"server" mapstructure:"server"`
	Build             BuildConfig  `yaml:"build" mapstructure:"build"`

	// Mode flags threaded through compile calls; set from CLI flags,
	// never from the config file.
	Production bool `yaml:"-" mapstructure:"-"`
	Verbose    bool `yaml:"-" mapstructure:"-"`
}

type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Host string `yaml:"host" mapstructure:"host"`
	Open bool   `yaml:"open" mapstructure:"open"`
}

type BuildConfig struct {
	// Ignore holds doublestar glob patterns excluded from source walks
	// and watch events, relative to the input dir.
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// Load builds a Config from viper's current state (config file, HPY_*
// environment variables, and any bound flags), applying defaults for every
// unset key and validating the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.InputDir == "" {
		config.InputDir = viper.GetString("input_dir")
	}
	if config.OutputDir == "" {
		config.OutputDir = viper.GetString("output_dir")
	}

	if config.InputDir == "" {
		config.InputDir = DefaultInputDir
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	if config.DevOutputDir == "" {
		config.DevOutputDir = DefaultDevOutputDir
	}
	if !viper.IsSet("static_dir_name") && config.StaticDirName == "" {
		config.StaticDirName = DefaultStaticDirName
	}
	if !viper.IsSet("components_dir_name") && config.ComponentsDirName == "" {
		config.ComponentsDirName = DefaultComponentsDirName
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.open") {
		config.Server.Open = true
	}

	if len(config.Build.Ignore) == 0 {
		config.Build.Ignore = viper.GetStringSlice("build.ignore")
	}
	if len(config.Build.Ignore) == 0 {
		config.Build.Ignore = []string{"**/.git/**", "**/node_modules/**"}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// EffectiveOutputDir returns the dev output dir in development-watch mode and
// the regular output dir otherwise.
func (c *Config) EffectiveOutputDir(devWatch bool) string {
	if devWatch && !c.Production {
		return c.DevOutputDir
	}
	return c.OutputDir
}

// validateConfig validates configuration values for security and correctness.
func validateConfig(config *Config) error {
	for name, dir := range map[string]string{
		"input_dir":      config.InputDir,
		"output_dir":     config.OutputDir,
		"dev_output_dir": config.DevOutputDir,
	} {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for name, component := range map[string]string{
		"static_dir_name":     config.StaticDirName,
		"components_dir_name": config.ComponentsDirName,
	} {
		// An empty name disables that feature; a multi-segment name would
		// escape the input dir.
		if component != "" && strings.ContainsAny(component, `/\`) {
			return fmt.Errorf("%s must be a bare directory name: %s", name, component)
		}
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is not in valid range 0-65535", config.Server.Port)
	}

	return nil
}

// validatePath validates a configured directory path.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	return nil
}
