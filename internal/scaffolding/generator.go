// Package scaffolding creates new hpy projects: a source tree with a layout,
// starter pages, an example component, static assets, and a config file.
package scaffolding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/logging"
)

// ProjectGenerator writes the starter project tree.
type ProjectGenerator struct {
	log logging.Logger
}

// NewProjectGenerator creates a generator.
func NewProjectGenerator(log logging.Logger) *ProjectGenerator {
	if log == nil {
		log = logging.NopLogger()
	}
	return &ProjectGenerator{log: log.WithComponent("scaffolding")}
}

// Options configure project generation.
type Options struct {
	// Dir is the project root to create; "." initializes in place.
	Dir string
	// Force overwrites existing files.
	Force bool
}

// Generate writes the starter project. Existing files are left untouched
// unless Force is set; a partially-initialized directory is therefore safe to
// re-run against.
func (g *ProjectGenerator) Generate(ctx context.Context, opts Options) error {
	root := opts.Dir
	if root == "" {
		root = "."
	}

	cfg := defaultProjectConfig()
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not render %s: %w", config.ConfigFilename, err)
	}

	srcDir := filepath.Join(root, cfg.InputDir)
	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(root, config.ConfigFilename), string(configYAML)},
		{filepath.Join(root, ".gitignore"), gitignoreTemplate},
		{filepath.Join(srcDir, config.LayoutFilename), layoutTemplate},
		{filepath.Join(srcDir, "index.hpy"), indexTemplate},
		{filepath.Join(srcDir, "about.hpy"), aboutTemplate},
		{filepath.Join(srcDir, cfg.ComponentsDirName, "counter.hpy"), counterComponentTemplate},
		{filepath.Join(srcDir, cfg.StaticDirName, "favicon.svg"), faviconTemplate},
	}

	written := 0
	for _, f := range files {
		path, content := f.path, f.content
		created, err := g.writeFile(path, content, opts.Force)
		if err != nil {
			return err
		}
		if created {
			written++
			g.log.Debug(ctx, "created", "path", path)
		} else {
			g.log.Info(ctx, "exists, skipping", "path", path)
		}
	}

	g.log.Info(ctx, "project initialized", "dir", root, "files", written)
	return nil
}

func (g *ProjectGenerator) writeFile(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("could not write %s: %w", path, err)
	}
	return true, nil
}

// defaultProjectConfig is the config written to new projects. Serialized
// explicitly rather than from config.Load so scaffolding stays deterministic.
func defaultProjectConfig() *config.Config {
	return &config.Config{
		InputDir:          config.DefaultInputDir,
		OutputDir:         config.DefaultOutputDir,
		DevOutputDir:      config.DefaultDevOutputDir,
		StaticDirName:     config.DefaultStaticDirName,
		ComponentsDirName: config.DefaultComponentsDirName,
		Server: config.ServerConfig{
			Port: 8000,
			Host: "localhost",
			Open: true,
		},
		Build: config.BuildConfig{
			Ignore: []string{"**/.git/**", "**/node_modules/**"},
		},
	}
}
