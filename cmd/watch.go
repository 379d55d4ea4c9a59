package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hpy/internal/builder"
	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/logging"
	"github.com/conneroisu/hpy/internal/watcher"
)

var watchProduction bool

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild on source changes",
	Long: `Perform a full build, then watch the source directory and rebuild the
minimal set of affected pages on each change. Development builds go to the
dev output directory and carry the live-reload script; pair with 'hpy serve'
or use 'hpy serve' directly, which embeds this loop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchProduction, "production", false, "production rebuilds into the output directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Production = watchProduction

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := builder.New(cfg, log)
	if err != nil {
		return err
	}
	if err := b.CompileDirectory(ctx, true); err != nil {
		// Watch mode keeps running on a failed initial build; fixing the
		// source triggers the rebuild.
		log.Error(ctx, err, "initial build failed; watching for fixes")
	}

	if err := startWatchLoop(ctx, cfg, b, log); err != nil {
		return err
	}

	log.Info(ctx, "watching for changes", "dir", cfg.InputDir)
	<-ctx.Done()
	return nil
}

// startWatchLoop wires the filesystem watcher to the incremental builder.
func startWatchLoop(ctx context.Context, cfg *config.Config, b *builder.Builder, log logging.Logger) error {
	fw, err := watcher.New(b.InputRoot(), config.WatcherDebounceInterval, log)
	if err != nil {
		return err
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoOutputFilter(cfg.OutputDir, cfg.DevOutputDir))
	if cfg.StaticDirName != "" {
		staticRoot := filepath.Join(b.InputRoot(), cfg.StaticDirName)
		fw.AddFilter(watcher.Any(watcher.SourceFilter, watcher.StaticFilter(staticRoot)))
	} else {
		fw.AddFilter(watcher.SourceFilter)
	}

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		paths := make([]string, 0, len(events))
		for _, e := range events {
			paths = append(paths, e.Path)
		}
		return b.HandleChanges(ctx, paths, true)
	})

	if err := fw.AddRecursive(b.InputRoot()); err != nil {
		fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}
	go func() {
		<-ctx.Done()
		fw.Stop()
	}()
	return nil
}
