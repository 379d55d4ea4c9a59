package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/hpy/internal/builder"
	"github.com/conneroisu/hpy/internal/server"
)

var noBrowser bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch, rebuild, and serve the site with live reload",
	Long: `Run the full development loop: build into the dev output directory, watch
the source tree for changes, and serve the result over HTTP with caching
disabled. Compiled pages poll the reload trigger and refresh themselves when
a rebuild lands.

Examples:
  hpy serve
  hpy serve --port 3000
  hpy serve --no-browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "don't open the browser automatically")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := builder.New(cfg, log)
	if err != nil {
		return err
	}
	if err := b.CompileDirectory(ctx, true); err != nil {
		log.Error(ctx, err, "initial build failed; watching for fixes")
	}

	if err := startWatchLoop(ctx, cfg, b, log); err != nil {
		return err
	}

	srv := server.New(cfg.EffectiveOutputDir(true), cfg.Server.Host, cfg.Server.Port, log)
	if cfg.Server.Open && !noBrowser {
		if err := server.OpenBrowser(srv.URL()); err != nil {
			log.Debug(ctx, "could not open browser", "error", err.Error())
		}
	}
	return srv.Start(ctx)
}
