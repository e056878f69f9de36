package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/resolve"
	"tiktokzone/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config, e.g. :3000)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(resolve.FromConfig(cfg), server.Options{
		Listen:         cfg.Listen,
		FilenamePrefix: cfg.FilenamePrefix,
		Version:        Version,
		ImageClient:    httputil.NewClient(),
		ImageTimeout:   cfg.Timeouts.Image,
	}, logger)
	return srv.Run(ctx)
}
