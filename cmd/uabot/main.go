package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aurzen/unearthedarcana/internal/app"
	"github.com/aurzen/unearthedarcana/internal/config"
	"github.com/aurzen/unearthedarcana/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "uabot",
	Short: "Polls announcement feeds and distributes new articles to communities",
	Long: `uabot scrapes announcement-style article feeds on an interval,
detects which articles are new, announces each one exactly once per
subscriber community, and keeps a bounded pinned digest rolling forward.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if configPath != "" {
			loaded, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.Load()
		}

		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}

		logger.Info("uabot starting", "feeds", len(cfg.Feeds), "platform", cfg.Platform.Name)
		return application.Run(ctx)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
