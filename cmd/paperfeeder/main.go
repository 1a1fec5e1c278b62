package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"paperfeeder/internal/app"
	"paperfeeder/internal/config"
	"paperfeeder/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var opts app.Options

	root := &cobra.Command{
		Use:           "paperfeeder",
		Short:         "Curated daily digest of research papers and lab blogs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults to $PAPERFEEDER_CONFIG)")
	root.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "write the digest to a file instead of emailing it")
	root.PersistentFlags().StringVar(&opts.DigestPath, "out", "digest.html", "output path for --dry-run")
	root.PersistentFlags().IntVar(&opts.PaperDaysBack, "days", 0, "override the paper lookback window in days")
	root.PersistentFlags().IntVar(&opts.BlogDaysBack, "blog-days", 0, "override the blog lookback window in days")
	root.PersistentFlags().BoolVar(&opts.DisablePapers, "no-papers", false, "skip paper sources this run")
	root.PersistentFlags().BoolVar(&opts.DisableBlogs, "no-blogs", false, "skip blog feeds this run")

	root.AddCommand(newRunCmd(&configPath, &opts))
	root.AddCommand(newServeCmd(&configPath, &opts))

	return root
}

func newRunCmd(configPath *string, opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), *configPath, *opts, func(ctx context.Context, a *app.Application) error {
				return a.Run(ctx)
			})
		},
	}
}

func newServeCmd(configPath *string, opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), *configPath, *opts, func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func withApplication(parent context.Context, configPath string, opts app.Options, fn func(context.Context, *app.Application) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig(configPath)
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer application.Close()

	if err := fn(ctx, application); err != nil {
		logger.Error("pipeline failed", "error", err)
		return err
	}
	return nil
}

func loadConfig(path string) config.Config {
	if path != "" {
		return config.LoadPath(path)
	}
	return config.Load()
}
