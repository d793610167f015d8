package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/aposazhennikov/music-organizer/config"
	"github.com/aposazhennikov/music-organizer/loader"
	"github.com/aposazhennikov/music-organizer/logger"
	"github.com/aposazhennikov/music-organizer/metrics"
	"github.com/aposazhennikov/music-organizer/organizer"
	"github.com/aposazhennikov/music-organizer/player"
	"github.com/aposazhennikov/music-organizer/playlist"
	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
	"github.com/aposazhennikov/music-organizer/shell"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

const dotEnvFile = ".env"

func main() {
	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:          "music-organizer",
		Short:        "Organize and play a local music library",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Priority: environment > flags > defaults.
			if err := config.LoadDotEnv(dotEnvFile); err != nil {
				return err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(rootCmd.Flags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.LogLevel)
	log := logger.NewLogger(logCfg)
	slog.SetDefault(log)

	logger.LogConfigEvent(log, slog.LevelInfo, "Configuration loaded",
		slog.String("audio_dir", cfg.AudioDir),
		slog.String("extension", cfg.Extension),
		slog.Bool("watch", cfg.Watch),
		slog.Bool("mute", cfg.Mute),
		slog.Bool("audio_available", player.AudioAvailable),
	)

	sentryHelper, err := sentryhelper.Init(cfg.SentryDSN, cfg.Environment, "music-organizer@"+version, log)
	if err != nil {
		log.Error("Sentry initialization failed, continuing without error reporting", "error", err)
		sentryHelper = sentryhelper.NewSentryHelper(false, log)
	}
	defer sentryHelper.SafeFlush(2 * time.Second)
	if sentryHelper.IsEnabled() {
		defer sentry.Recover()
	}

	var device player.Device
	if cfg.Mute {
		device = player.NewNopDevice(log)
	} else {
		device = player.NewBeepDevice(log, sentryHelper)
	}
	defer device.Stop()

	opts := []organizer.Option{
		organizer.WithLogger(log),
		organizer.WithSentry(sentryHelper),
		organizer.WithMetrics(metrics.New()),
	}
	if cfg.Seed != 0 {
		opts = append(opts, organizer.WithShuffler(playlist.NewSeededShuffler(cfg.Seed)))
	}
	org := organizer.New(device, opts...)

	reader := loader.NewReader(log, sentryHelper)
	if _, err := org.Load(reader, cfg.AudioDir, cfg.Extension); err != nil {
		return fmt.Errorf("loading library from %s: %w", cfg.AudioDir, err)
	}
	fmt.Printf("Music library loaded. %d tracks.\n\n", org.Size())

	if cfg.Watch {
		watcher, err := loader.NewWatcher(cfg.AudioDir, cfg.Extension, log, sentryHelper)
		if err != nil {
			return fmt.Errorf("watching %s: %w", cfg.AudioDir, err)
		}
		defer watcher.Close()

		go org.Watch(ctx, watcher.Events(), reader)
	}

	return shell.New(org, os.Stdout, log).Run(ctx, os.Stdin)
}
