package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

var (
	config    *internal.Config
	logger    zerolog.Logger
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chapterscribe",
	Short: "Caption lesson chapter videos with a speech-to-text service",
	Long: `chapterscribe turns a lesson chapter video into a WebVTT caption track.

It downloads the best rendition from an HLS playlist or the hosted video
platform, extracts a compact audio track with ffmpeg, uploads it to an
OpenAI-compatible transcription endpoint and writes timed captions.

Every successful transcription is recorded in the cost ledger.`,
	Example: `  # Caption a chapter streamed over HLS
  chapterscribe transcribe --lesson 12 --chapter 34 --title "Blues Scales" \
    --source hls --locator https://cdn.example.com/v/34/master.m3u8

  # Caption a chapter hosted on the video platform
  chapterscribe transcribe --lesson 12 --chapter 35 --title "Comping" \
    --source hosted --locator 76979871

  # Show what has been spent
  chapterscribe costs`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := internal.LoadConfig(configFile)
		if err != nil {
			return err
		}
		config = cfg

		if err := internal.HandleOutputFlags(cmd, config); err != nil {
			return err
		}
		if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir, config.MediaDir, config.CaptionsDir); err != nil {
			return fmt.Errorf("creating application directories: %w", err)
		}
		if created, err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
		} else if created && !config.Quiet {
			fmt.Fprintf(os.Stderr, "Created default configuration at %s\n", filepath.Join(config.ConfigDir, "config.toml"))
		}

		return setupLogging(internal.LogOptionsFromConfig(config))
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func setupLogging(opts internal.LogOptions) error {
	l, closer, err := internal.NewLogger(opts, os.Stderr)
	if err != nil {
		return err
	}
	if logCloser != nil {
		_ = logCloser.Close()
	}
	logger = l
	logCloser = closer
	if config.ConfigFileUsed != "" {
		logger.Debug().Str("config", config.ConfigFileUsed).Msg("using config file")
	}
	return nil
}

// newApp opens the cost ledger and optional caption publisher and wires the pipeline
func newApp(ctx context.Context) (*internal.App, func(), error) {
	ledger, err := internal.OpenLedger(ctx, config, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cost ledger: %w", err)
	}

	options := []internal.AppOption{internal.WithCostLedger(ledger)}
	publisher, err := internal.NewS3Publisher(ctx, config, logger)
	if err != nil {
		ledger.Close()
		return nil, nil, fmt.Errorf("configuring caption publisher: %w", err)
	}
	if publisher != nil {
		options = append(options, internal.WithPublisher(publisher))
	}

	app := internal.NewApp(config, logger, options...)
	cleanup := func() {
		if err := ledger.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing cost ledger")
		}
	}
	return app, cleanup, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal. Cleaning up and shutting down...")
		cancel()

		if config == nil {
			os.Exit(130)
		}

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cleanupCancel()

		cleanupDone := make(chan struct{})
		go func() {
			if _, err := internal.CleanupPartials(config.MediaDir); err != nil {
				fmt.Fprintf(os.Stderr, "Error cleaning up partial downloads: %v\n", err)
			}
			close(cleanupDone)
		}()

		select {
		case <-cleanupDone:
		case <-cleanupCtx.Done():
			fmt.Fprintln(os.Stderr, "Warning: Cleanup timed out, forcing exit")
		}
		os.Exit(130)
	}()

	rootCmd.SetContext(ctx)
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors and results")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $XDG_CONFIG_HOME/chapterscribe/config.toml)")
}
