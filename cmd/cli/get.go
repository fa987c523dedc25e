package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/dl-client/internal/app"
	"github.com/yourusername/dl-client/internal/infrastructure"
	"github.com/yourusername/dl-client/pkg/logger"
)

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a URL through the backend and save the result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		notify, _ := cmd.Flags().GetBool("notify")
		interval, _ := cmd.Flags().GetDuration("interval")

		os.Exit(runGet(args[0], output, notify, interval))
	},
}

func init() {
	getCmd.Flags().StringP("output", "o", "", "Output directory, overrides output.dir")
	getCmd.Flags().BoolP("notify", "n", false, "Send a desktop notification when done")
	getCmd.Flags().Duration("interval", 0, "Poll interval, overrides polling.interval")
}

func runGet(target, output string, notify bool, interval time.Duration) int {
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return ExitGeneralError
	}
	if output != "" {
		config.Output.Dir = output
		config.Output.BucketURL = ""
	}
	if notify {
		config.Notification.Enabled = true
	}
	if interval > 0 {
		config.Polling.Interval = interval
		if config.Polling.MaxInterval < interval {
			config.Polling.MaxInterval = interval
		}
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return ExitGeneralError
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		// Category logs are optional for a single download
		log.Warn("Category logs disabled", zap.Error(err))
	} else {
		defer multiLog.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := infrastructure.OpenArtifactStore(ctx, &config.Output, config.Lifecycle.DefaultFilename, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	terminal := infrastructure.NewTerminalProjector(os.Stdout, store, log)
	projector := infrastructure.MultiProjector{
		terminal,
		infrastructure.NewNotificationService(&config.Notification, log),
	}
	client := infrastructure.NewJobAPIClient(&config.Server, nil, log)
	controller := app.NewController(client, projector, nil, &config.Lifecycle, &config.Polling, log, multiLog)

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling download...")
			controller.Cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("Starting download",
		zap.String("url", target),
		zap.String("server", config.Server.BaseURL))

	// The projector has already shown any failure
	if err := controller.Start(ctx, target); err != nil {
		return exitCode(err)
	}
	if err := controller.Wait(ctx); err != nil {
		return exitCode(err)
	}
	if terminal.SaveError() != nil {
		return ExitStorageError
	}
	return ExitSuccess
}
