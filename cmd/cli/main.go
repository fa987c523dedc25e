package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/dl-client/internal/app"
	"github.com/yourusername/dl-client/internal/domain"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitTransportError = 3
	ExitBackendError   = 4
	ExitStorageError   = 5
	ExitCancelled      = 130
)

var (
	configPath string
	serverURL  string
	rootCmd    = &cobra.Command{
		Use:   "dl-client",
		Short: "dl-client - Client for the remote download worker",
		Long: `A command-line client that submits URLs to a download worker, follows the
job until it finishes and saves the produced file.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./configs/config.yaml or $HOME/.dl-client/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend URL, overrides server.base_url")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and applies persistent flag overrides
func loadConfig() (*domain.Config, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		config.Server.BaseURL = serverURL
	}
	return config, nil
}

// exitCode maps a terminal lifecycle error to a process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, domain.ErrEmptyURL):
		return ExitInvalidArgs
	case errors.Is(err, domain.ErrBackendJob), errors.Is(err, domain.ErrProtocol):
		return ExitBackendError
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrMalformedResponse):
		return ExitTransportError
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitGeneralError
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitGeneralError)
	}
}
