package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/dl-client/internal/app"
	"github.com/yourusername/dl-client/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(ExitGeneralError)
		}

		out, err := yaml.Marshal(config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneralError)
		}
		fmt.Print(string(out))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitGeneralError)
			}
			path = filepath.Join(home, ".dl-client", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil && !force {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
			os.Exit(ExitInvalidArgs)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneralError)
		}
		fmt.Printf("Configuration written to %s\n", path)
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
