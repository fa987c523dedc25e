package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/dl-client/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View lifecycle or error logs",
	Long: `View the category logs written by previous downloads.
Categories: lifecycle (every state transition, the default) and error.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		category := logger.CategoryLifecycle
		if len(args) == 1 {
			category = logger.LogCategory(args[0])
		}
		if !logger.ValidCategory(category) {
			fmt.Fprintf(os.Stderr, "Error: unknown category %q (valid: %s)\n", category, categoryNames())
			os.Exit(ExitInvalidArgs)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		dateFlag, _ := cmd.Flags().GetString("date")
		follow, _ := cmd.Flags().GetBool("follow")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		config, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(ExitGeneralError)
		}
		reader := logger.NewLogReader(config.Logging.LogsDir)

		if follow {
			os.Exit(followLogs(reader, category, jsonOutput))
		}

		date := time.Now()
		if dateFlag != "" {
			date, err = time.ParseInLocation("2006-01-02", dateFlag, time.Local)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid date %q, expected YYYY-MM-DD\n", dateFlag)
				os.Exit(ExitInvalidArgs)
			}
		}

		var entries []logger.LogEntry
		if search != "" {
			entries, err = reader.SearchLogs(category, date, search, limit)
		} else {
			entries, err = reader.ReadLogs(category, date, limit)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneralError)
		}

		if len(entries) == 0 && !jsonOutput {
			fmt.Printf("No %s logs for %s\n", category, date.Format("2006-01-02"))
			return
		}
		printEntries(entries, jsonOutput)
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "l", 50, "Show the last N entries (0 for all)")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing text")
	logsCmd.Flags().StringP("date", "d", "", "Day to read, YYYY-MM-DD (default today)")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow new entries")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
}

func followLogs(reader *logger.LogReader, category logger.LogCategory, jsonOutput bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entries := make(chan logger.LogEntry)
	errCh := make(chan error, 1)
	go func() {
		errCh <- reader.TailLogs(ctx, category, entries)
	}()

	for {
		select {
		case entry := <-entries:
			printEntries([]logger.LogEntry{entry}, jsonOutput)
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return ExitGeneralError
			}
			return ExitSuccess
		}
	}
}

func printEntries(entries []logger.LogEntry, jsonOutput bool) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			enc.Encode(entry)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.Timestamp,
			strings.ToUpper(entry.Level),
			entry.Message,
			truncate(formatFields(entry.Fields), 120))
	}
	w.Flush()
}

// formatFields renders fields as sorted key=value pairs
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func categoryNames() string {
	names := make([]string, 0, len(logger.Categories))
	for _, c := range logger.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
