package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "delcampe",
		Short: "Split scanned postcard sheets into individual crops",
		Long: `Delcampe splits a scanned sheet of postcards into one image per card.

Grid lines are seeded by an optional external detector, adjusted by hand
through the web interface, and cropped at full resolution. Sheets that were
processed before are recognised by content and their crops reused.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogging(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	addConfigFlags(cmd)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFingerprintCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newRecordsCmd())
	cmd.AddCommand(newCombineCmd())

	return cmd
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}
