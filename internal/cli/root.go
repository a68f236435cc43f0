package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dliveget/dlive-downloader/internal/config"
	"github.com/dliveget/dlive-downloader/internal/logger"
)

var (
	settings *config.Settings

	verbose bool
	outDir  string
)

var rootCmd = &cobra.Command{
	Use:           "dlive-downloader",
	Short:         "Download DLive past broadcasts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings = config.Load()
		if outDir != "" {
			settings.OutputDir = outDir
		}

		level := settings.LogLevel
		if verbose {
			level = "debug"
		}
		return logger.Init(logger.Config{
			Level:      logger.LogLevel(level),
			OutputPath: settings.LogFile,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outDir, "outdir", "o", "", "directory to save videos (default: current directory)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(batchCmd)
}

// Execute runs the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
