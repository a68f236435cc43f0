package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dliveget/dlive-downloader/internal/download"
)

var recentCount int

var recentCmd = &cobra.Command{
	Use:   "recent <channel>",
	Short: "List the recent past broadcasts of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := download.NewDownloader(settings)

		broadcasts, err := d.ListRecentBroadcasts(cmd.Context(), args[0], recentCount)
		if err != nil {
			return err
		}

		for i, broadcast := range broadcasts {
			line := fmt.Sprintf("%d. %s", i+1, broadcast.Title)
			if duration := broadcast.DurationString(); duration != "" {
				line += fmt.Sprintf(" (%s)", duration)
			}
			if created := broadcast.CreatedAt(); !created.IsZero() {
				line += " - " + created.Format("2006-01-02 15:04")
			}
			fmt.Println(line)
			fmt.Printf("   %s\n", broadcast.Permlink)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 10, "number of broadcasts to list")
}
