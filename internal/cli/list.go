package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dliveget/dlive-downloader/internal/download"
	"github.com/dliveget/dlive-downloader/internal/platform"
)

var listCmd = &cobra.Command{
	Use:   "list <url>",
	Short: "List the available qualities of a broadcast without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		permlink, err := platform.ExtractPermlink(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		d := download.NewDownloader(settings)

		broadcast, err := d.FetchBroadcast(ctx, permlink)
		if err != nil {
			return err
		}
		variants, err := d.ListVariants(ctx, broadcast.PlaybackURL)
		if err != nil {
			return err
		}

		header := fmt.Sprintf("%s - %s", broadcast.CreatorName, broadcast.Title)
		if duration := broadcast.DurationString(); duration != "" {
			header += fmt.Sprintf(" (%s)", duration)
		}
		fmt.Println(header)
		for _, variant := range variants {
			fmt.Printf("%d. %s\n", variant.Index, variant.DisplayName(broadcast.DurationSec))
		}
		return nil
	},
}
