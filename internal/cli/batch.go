package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dliveget/dlive-downloader/internal/download"
	"github.com/dliveget/dlive-downloader/internal/logger"
	"github.com/dliveget/dlive-downloader/internal/model"
	"github.com/dliveget/dlive-downloader/internal/platform"
	"github.com/dliveget/dlive-downloader/internal/storage"
)

var batchCmd = &cobra.Command{
	Use:   "batch <url>...",
	Short: "Download several broadcasts in parallel",
	Long: "Download several broadcasts through the background service, " +
		"running up to MAX_PARALLEL_DOWNLOADS at a time. When the S3 upload " +
		"settings are configured, finished files are also uploaded.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := download.NewService(download.NewDownloader(settings), settings.OutputDir, settings.MaxParallel)

		if settings.Upload.Enabled() {
			uploader, err := storage.NewMinioUploader(settings.Upload)
			if err != nil {
				return fmt.Errorf("configure upload: %w", err)
			}
			service.SetUploader(uploader)
		}

		finished := make(chan model.DownloadTask, len(args))
		service.SetUpdateCallback(func(task *model.DownloadTask) {
			if task.Status.IsFinished() {
				finished <- *task
			}
		})

		queued := 0
		for _, rawURL := range args {
			permlink, err := platform.ExtractPermlink(rawURL)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", rawURL, err)
				continue
			}
			if _, err := service.AddTask(permlink, qualityIndex); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", rawURL, err)
				continue
			}
			queued++
		}
		if queued == 0 {
			return fmt.Errorf("no downloadable URLs given")
		}

		failures := 0
		for i := 0; i < queued; i++ {
			task := <-finished
			switch task.Status {
			case model.TaskStatusCompleted:
				fmt.Printf("Saved %s to %s\n", task.GetDisplayTitle(), task.OutputPath)
			default:
				failures++
				logger.Error("download failed",
					zap.String("broadcast", task.Permlink),
					zap.String("error", task.LastError))
				fmt.Fprintf(os.Stderr, "Failed %s: %s\n", task.Permlink, task.LastError)
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d downloads failed", failures, queued)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&qualityIndex, "quality", "q", 1, "quality index to download (1 = best)")
}
