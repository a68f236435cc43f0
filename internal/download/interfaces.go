package download

import (
	"context"

	"github.com/dliveget/dlive-downloader/internal/model"
)

// Runner performs the actual download work on behalf of the Service.
// *Downloader satisfies it; tests substitute a stub.
type Runner interface {
	FetchBroadcast(ctx context.Context, permlink string) (*model.Broadcast, error)
	ListVariants(ctx context.Context, playbackURL string) ([]model.StreamVariant, error)
	DownloadVariant(ctx context.Context, broadcast *model.Broadcast, variant model.StreamVariant, outputDir, filename string, progress model.ProgressFunc) (string, error)
}
