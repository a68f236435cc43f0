package download

import (
	"context"
	"fmt"

	"github.com/dliveget/dlive-downloader/internal/config"
	"github.com/dliveget/dlive-downloader/internal/dlive"
	"github.com/dliveget/dlive-downloader/internal/fetch"
	"github.com/dliveget/dlive-downloader/internal/hls"
	"github.com/dliveget/dlive-downloader/internal/model"
	"github.com/dliveget/dlive-downloader/internal/remux"
)

// Downloader is the facade surrounding collaborators use: it composes the
// metadata resolver, the playlist parser, the resilient fetcher, and the
// remux adapter. It owns one HTTP client for its lifetime so connections
// are pooled across calls; calls themselves are never cached, a fresh
// call always re-fetches.
type Downloader struct {
	fetcher        *fetch.Client
	api            *dlive.Client
	remuxer        remux.Remuxer
	segmentWorkers int
	allowInitOnly  bool
}

// NewDownloader builds a facade from settings.
func NewDownloader(settings *config.Settings) *Downloader {
	fetcher := fetch.NewClient()
	fetcher.SetUserAgent(settings.UserAgent)

	api := dlive.NewClient(fetcher)
	api.SetEndpoint(settings.Endpoint)

	return &Downloader{
		fetcher:        fetcher,
		api:            api,
		remuxer:        remux.NewFFmpeg(settings.FFmpegPath),
		segmentWorkers: settings.SegmentWorkers,
		allowInitOnly:  settings.AllowInitOnly,
	}
}

// SetRemuxer overrides the remux adapter. Tests use a double to simulate
// the ok, unavailable, and failed outcomes.
func (d *Downloader) SetRemuxer(r remux.Remuxer) {
	if r != nil {
		d.remuxer = r
	}
}

// FetchBroadcast resolves the metadata of one past broadcast.
func (d *Downloader) FetchBroadcast(ctx context.Context, permlink string) (*model.Broadcast, error) {
	return d.api.ResolveBroadcast(ctx, permlink)
}

// ListRecentBroadcasts lists up to first recent broadcasts of a channel.
func (d *Downloader) ListRecentBroadcasts(ctx context.Context, displayname string, first int) ([]model.Broadcast, error) {
	return d.api.ListRecentBroadcasts(ctx, displayname, first)
}

// ListVariants fetches the master playlist behind playbackURL and returns
// its stream variants in source order.
func (d *Downloader) ListVariants(ctx context.Context, playbackURL string) ([]model.StreamVariant, error) {
	text, err := d.fetcher.FetchText(ctx, playbackURL)
	if err != nil {
		return nil, fmt.Errorf("fetch master playlist: %w", err)
	}
	return hls.ParseMasterPlaylist(text, playbackURL)
}

// SelectVariant picks a variant by its 1-based index. Index 0 selects the
// first (best) variant.
func SelectVariant(variants []model.StreamVariant, index int) (model.StreamVariant, error) {
	if len(variants) == 0 {
		return model.StreamVariant{}, &ValidationError{Message: "no stream variants available"}
	}
	if index == 0 {
		index = 1
	}
	if index < 1 || index > len(variants) {
		return model.StreamVariant{}, &ValidationError{
			Message: fmt.Sprintf("selected quality %d does not exist (1-%d available)", index, len(variants)),
		}
	}
	return variants[index-1], nil
}
