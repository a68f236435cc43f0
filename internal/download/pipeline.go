package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dliveget/dlive-downloader/internal/hls"
	"github.com/dliveget/dlive-downloader/internal/logger"
	"github.com/dliveget/dlive-downloader/internal/model"
	"github.com/dliveget/dlive-downloader/internal/platform"
	"go.uber.org/zap"
)

// ScratchDirPrefix names the per-download scratch directory so stray
// leftovers are recognizable. The directory itself is removed on every
// exit path.
const ScratchDirPrefix = "dlive_segments_"

// transportStreamExt suffixes the intermediate concatenation target when
// a remux into the final container is still pending.
const transportStreamExt = ".ts"

// part is one file to download into the scratch directory, in final
// concatenation order.
type part struct {
	url  string
	path string
}

// progressReporter serializes progress callbacks. Invoking the callback
// under the lock keeps Completed monotonically non-decreasing within a
// stage even when segment workers finish out of order.
type progressReporter struct {
	mu        sync.Mutex
	fn        model.ProgressFunc
	completed int
}

func (r *progressReporter) report(completed, total int, stage model.Stage) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn(model.ProgressUpdate{Completed: completed, Total: total, Stage: stage})
}

// add increments the shared part counter and reports it.
func (r *progressReporter) add(total int, stage model.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	if r.fn != nil {
		r.fn(model.ProgressUpdate{Completed: r.completed, Total: total, Stage: stage})
	}
}

// DownloadVariant downloads one stream variant of a broadcast into
// outputDir and returns the final artifact path. When filename is empty a
// sanitized {creator}_{title}_{quality}.mp4 name is synthesized. Progress
// events are reported through progress in stage order
// segments -> merge -> remux.
//
// A pure transport-stream variant requested as .mp4 is concatenated to a
// .ts intermediate and remuxed; if the remux tool is missing or fails the
// intermediate is returned instead, which is a degraded success, not an
// error.
func (d *Downloader) DownloadVariant(ctx context.Context, broadcast *model.Broadcast, variant model.StreamVariant, outputDir, filename string, progress model.ProgressFunc) (string, error) {
	if broadcast == nil {
		return "", &ValidationError{Message: "no broadcast given"}
	}
	if variant.PlaylistURL == "" {
		return "", &ValidationError{Message: "stream variant has no playlist URL"}
	}

	if err := platform.CreateDirectoryIfNotExists(outputDir); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	finalName := filename
	if finalName == "" {
		finalName = platform.BuildFilename(broadcast.CreatorName, broadcast.Title, variant.Quality)
	}
	finalName = platform.EnsureExtension(finalName)
	finalPath := filepath.Join(outputDir, finalName)

	text, err := d.fetcher.FetchText(ctx, variant.PlaylistURL)
	if err != nil {
		return "", fmt.Errorf("fetch media playlist: %w", err)
	}
	playlist, err := hls.ParseMediaPlaylist(text, variant.PlaylistURL)
	if err != nil {
		return "", err
	}

	totalParts := playlist.TotalParts()
	if totalParts == 0 {
		return "", &hls.PlaylistError{Message: "media playlist did not contain any segments"}
	}
	if len(playlist.SegmentURLs) == 0 && !d.allowInitOnly {
		return "", &hls.PlaylistError{Message: "media playlist did not contain any media segments"}
	}

	// Container strategy is decided up front: pure TS delivery into an
	// .mp4 target needs a remux, so concatenation goes to a .ts
	// intermediate distinct from the final path.
	needsRemux := playlist.InitURL == "" && strings.EqualFold(filepath.Ext(finalPath), ".mp4")
	mergeTarget := finalPath
	if needsRemux {
		mergeTarget = strings.TrimSuffix(finalPath, filepath.Ext(finalPath)) + transportStreamExt
	}

	scratchDir, err := os.MkdirTemp("", ScratchDirPrefix)
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.Warn("scratch directory cleanup failed", zap.String("dir", scratchDir), zap.Error(err))
		}
	}()

	parts := planParts(playlist, scratchDir)
	reporter := &progressReporter{fn: progress}

	if err := d.downloadParts(ctx, parts, reporter); err != nil {
		return "", err
	}
	if err := mergeParts(parts, mergeTarget, reporter); err != nil {
		return "", err
	}

	if !needsRemux {
		return finalPath, nil
	}
	return d.remuxOrKeep(ctx, mergeTarget, finalPath, reporter), nil
}

// planParts lays out the scratch files in concatenation order: the init
// segment, when present, gets a name that sorts before every media part
// and is downloaded exactly once.
func planParts(playlist *hls.MediaPlaylist, scratchDir string) []part {
	parts := make([]part, 0, playlist.TotalParts())
	index := 0

	if playlist.InitURL != "" {
		index++
		parts = append(parts, part{
			url:  playlist.InitURL,
			path: filepath.Join(scratchDir, fmt.Sprintf("%05d_init.mp4", index)),
		})
	}
	for _, segmentURL := range playlist.SegmentURLs {
		index++
		parts = append(parts, part{
			url:  segmentURL,
			path: filepath.Join(scratchDir, fmt.Sprintf("%05d.ts", index)),
		})
	}
	return parts
}

// downloadParts fetches every part through a bounded worker pool. Each
// worker writes its own scratch file, so completion order does not
// matter; concatenation later walks the plan in playlist order, which
// re-serializes the result. The first failure cancels the pool: queued
// workers skip their fetch and in-flight downloads are aborted through
// the request context.
func (d *Downloader) downloadParts(ctx context.Context, parts []part, reporter *progressReporter) error {
	workers := d.segmentWorkers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, workers)
	failures := make([]error, len(parts))
	var wg sync.WaitGroup

	for i, p := range parts {
		wg.Add(1)
		go func(i int, p part) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				failures[i] = err
				return
			}
			if err := d.fetcher.DownloadToFile(ctx, p.url, p.path); err != nil {
				failures[i] = err
				cancel()
				return
			}
			reporter.add(len(parts), model.StageSegments)
		}(i, p)
	}
	wg.Wait()

	return firstPartFailure(failures)
}

// firstPartFailure picks the failure to surface: the earliest real error,
// skipping over cancellations that were only collateral of it.
func firstPartFailure(failures []error) error {
	index, cause := -1, error(nil)
	for i, err := range failures {
		if err == nil {
			continue
		}
		if cause == nil || (errors.Is(cause, context.Canceled) && !errors.Is(err, context.Canceled)) {
			index, cause = i, err
		}
	}
	if cause == nil {
		return nil
	}
	return fmt.Errorf("download part %d/%d: %w", index+1, len(failures), cause)
}

// mergeParts concatenates the downloaded parts into target by raw byte
// copy, preserving playlist order. A failed merge removes the target so a
// half-written file is never left as the final artifact.
func mergeParts(parts []part, target string, reporter *progressReporter) error {
	merged, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	discard := func(err error) error {
		merged.Close()
		os.Remove(target)
		return err
	}

	for i, p := range parts {
		source, err := os.Open(p.path)
		if err != nil {
			return discard(fmt.Errorf("open part %d: %w", i+1, err))
		}
		_, err = io.Copy(merged, source)
		source.Close()
		if err != nil {
			return discard(fmt.Errorf("merge part %d: %w", i+1, err))
		}
		reporter.report(i+1, len(parts), model.StageMerge)
	}

	if err := merged.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}

// remuxOrKeep runs the remux stage. Tool absence or failure degrades to
// keeping the transport-stream intermediate: the caller still gets a
// playable file, just not in the requested container.
func (d *Downloader) remuxOrKeep(ctx context.Context, src, dst string, reporter *progressReporter) string {
	if !d.remuxer.Available() {
		logger.Warn("remux tool not found, keeping transport stream", zap.String("path", src))
		return src
	}

	reporter.report(0, 1, model.StageRemux)
	if err := d.remuxer.Remux(ctx, src, dst); err != nil {
		logger.Warn("remux failed, keeping transport stream", zap.String("path", src), zap.Error(err))
		os.Remove(dst)
		return src
	}

	if err := os.Remove(src); err != nil {
		logger.Warn("could not remove intermediate file", zap.String("path", src), zap.Error(err))
	}
	reporter.report(1, 1, model.StageRemux)
	return dst
}
