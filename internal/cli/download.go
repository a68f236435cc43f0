package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dliveget/dlive-downloader/internal/download"
	"github.com/dliveget/dlive-downloader/internal/model"
	"github.com/dliveget/dlive-downloader/internal/platform"
)

var (
	qualityIndex   int
	customFilename string
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a past broadcast",
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
		variant, err := download.SelectVariant(variants, qualityIndex)
		if err != nil {
			return err
		}

		filename := customFilename
		if filename != "" {
			filename = platform.EnsureExtension(platform.Slugify(filename))
		}

		fmt.Fprintf(os.Stderr, "Downloading %s - %s [%s]\n",
			broadcast.CreatorName, broadcast.Title, variant.Quality)

		renderer := newProgressRenderer(os.Stderr)
		path, err := d.DownloadVariant(ctx, broadcast, variant, settings.OutputDir, filename, renderer.update)
		renderer.finish()
		if err != nil {
			return err
		}

		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

func init() {
	downloadCmd.Flags().IntVarP(&qualityIndex, "quality", "q", 1, "quality index to download (1 = best)")
	downloadCmd.Flags().StringVarP(&customFilename, "filename", "f", "", "custom file name, without directories")
}

// stageLabels maps pipeline stages to their progress line captions.
var stageLabels = map[model.Stage]string{
	model.StageSegments: "Downloading segments",
	model.StageMerge:    "Merging segments",
	model.StageRemux:    "Remuxing",
}

// progressRenderer draws a single rewriting progress line. Pipeline
// callbacks arrive serialized but from worker goroutines, so updates go
// through a buffered queue drained by one printer goroutine.
type progressRenderer struct {
	queue chan model.ProgressUpdate
	done  sync.WaitGroup
	out   *os.File
}

func newProgressRenderer(out *os.File) *progressRenderer {
	r := &progressRenderer{
		queue: make(chan model.ProgressUpdate, 64),
		out:   out,
	}
	r.done.Add(1)
	go r.drain()
	return r
}

func (r *progressRenderer) update(update model.ProgressUpdate) {
	r.queue <- update
}

func (r *progressRenderer) drain() {
	defer r.done.Done()
	var lastStage model.Stage
	wrote := false
	for update := range r.queue {
		if wrote && update.Stage != lastStage {
			fmt.Fprintln(r.out)
		}
		label := stageLabels[update.Stage]
		if label == "" {
			label = string(update.Stage)
		}
		fmt.Fprintf(r.out, "\r%s %d/%d%s", label, update.Completed, update.Total,
			strings.Repeat(" ", 4))
		lastStage = update.Stage
		wrote = true
	}
	if wrote {
		fmt.Fprintln(r.out)
	}
}

// finish closes the queue and waits for the last line to be printed.
func (r *progressRenderer) finish() {
	close(r.queue)
	r.done.Wait()
}
