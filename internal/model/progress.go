package model

// Stage names a phase of the download pipeline.
type Stage string

const (
	StageSegments Stage = "segments"
	StageMerge    Stage = "merge"
	StageRemux    Stage = "remux"
)

// ProgressUpdate is one progress event emitted by the download pipeline.
// Completed never decreases within a stage; Total is fixed per stage.
type ProgressUpdate struct {
	Completed int
	Total     int
	Stage     Stage
}

// ProgressFunc receives progress events. It may be called from multiple
// goroutines, but calls are serialized by the pipeline.
type ProgressFunc func(update ProgressUpdate)
