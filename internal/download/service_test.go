package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dliveget/dlive-downloader/internal/model"
)

// stubRunner fakes the download pipeline. A non-nil gate blocks
// FetchBroadcast until the gate is closed, which lets tests hold tasks
// in flight.
type stubRunner struct {
	mu          sync.Mutex
	gate        chan struct{}
	fetchErr    error
	listErr     error
	downloadErr error
	outputPath  string
	events      []model.ProgressUpdate
	downloads   int
}

func (s *stubRunner) FetchBroadcast(_ context.Context, permlink string) (*model.Broadcast, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &model.Broadcast{
		Permlink:    permlink,
		Title:       "My Stream",
		CreatorName: "Someone",
		PlaybackURL: "https://example.test/playback.m3u8",
	}, nil
}

func (s *stubRunner) ListVariants(_ context.Context, _ string) ([]model.StreamVariant, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []model.StreamVariant{
		{Index: 1, Quality: "1080p", PlaylistURL: "https://example.test/1080p.m3u8"},
		{Index: 2, Quality: "720p", PlaylistURL: "https://example.test/720p.m3u8"},
	}, nil
}

func (s *stubRunner) DownloadVariant(_ context.Context, _ *model.Broadcast, _ model.StreamVariant, _, _ string, progress model.ProgressFunc) (string, error) {
	s.mu.Lock()
	s.downloads++
	s.mu.Unlock()
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	for _, event := range s.events {
		if progress != nil {
			progress(event)
		}
	}
	return s.outputPath, nil
}

// fakeUploader records uploads and optionally fails them.
type fakeUploader struct {
	mu      sync.Mutex
	err     error
	objects []string
}

func (f *fakeUploader) Upload(_ context.Context, _, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.objects = append(f.objects, objectName)
	return nil
}

// newServiceWithUpdates wires a service whose update callback streams
// task snapshots into a channel.
func newServiceWithUpdates(runner Runner, maxParallel int) (*Service, chan model.DownloadTask) {
	service := NewService(runner, "/tmp/out", maxParallel)
	updates := make(chan model.DownloadTask, 64)
	service.SetUpdateCallback(func(task *model.DownloadTask) {
		updates <- *task
	})
	return service, updates
}

func waitForFinished(t *testing.T, updates <-chan model.DownloadTask) model.DownloadTask {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case task := <-updates:
			if task.Status.IsFinished() {
				return task
			}
		case <-deadline:
			t.Fatal("task did not finish in time")
		}
	}
}

func TestServiceCompletesTask(t *testing.T) {
	runner := &stubRunner{
		outputPath: "/tmp/out/Someone_My-Stream_1080p.mp4",
		events: []model.ProgressUpdate{
			{Completed: 1, Total: 2, Stage: model.StageSegments},
			{Completed: 2, Total: 2, Stage: model.StageSegments},
			{Completed: 2, Total: 2, Stage: model.StageMerge},
		},
	}
	service, updates := newServiceWithUpdates(runner, 2)

	task, err := service.AddTask("someone+abc123", 0)
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if !strings.HasPrefix(task.ID, TaskIDPrefix) {
		t.Errorf("task ID %q lacks prefix %q", task.ID, TaskIDPrefix)
	}

	final := waitForFinished(t, updates)
	if final.Status != model.TaskStatusCompleted {
		t.Fatalf("status = %v, want completed (error: %s)", final.Status, final.LastError)
	}
	if final.OutputPath != runner.outputPath {
		t.Errorf("OutputPath = %q, want %q", final.OutputPath, runner.outputPath)
	}
	if final.Title != "My Stream" || final.Quality != "1080p" {
		t.Errorf("metadata = %q/%q, want My Stream/1080p", final.Title, final.Quality)
	}
	if final.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestServiceRecordsTaskError(t *testing.T) {
	runner := &stubRunner{fetchErr: errors.New("broadcast not found")}
	service, updates := newServiceWithUpdates(runner, 2)

	if _, err := service.AddTask("someone+missing", 0); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	final := waitForFinished(t, updates)
	if final.Status != model.TaskStatusError {
		t.Fatalf("status = %v, want error", final.Status)
	}
	if final.LastError != "broadcast not found" {
		t.Errorf("LastError = %q, want broadcast not found", final.LastError)
	}
	runner.mu.Lock()
	downloads := runner.downloads
	runner.mu.Unlock()
	if downloads != 0 {
		t.Errorf("downloads = %d, want 0", downloads)
	}
}

func TestServiceRecordsVariantSelectionError(t *testing.T) {
	runner := &stubRunner{}
	service, updates := newServiceWithUpdates(runner, 2)

	if _, err := service.AddTask("someone+abc123", 9); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	final := waitForFinished(t, updates)
	if final.Status != model.TaskStatusError {
		t.Fatalf("status = %v, want error", final.Status)
	}
	if !strings.Contains(final.LastError, "does not exist") {
		t.Errorf("LastError = %q, want quality selection message", final.LastError)
	}
}

func TestServiceRejectsDuplicateBroadcast(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{}), outputPath: "/tmp/out/a.mp4"}
	service, updates := newServiceWithUpdates(runner, 2)

	if _, err := service.AddTask("someone+abc123", 0); err != nil {
		t.Fatalf("first AddTask() error = %v", err)
	}
	if _, err := service.AddTask("someone+abc123", 0); err == nil {
		t.Error("second AddTask() for same broadcast succeeded, want error")
	}
	// A different broadcast is fine.
	if _, err := service.AddTask("someone+other", 0); err != nil {
		t.Errorf("AddTask() for different broadcast error = %v", err)
	}

	close(runner.gate)
	waitForFinished(t, updates)
	waitForFinished(t, updates)
}

func TestServiceQueuesBeyondCapacity(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{}), outputPath: "/tmp/out/a.mp4"}
	service, updates := newServiceWithUpdates(runner, 1)

	first, err := service.AddTask("someone+first", 0)
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	second, err := service.AddTask("someone+second", 0)
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	// With capacity 1 the second task must still be pending.
	task, ok := service.GetTask(second.ID)
	if !ok {
		t.Fatal("second task not found")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("second task status = %v, want pending", task.Status)
	}

	close(runner.gate)
	waitForFinished(t, updates)
	waitForFinished(t, updates)

	for _, id := range []string{first.ID, second.ID} {
		task, ok := service.GetTask(id)
		if !ok {
			t.Fatalf("task %s not found", id)
		}
		if task.Status != model.TaskStatusCompleted {
			t.Errorf("task %s status = %v, want completed", id, task.Status)
		}
	}
	if len(service.GetAllTasks()) != 2 {
		t.Errorf("GetAllTasks() = %d tasks, want 2", len(service.GetAllTasks()))
	}
}

func TestServiceUploadsArtifact(t *testing.T) {
	runner := &stubRunner{outputPath: "/tmp/out/Someone_My-Stream_1080p.mp4"}
	service, updates := newServiceWithUpdates(runner, 1)
	uploader := &fakeUploader{}
	service.SetUploader(uploader)

	if _, err := service.AddTask("someone+abc123", 0); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	final := waitForFinished(t, updates)
	if final.Status != model.TaskStatusCompleted {
		t.Fatalf("status = %v, want completed", final.Status)
	}

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	if len(uploader.objects) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploader.objects))
	}
	want := "someone+abc123/Someone_My-Stream_1080p.mp4"
	if uploader.objects[0] != want {
		t.Errorf("object = %q, want %q", uploader.objects[0], want)
	}
}

func TestServiceUploadFailureDoesNotFailTask(t *testing.T) {
	runner := &stubRunner{outputPath: "/tmp/out/a.mp4"}
	service, updates := newServiceWithUpdates(runner, 1)
	service.SetUploader(&fakeUploader{err: errors.New("bucket gone")})

	if _, err := service.AddTask("someone+abc123", 0); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	final := waitForFinished(t, updates)
	if final.Status != model.TaskStatusCompleted {
		t.Errorf("status = %v, want completed despite upload failure", final.Status)
	}
}

func TestGenerateTaskID(t *testing.T) {
	a := generateTaskID()
	b := generateTaskID()
	if !strings.HasPrefix(a, TaskIDPrefix) {
		t.Errorf("ID %q lacks prefix", a)
	}
	if a == b {
		t.Errorf("IDs not unique: %q", a)
	}
}
