package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dliveget/dlive-downloader/internal/logger"
	"github.com/dliveget/dlive-downloader/internal/model"
	"github.com/dliveget/dlive-downloader/internal/storage"
)

// TaskIDPrefix prefixes every generated task ID.
const TaskIDPrefix = "task-"

// Service handles download operations in the background
type Service struct {
	runner      Runner
	uploader    storage.Uploader // optional, nil disables uploads
	tasks       map[string]*model.DownloadTask
	tasksMutex  sync.RWMutex
	maxParallel int
	activeCount int
	outputDir   string
	onUpdate    func(*model.DownloadTask) // callback for UI updates
}

// NewService creates a new download service
func NewService(runner Runner, outputDir string, maxParallel int) *Service {
	return &Service{
		runner:      runner,
		tasks:       make(map[string]*model.DownloadTask),
		maxParallel: maxParallel,
		outputDir:   outputDir,
	}
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.DownloadTask)) {
	s.onUpdate = callback
}

// SetUploader enables uploading finished artifacts through uploader.
func (s *Service) SetUploader(uploader storage.Uploader) {
	s.uploader = uploader
}

// AddTask queues a download of one broadcast. variantIndex is the
// 1-based quality selection, 0 for the best available.
func (s *Service) AddTask(permlink string, variantIndex int) (*model.DownloadTask, error) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	// Check for duplicate unfinished downloads of the same broadcast
	for _, task := range s.tasks {
		if task.Permlink == permlink && !task.Status.IsFinished() {
			return nil, fmt.Errorf("task already exists for broadcast: %s", permlink)
		}
	}

	task := &model.DownloadTask{
		ID:           generateTaskID(),
		Permlink:     permlink,
		VariantIndex: variantIndex,
		Status:       model.TaskStatusPending,
		StartedAt:    time.Now(),
	}

	s.tasks[task.ID] = task

	// Claim a slot under the lock so concurrent AddTask calls cannot
	// oversubscribe the parallel limit
	if s.activeCount < s.maxParallel {
		s.activeCount++
		task.Status = model.TaskStatusStarting
		go s.startTask(task)
	}

	return task, nil
}

// GetTask returns a task by ID
func (s *Service) GetTask(id string) (*model.DownloadTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[id]
	return task, exists
}

// GetAllTasks returns all tasks
func (s *Service) GetAllTasks() []*model.DownloadTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]*model.DownloadTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// startTask runs one download task to completion. The caller has already
// claimed an active slot and marked the task starting.
func (s *Service) startTask(task *model.DownloadTask) {
	s.notifyUpdate(task)

	defer func() {
		s.tasksMutex.Lock()
		s.activeCount--
		s.tasksMutex.Unlock()

		// Try to start next pending task
		s.startNextPendingTask()
	}()

	ctx := context.Background()

	broadcast, err := s.runner.FetchBroadcast(ctx, task.Permlink)
	if err != nil {
		s.finishWithError(task, err)
		return
	}

	variants, err := s.runner.ListVariants(ctx, broadcast.PlaybackURL)
	if err != nil {
		s.finishWithError(task, err)
		return
	}

	variant, err := SelectVariant(variants, task.VariantIndex)
	if err != nil {
		s.finishWithError(task, err)
		return
	}

	s.tasksMutex.Lock()
	task.Status = model.TaskStatusDownloading
	task.Title = broadcast.Title
	task.CreatorName = broadcast.CreatorName
	task.Quality = variant.Quality
	s.tasksMutex.Unlock()
	s.notifyUpdate(task)

	outputPath, err := s.runner.DownloadVariant(ctx, broadcast, variant, s.outputDir, "", func(update model.ProgressUpdate) {
		s.updateTaskProgress(task, update)
	})
	if err != nil {
		s.finishWithError(task, err)
		return
	}

	s.maybeUpload(ctx, task, outputPath)

	s.tasksMutex.Lock()
	task.Status = model.TaskStatusCompleted
	task.OutputPath = outputPath
	task.FinishedAt = time.Now()
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
}

// maybeUpload uploads the artifact when an uploader is configured. Upload
// failures do not fail the task; the local file is the primary result.
func (s *Service) maybeUpload(ctx context.Context, task *model.DownloadTask, outputPath string) {
	if s.uploader == nil {
		return
	}
	objectName := task.Permlink + "/" + filepath.Base(outputPath)
	if err := s.uploader.Upload(ctx, outputPath, objectName); err != nil {
		logger.Warn("artifact upload failed",
			zap.String("task", task.ID),
			zap.String("object", objectName),
			zap.Error(err))
	}
}

// finishWithError records a terminal error on the task
func (s *Service) finishWithError(task *model.DownloadTask, err error) {
	s.tasksMutex.Lock()
	task.Status = model.TaskStatusError
	task.LastError = err.Error()
	task.FinishedAt = time.Now()
	s.tasksMutex.Unlock()

	logger.Error("download task failed", zap.String("task", task.ID), zap.Error(err))
	s.notifyUpdate(task)
}

// updateTaskProgress copies a pipeline progress event into the task
func (s *Service) updateTaskProgress(task *model.DownloadTask, update model.ProgressUpdate) {
	s.tasksMutex.Lock()
	task.Stage = update.Stage
	task.Completed = update.Completed
	task.Total = update.Total
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
}

// startNextPendingTask starts the next pending task if we have capacity
func (s *Service) startNextPendingTask() {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	if s.activeCount >= s.maxParallel {
		return
	}

	// Find next pending task
	for _, task := range s.tasks {
		if task.Status == model.TaskStatusPending {
			s.activeCount++
			task.Status = model.TaskStatusStarting
			go s.startTask(task)
			return
		}
	}
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task *model.DownloadTask) {
	if s.onUpdate != nil {
		s.onUpdate(task)
	}
}

// generateTaskID generates a unique task ID using UUID v7 for better uniqueness and time ordering
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
