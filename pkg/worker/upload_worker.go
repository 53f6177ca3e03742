package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-intake/internal/pipeline"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
)

// StatusSaver records a finished task's status where the API can read it.
type StatusSaver interface {
	SaveStatus(ctx context.Context, status *queue.TaskStatus) error
}

// UploadWorker runs the pipeline for upload:process tasks.
type UploadWorker struct {
	BaseWorker
	pipeline pipeline.Pipeline
	statuses StatusSaver
	now      func() time.Time
}

func NewUploadWorker(cfg *Config, p pipeline.Pipeline, statuses StatusSaver, log logger.Logger) *UploadWorker {
	log = log.Named("worker")
	w := &UploadWorker{
		BaseWorker: newBaseWorker(cfg, log),
		pipeline:   p,
		statuses:   statuses,
		now:        time.Now,
	}
	w.mux.Handle(queue.TaskTypeUploadProcess, w)
	return w
}

// ProcessTask handles one upload:process task. Malformed payloads are not retried.
func (w *UploadWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	started := w.now().UTC()

	payload, err := queue.ParseUploadPayload(t.Payload())
	if err != nil {
		w.logger.Error("Invalid task payload",
			logger.String("payload", string(t.Payload())),
			logger.Error(err),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	taskID, ok := asynq.GetTaskID(ctx)
	if !ok {
		taskID = payload.JobID
	}
	log := w.logger.With(
		logger.String("taskId", taskID),
		logger.String("jobId", payload.JobID),
		logger.String("uploadId", payload.UploadID),
	)
	log.Info("Processing upload task")

	result, err := w.pipeline.Process(ctx, pipeline.Request{JobID: payload.JobID, UploadID: payload.UploadID})
	if err != nil {
		return fmt.Errorf("process upload %s: %w", payload.UploadID, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			log.Warn("Failed to write task result", logger.Error(err))
		}
	}

	status := &queue.TaskStatus{
		TaskID:     taskID,
		Status:     queue.StatusCompleted,
		Progress:   queue.ProgressDone,
		Result:     data,
		StartedAt:  started,
		FinishedAt: w.now().UTC(),
	}
	if err := w.statuses.SaveStatus(ctx, status); err != nil {
		log.Warn("Failed to save task status", logger.Error(err))
	}

	log.Info("Upload task completed", logger.Duration("elapsed", status.FinishedAt.Sub(started)))
	return nil
}
