package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/logger"
)

// TaskTypeUploadProcess runs the pipeline over one upload.
const TaskTypeUploadProcess = "upload:process"

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrTaskNotFound is returned when neither the status cache nor the broker
// knows the task.
var ErrTaskNotFound = errors.New("task not found")

// UploadPayload is the body of an upload:process task.
type UploadPayload struct {
	JobID    string `json:"job_id"`
	UploadID string `json:"upload_id"`
}

// NewUploadTask builds the task the worker consumes for an upload.
func NewUploadTask(jobID, uploadID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(UploadPayload{JobID: jobID, UploadID: uploadID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeUploadProcess, payload, opts...), nil
}

// ParseUploadPayload decodes and checks an upload:process payload.
func ParseUploadPayload(data []byte) (UploadPayload, error) {
	var p UploadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.JobID == "" || p.UploadID == "" {
		return p, fmt.Errorf("invalid payload: job_id and upload_id are required")
	}
	return p, nil
}

// Progress is reported on a 0..1 scale.
const (
	ProgressRunning = 0.5
	ProgressDone    = 1.0
)

// TaskStatus is the broker-side view of a dispatched task.
type TaskStatus struct {
	TaskID     string          `json:"taskId"`
	Status     string          `json:"status"`
	Progress   float64         `json:"progress"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt,omitempty"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	Close() error
}

type statusCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Dispatcher submits upload jobs to asynq and tracks their status.
type Dispatcher struct {
	client    enqueuer
	inspector inspector
	redis     statusCache
	queue     string
	statusTTL time.Duration
	logger    logger.Logger
}

// RedisConnOpt parses the broker URL shared by the client and the worker.
func RedisConnOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return opt, nil
}

// NewDispatcher connects lazily to the Redis instance in cfg.RedisURL.
func NewDispatcher(cfg config.QueueConfig, log logger.Logger) (*Dispatcher, error) {
	connOpt, err := RedisConnOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	return &Dispatcher{
		client:    asynq.NewClient(connOpt),
		inspector: asynq.NewInspector(connOpt),
		redis:     redis.NewClient(redisOpt),
		queue:     cfg.Name,
		statusTTL: cfg.StatusTTL,
		logger:    log.Named("queue"),
	}, nil
}

// Queue is the name tasks are enqueued on.
func (d *Dispatcher) Queue() string { return d.queue }

// Enqueue submits an upload:process task and returns the id the broker
// assigned to it. The task id is the job id, so a job is enqueued at most once.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID, uploadID string) (string, error) {
	task, err := NewUploadTask(jobID, uploadID,
		asynq.TaskID(jobID),
		asynq.Queue(d.queue),
		asynq.Retention(d.statusTTL),
	)
	if err != nil {
		return "", err
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	d.logger.Info("Enqueued task",
		logger.String("taskId", info.ID),
		logger.String("queue", info.Queue),
		logger.String("jobId", jobID),
		logger.String("uploadId", uploadID),
	)
	return info.ID, nil
}

// Status returns the cached status of a task, falling back to the broker.
func (d *Dispatcher) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := d.redis.Get(ctx, statusKey(taskID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	info, err := d.inspector.GetTaskInfo(d.queue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to inspect task: %w", err)
	}

	status := convertAsynqStatus(info)
	if info.State == asynq.TaskStateCompleted || info.State == asynq.TaskStateArchived {
		if err := d.SaveStatus(ctx, status); err != nil {
			d.logger.Warn("Failed to cache task status",
				logger.String("taskId", taskID),
				logger.Error(err),
			)
		}
	}
	return status, nil
}

// SaveStatus caches status for the configured retention.
func (d *Dispatcher) SaveStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := d.redis.Set(ctx, statusKey(status.TaskID), data, d.statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (d *Dispatcher) Close() error {
	return errors.Join(d.client.Close(), d.inspector.Close(), d.redis.Close())
}

func statusKey(taskID string) string {
	return "task_status:" + taskID
}

// convertAsynqStatus maps asynq task states onto TaskStatus.
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Status:    StatusPending,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStateActive:
		status.Status = StatusRunning
		status.Progress = ProgressRunning
	case asynq.TaskStateCompleted:
		status.Status = StatusCompleted
		status.Progress = ProgressDone
		status.FinishedAt = info.CompletedAt
		if json.Valid(info.Result) {
			status.Result = info.Result
		}
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = StatusFailed
		status.Error = info.LastErr
		status.FinishedAt = info.LastFailedAt
	}
	return status
}
