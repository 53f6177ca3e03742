package upload

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/utils/validator"
	"github.com/feichai0017/document-intake/pkg/queue"
)

var (
	ErrUnsupportedType = validator.ErrUnsupportedType
	ErrEmptyFile       = validator.ErrEmptyFile
	ErrFileTooLarge    = validator.ErrFileTooLarge
)

// Service accepts uploads and exposes the records they create.
type Service interface {
	Upload(ctx context.Context, file File) (*Response, error)
	GetJob(ctx context.Context, id uuid.UUID) (*JobView, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
}

// File is one uploaded part as received by the transport.
type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Response struct {
	UploadID     string `json:"upload_id"`
	DocumentID   int64  `json:"document_id"`
	DBJobID      string `json:"db_job_id"`
	QueueJobID   string `json:"queue_job_id"`
	SourceObject string `json:"source_object"`
	PresignedURL string `json:"presigned_url"`
}

// JobView is a persisted job plus the broker's view of it, when known.
type JobView struct {
	*models.Job
	Queue *queue.TaskStatus `json:"queue,omitempty"`
}

// Repository is the persistence the workflow needs.
type Repository interface {
	CreateWithJob(ctx context.Context, doc *models.Document, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
}

type Dispatcher interface {
	Enqueue(ctx context.Context, jobID, uploadID string) (string, error)
	Status(ctx context.Context, taskID string) (*queue.TaskStatus, error)
}
