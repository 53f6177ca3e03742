package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/internal/utils/validator"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
	"github.com/feichai0017/document-intake/pkg/storage"
)

var _ Service = (*UploadService)(nil)

type UploadService struct {
	repo       Repository
	storage    storage.Storage
	dispatcher Dispatcher
	validator  *validator.DocumentValidator
	logger     logger.Logger
	presignTTL time.Duration
}

func NewService(
	repo Repository,
	store storage.Storage,
	dispatcher Dispatcher,
	v *validator.DocumentValidator,
	log logger.Logger,
) *UploadService {
	return &UploadService{
		repo:       repo,
		storage:    store,
		dispatcher: dispatcher,
		validator:  v,
		logger:     log.Named("upload"),
		presignTTL: storage.DefaultPresignTTL,
	}
}

// Upload stores the file, records a Document and a Job for it and hands the
// job to the queue. Failures after the database commit are not compensated.
func (s *UploadService) Upload(ctx context.Context, file File) (*Response, error) {
	if err := s.validator.ValidateContentType(file.ContentType); err != nil {
		return nil, apperr.BadRequest("Unsupported file type", err)
	}

	uploadID := newUploadID()
	ext := s.validator.Extension(file.Filename, file.ContentType)
	key := storage.RawObjectKey(uploadID, ext)

	data, info, err := s.validator.ReadBody(file.Body, file.Filename, file.ContentType)
	switch {
	case errors.Is(err, validator.ErrEmptyFile):
		return nil, apperr.BadRequest("Empty file provided", err)
	case errors.Is(err, validator.ErrFileTooLarge):
		return nil, apperr.New(http.StatusRequestEntityTooLarge, "File too large", err)
	case err != nil:
		return nil, err
	}

	log := s.logger.With(logger.String("uploadId", uploadID), logger.String("key", key))

	body := bytes.NewReader(data)
	size, err := storage.ObjectSize(body)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Put(ctx, key, body, size, file.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &models.Document{
		UploadID:  uploadID,
		Status:    models.StatusPending,
		SourceURL: &key,
	}
	job := &models.Job{
		UploadID: uploadID,
		Status:   models.StatusPending,
	}
	if err := s.repo.CreateWithJob(ctx, doc, job); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	log = log.With(logger.String("jobId", job.ID.String()), logger.Int64("documentId", doc.ID))

	queueJobID, err := s.dispatcher.Enqueue(ctx, job.ID.String(), uploadID)
	if err != nil {
		log.Error("Upload recorded but not dispatched", logger.Error(err))
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	presigned, err := s.storage.PresignedGet(ctx, key, s.presignTTL)
	if err != nil {
		log.Error("Upload dispatched but not presigned", logger.Error(err))
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	log.Info("Upload accepted",
		logger.String("queueJobId", queueJobID),
		logger.Int64("size", info.Size),
		logger.String("sha256", info.Hash),
		logger.String("detectedType", info.DetectedType),
	)

	return &Response{
		UploadID:     uploadID,
		DocumentID:   doc.ID,
		DBJobID:      job.ID.String(),
		QueueJobID:   queueJobID,
		SourceObject: key,
		PresignedURL: presigned,
	}, nil
}

// GetJob returns the persisted job. Broker status is attached when the
// queue still knows the task; lookup failures are logged and ignored.
func (s *UploadService) GetJob(ctx context.Context, id uuid.UUID) (*JobView, error) {
	job, err := s.repo.GetJob(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Job not found", err)
	}
	if err != nil {
		return nil, err
	}

	view := &JobView{Job: job}
	status, err := s.dispatcher.Status(ctx, job.ID.String())
	switch {
	case err == nil:
		view.Queue = status
	case errors.Is(err, queue.ErrTaskNotFound):
	default:
		s.logger.Warn("Failed to read queue status",
			logger.String("jobId", job.ID.String()),
			logger.Error(err),
		)
	}
	return view, nil
}

func (s *UploadService) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Document not found", err)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// newUploadID is a random UUID rendered as 32 hex characters.
func newUploadID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
