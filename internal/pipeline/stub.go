package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/storage"
)

// StatusReceived is reported for every job the stub accepts.
const StatusReceived = models.StatusReceived

// QualityObjectName is the artifact written under the proc prefix.
const QualityObjectName = "quality.json"

// JobStore is the persistence the stub needs.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	SaveQuality(ctx context.Context, documentID int64, quality models.JSON) error
	UpdateJobStage(ctx context.Context, id uuid.UUID, stage *string) error
}

// Stub acknowledges jobs and runs the quality probe over the source file.
type Stub struct {
	jobs    JobStore
	objects storage.Storage
	logger  logger.Logger
}

func NewStub(jobs JobStore, objects storage.Storage, log logger.Logger) *Stub {
	return &Stub{
		jobs:    jobs,
		objects: objects,
		logger:  log.Named("pipeline"),
	}
}

func (s *Stub) Process(ctx context.Context, req Request) (*Result, error) {
	log := s.logger.With(
		logger.String("jobId", req.JobID),
		logger.String("uploadId", req.UploadID),
	)
	log.Info("Received job")

	result := &Result{JobID: req.JobID, UploadID: req.UploadID, Status: StatusReceived}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", req.JobID, err)
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.UploadID != req.UploadID {
		return nil, fmt.Errorf("job %s belongs to upload %s, not %s", job.ID, job.UploadID, req.UploadID)
	}
	if job.DocumentID == nil {
		log.Warn("Job has no document, skipping quality probe")
		return result, s.advance(ctx, jobID, nil)
	}

	doc, err := s.jobs.GetDocument(ctx, *job.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.SourceURL == nil || *doc.SourceURL == "" {
		log.Warn("Document has no source object, skipping quality probe")
		return result, s.advance(ctx, jobID, nil)
	}

	quality, err := s.probe(ctx, *doc.SourceURL)
	if err != nil {
		return nil, err
	}
	result.Quality = quality

	encoded, err := json.Marshal(quality)
	if err != nil {
		return nil, fmt.Errorf("encode quality: %w", err)
	}
	if err := s.jobs.SaveQuality(ctx, doc.ID, models.JSON(encoded)); err != nil {
		return nil, fmt.Errorf("save quality: %w", err)
	}

	key := storage.ProcObjectKey(req.UploadID, QualityObjectName)
	if err := s.objects.Put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), "application/json"); err != nil {
		log.Warn("Failed to store quality artifact", logger.String("key", key), logger.Error(err))
	}

	stage := models.StageQuality
	if err := s.advance(ctx, jobID, &stage); err != nil {
		return nil, err
	}

	log.Info("Quality probe finished",
		logger.String("format", quality.Format),
		logger.Int64("size", quality.Size),
		logger.Bool("readable", quality.Readable),
	)
	return result, nil
}

func (s *Stub) probe(ctx context.Context, key string) (*Quality, error) {
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return Probe(data), nil
}

// advance moves the job to stage. The job's status stays as the API wrote it.
func (s *Stub) advance(ctx context.Context, jobID uuid.UUID, stage *string) error {
	if err := s.jobs.UpdateJobStage(ctx, jobID, stage); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}
