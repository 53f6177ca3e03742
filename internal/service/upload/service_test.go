package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/internal/utils/validator"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
	"github.com/feichai0017/document-intake/pkg/storage/storagetest"
)

type memoryRepo struct {
	mu        sync.Mutex
	nextDocID int64
	docs      map[int64]*models.Document
	jobs      map[uuid.UUID]*models.Job
	err       error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: map[int64]*models.Document{}, jobs: map[uuid.UUID]*models.Job{}}
}

func (r *memoryRepo) CreateWithJob(_ context.Context, doc *models.Document, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextDocID++
	doc.ID = r.nextDocID
	doc.CreatedAt = time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.DocumentID = &doc.ID
	r.docs[doc.ID] = doc
	r.jobs[job.ID] = job
	return nil
}

func (r *memoryRepo) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		return j, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) GetDocument(_ context.Context, id int64) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

type fakeDispatcher struct {
	enqueued  [][2]string
	err       error
	status    *queue.TaskStatus
	statusErr error
}

func (d *fakeDispatcher) Enqueue(_ context.Context, jobID, uploadID string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.enqueued = append(d.enqueued, [2]string{jobID, uploadID})
	return jobID, nil
}

func (d *fakeDispatcher) Status(context.Context, string) (*queue.TaskStatus, error) {
	if d.statusErr != nil {
		return nil, d.statusErr
	}
	if d.status == nil {
		return nil, queue.ErrTaskNotFound
	}
	return d.status, nil
}

type fixture struct {
	svc        *UploadService
	repo       *memoryRepo
	store      *storagetest.Memory
	dispatcher *fakeDispatcher
	log        *logger.TestLogger
}

func newFixture() *fixture {
	f := &fixture{
		repo:       newMemoryRepo(),
		store:      storagetest.NewMemory(),
		dispatcher: &fakeDispatcher{},
		log:        logger.NewTestLogger(),
	}
	f.svc = NewService(f.repo, f.store, f.dispatcher, validator.NewDocumentValidator(f.log, nil), f.log)
	return f
}

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestUploadTenBytePNG(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	body := []byte("\x89PNG\r\n\x1a\n\x00\x00")
	require.Len(t, body, 10)

	res, err := f.svc.Upload(ctx, File{Filename: "scan.png", ContentType: "image/png", Body: bytes.NewReader(body)})
	require.NoError(t, err)

	assert.Regexp(t, hex32, res.UploadID)
	assert.Equal(t, "raw/"+res.UploadID+"/source.png", res.SourceObject)
	assert.NotEmpty(t, res.PresignedURL)
	assert.Contains(t, res.PresignedURL, "X-Amz-Expires=3600")
	assert.Equal(t, res.DBJobID, res.QueueJobID)

	obj, ok := f.store.Object(res.SourceObject)
	require.True(t, ok)
	assert.Equal(t, body, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, 1, f.store.EnsureCalls())

	doc, err := f.svc.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, res.UploadID, doc.UploadID)
	assert.Equal(t, models.StatusPending, doc.Status)
	require.NotNil(t, doc.SourceURL)
	assert.Equal(t, res.SourceObject, *doc.SourceURL)

	job, err := f.svc.GetJob(ctx, uuid.MustParse(res.DBJobID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, res.UploadID, job.UploadID)
	require.NotNil(t, job.DocumentID)
	assert.Equal(t, res.DocumentID, *job.DocumentID)
	assert.Nil(t, job.Queue)

	require.Len(t, f.dispatcher.enqueued, 1)
	assert.Equal(t, [2]string{res.DBJobID, res.UploadID}, f.dispatcher.enqueued[0])
}

func TestUploadEverySupportedType(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      "photo.JPEG",
		"image/png":       "noext",
		"image/tiff":      "fax.tiff",
		"application/pdf": "contract.pdf",
	}
	for ct, name := range cases {
		t.Run(ct, func(t *testing.T) {
			f := newFixture()
			res, err := f.svc.Upload(context.Background(), File{Filename: name, ContentType: ct, Body: strings.NewReader("payload")})
			require.NoError(t, err)

			doc, err := f.repo.GetDocument(context.Background(), res.DocumentID)
			require.NoError(t, err)
			job, err := f.repo.GetJob(context.Background(), uuid.MustParse(res.DBJobID))
			require.NoError(t, err)
			assert.Equal(t, doc.UploadID, job.UploadID)
			assert.True(t, strings.HasPrefix(res.SourceObject, "raw/"+res.UploadID+"/source"))
		})
	}
}

func TestUploadExtensionFallsBackToContentType(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Upload(context.Background(), File{Filename: "scan", ContentType: "image/jpeg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "raw/"+res.UploadID+"/source.jpg", res.SourceObject)
}

func TestUploadEmptyFile(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/tiff", "application/pdf"} {
		f := newFixture()
		_, err := f.svc.Upload(context.Background(), File{Filename: "a", ContentType: ct, Body: bytes.NewReader(nil)})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyFile)
		e := apperr.From(err)
		assert.Equal(t, http.StatusBadRequest, e.Status)
		assert.Equal(t, "Empty file provided", e.Detail)
		assert.Empty(t, f.store.Keys())
		assert.Empty(t, f.repo.docs)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Upload(context.Background(), File{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hi")})

	assert.ErrorIs(t, err, ErrUnsupportedType)
	e := apperr.From(err)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "Unsupported file type", e.Detail)
	assert.Empty(t, f.store.Keys())
}

func TestUploadStorageFailureCreatesNoRecords(t *testing.T) {
	f := newFixture()
	f.store.PutErr = errors.New("minio unavailable")

	_, err := f.svc.Upload(context.Background(), File{Filename: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperr.From(err).Status)
	assert.Empty(t, f.repo.docs)
	assert.Empty(t, f.dispatcher.enqueued)
}

func TestUploadDispatchFailureLeavesPendingRows(t *testing.T) {
	f := newFixture()
	f.dispatcher.err = errors.New("redis down")

	_, err := f.svc.Upload(context.Background(), File{Filename: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")})
	require.Error(t, err)
	assert.Len(t, f.repo.docs, 1)
	assert.Contains(t, f.log.Messages("ERROR"), "Upload recorded but not dispatched")
}

func TestUploadPresignFailure(t *testing.T) {
	f := newFixture()
	f.store.PresignErr = errors.New("clock skew")

	_, err := f.svc.Upload(context.Background(), File{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Len(t, f.dispatcher.enqueued, 1)
}

func TestGetJobAttachesQueueStatus(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Upload(context.Background(), File{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.NoError(t, err)

	f.dispatcher.status = &queue.TaskStatus{TaskID: res.QueueJobID, Status: queue.StatusCompleted}
	job, err := f.svc.GetJob(context.Background(), uuid.MustParse(res.DBJobID))
	require.NoError(t, err)
	require.NotNil(t, job.Queue)
	assert.Equal(t, queue.StatusCompleted, job.Queue.Status)

	f.dispatcher.status = nil
	f.dispatcher.statusErr = errors.New("redis down")
	job, err = f.svc.GetJob(context.Background(), uuid.MustParse(res.DBJobID))
	require.NoError(t, err)
	assert.Nil(t, job.Queue)
	assert.Contains(t, f.log.Messages("WARN"), "Failed to read queue status")
}

func TestLookupsNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetJob(context.Background(), uuid.New())
	assert.Equal(t, http.StatusNotFound, apperr.From(err).Status)

	_, err = f.svc.GetDocument(context.Background(), 99)
	assert.Equal(t, http.StatusNotFound, apperr.From(err).Status)
}
