package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-intake/internal/models"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/storage"
	"github.com/feichai0017/document-intake/pkg/storage/storagetest"
)

type fakeStore struct {
	jobs    map[uuid.UUID]*models.Job
	docs    map[int64]*models.Document
	quality map[int64]models.JSON
	stages  map[uuid.UUID]*string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    map[uuid.UUID]*models.Job{},
		docs:    map[int64]*models.Document{},
		quality: map[int64]models.JSON{},
		stages:  map[uuid.UUID]*string{},
	}
}

func (f *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetDocument(_ context.Context, id int64) (*models.Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) SaveQuality(_ context.Context, id int64, q models.JSON) error {
	f.quality[id] = q
	return nil
}

func (f *fakeStore) UpdateJobStage(_ context.Context, id uuid.UUID, stage *string) error {
	j, ok := f.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Stage = stage
	f.stages[id] = stage
	return nil
}

func (f *fakeStore) seed(uploadID, key string) uuid.UUID {
	docID := int64(len(f.docs) + 1)
	f.docs[docID] = &models.Document{ID: docID, UploadID: uploadID, SourceURL: &key}
	id := uuid.New()
	f.jobs[id] = &models.Job{ID: id, UploadID: uploadID, DocumentID: &docID, Status: models.StatusPending}
	return id
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// minimalPDF renders a valid PDF with the given number of blank pages.
func minimalPDF(pages int, title string) []byte {
	var objects []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+4)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages),
		fmt.Sprintf("<< /Title (%s) /Author (Intake Tests) >>", title),
	)
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestProbeImage(t *testing.T) {
	q := Probe(pngBytes(t, 40, 20, color.White))

	assert.True(t, q.Readable)
	assert.Equal(t, "png", q.Format)
	assert.Equal(t, 40, q.Width)
	assert.Equal(t, 20, q.Height)
	assert.InDelta(t, 255, q.Brightness, 0.5)
	assert.Len(t, q.SHA256, 64)
}

// withDimensions rewrites the IHDR of a PNG so its header declares w x h.
func withDimensions(data []byte, w, h uint32) []byte {
	out := append([]byte(nil), data...)
	ihdr := out[8:]
	binary.BigEndian.PutUint32(ihdr[8:12], w)
	binary.BigEndian.PutUint32(ihdr[12:16], h)
	binary.BigEndian.PutUint32(ihdr[21:25], crc32.ChecksumIEEE(ihdr[4:21]))
	return out
}

func TestOversizedImageNotDecoded(t *testing.T) {
	data := withDimensions(pngBytes(t, 1, 1, color.White), 50000, 50000)

	q := Probe(data)

	assert.False(t, q.Readable)
	assert.Equal(t, "png", q.Format)
	assert.Equal(t, 50000, q.Width)
	assert.Equal(t, 50000, q.Height)
	assert.Contains(t, q.Error, ErrImageTooLarge.Error())
	assert.Zero(t, q.Brightness)
}

func TestProbePDF(t *testing.T) {
	data := minimalPDF(3, "Invoice")
	q := Probe(data)

	require.True(t, q.Readable, q.Error)
	assert.Equal(t, "pdf", q.Format)
	assert.Equal(t, 3, q.Pages)
	assert.Equal(t, "Invoice", q.Title)
	assert.Equal(t, int64(len(data)), q.Size)
}

func TestProbeUnreadable(t *testing.T) {
	cases := map[string][]byte{
		"truncated png": []byte("\x89PNG\r\n\x1a\n\x00\x00"),
		"broken pdf":    []byte("%PDF-1.4\ngarbage"),
		"random":        []byte("hello"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			q := Probe(data)
			assert.False(t, q.Readable)
			assert.NotEmpty(t, q.Error)
			assert.Equal(t, int64(len(data)), q.Size)
		})
	}
}

func TestStubProcessRecordsQuality(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	objects := storagetest.NewMemory()
	log := logger.NewTestLogger()

	key := storage.RawObjectKey("up1", ".png")
	data := pngBytes(t, 8, 8, color.Black)
	require.NoError(t, objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))
	jobID := store.seed("up1", key)

	res, err := NewStub(store, objects, log).Process(ctx, Request{JobID: jobID.String(), UploadID: "up1"})
	require.NoError(t, err)

	assert.Equal(t, StatusReceived, res.Status)
	assert.Equal(t, "up1", res.UploadID)
	require.NotNil(t, res.Quality)
	assert.Equal(t, 8, res.Quality.Width)

	var saved Quality
	require.NoError(t, json.Unmarshal(store.quality[1], &saved))
	assert.Equal(t, res.Quality.SHA256, saved.SHA256)

	assert.Equal(t, models.StatusPending, store.jobs[jobID].Status)
	require.NotNil(t, store.stages[jobID])
	assert.Equal(t, models.StageQuality, *store.stages[jobID])

	artifact, ok := objects.Object("proc/up1/quality.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", artifact.ContentType)
	assert.Contains(t, log.Messages("INFO"), "Received job")
}

func TestStubProcessRejectsMismatchedUpload(t *testing.T) {
	store := newFakeStore()
	jobID := store.seed("up1", "raw/up1/source.png")

	_, err := NewStub(store, storagetest.NewMemory(), logger.NewNop()).
		Process(context.Background(), Request{JobID: jobID.String(), UploadID: "other"})
	assert.Error(t, err)
}

func TestStubProcessUnknownJob(t *testing.T) {
	_, err := NewStub(newFakeStore(), storagetest.NewMemory(), logger.NewNop()).
		Process(context.Background(), Request{JobID: uuid.NewString(), UploadID: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = NewStub(newFakeStore(), storagetest.NewMemory(), logger.NewNop()).
		Process(context.Background(), Request{JobID: "not-a-uuid", UploadID: "x"})
	assert.Error(t, err)
}

func TestStubProcessMissingObject(t *testing.T) {
	store := newFakeStore()
	jobID := store.seed("up2", "raw/up2/source.pdf")

	_, err := NewStub(store, storagetest.NewMemory(), logger.NewNop()).
		Process(context.Background(), Request{JobID: jobID.String(), UploadID: "up2"})
	assert.ErrorIs(t, err, storagetest.ErrNoSuchKey)
	assert.Empty(t, store.stages)
}
