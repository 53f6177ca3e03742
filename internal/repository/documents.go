package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/document-intake/internal/models"
)

const documentColumns = `id, upload_id, doc_type, status, source_url, rectified_url, quality_json,
	ocr_json, schema_json, webhook_url, finalized_at, created_at, updated_at`

const fieldColumns = `id, document_id, field_name, field_type, value_text, value_num, value_date,
	bbox, confidence, edited_by, edited_at, created_at, updated_at`

const jobColumns = `id, upload_id, document_id, status, stage, payload, created_at, updated_at`

// DocumentRepository persists documents, their extracted fields and jobs.
type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithJob inserts doc and job in a single transaction and links the job
// to the document. A nil job id is replaced by a fresh UUID.
func (r *DocumentRepository) CreateWithJob(ctx context.Context, doc *models.Document, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	if job.Status == "" {
		job.Status = models.StatusPending
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertDocument = `
INSERT INTO documents (upload_id, doc_type, status, source_url, webhook_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

		err := tx.QueryRowxContext(ctx, insertDocument,
			doc.UploadID,
			doc.DocType,
			doc.Status,
			doc.SourceURL,
			doc.WebhookURL,
		).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return translate(err, "insert document")
		}

		const insertJob = `
INSERT INTO jobs (id, upload_id, document_id, status, stage, payload)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`

		job.DocumentID = &doc.ID
		err = tx.QueryRowxContext(ctx, insertJob,
			job.ID,
			job.UploadID,
			job.DocumentID,
			job.Status,
			job.Stage,
			job.Payload,
		).Scan(&job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return translate(err, "insert job")
		}
		return nil
	})
}

// GetDocument loads a document together with its extracted fields.
func (r *DocumentRepository) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		return nil, translate(err, "get document")
	}

	fields := []models.DocumentField{}
	err := r.db.SelectContext(ctx, &fields,
		`SELECT `+fieldColumns+` FROM document_fields WHERE document_id = $1 ORDER BY field_name`, id)
	if err != nil {
		return nil, translate(err, "list document fields")
	}
	doc.Fields = fields
	return &doc, nil
}

func (r *DocumentRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id); err != nil {
		return nil, translate(err, "get job")
	}
	return &job, nil
}

// UpdateJobStage records the stage a job has reached. Status is left alone.
func (r *DocumentRepository) UpdateJobStage(ctx context.Context, id uuid.UUID, stage *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET stage = $2, updated_at = now() WHERE id = $1`,
		id, stage)
	if err != nil {
		return translate(err, "update job")
	}
	return requireAffected(res, "update job")
}

// SaveQuality stores the quality probe output on the document.
func (r *DocumentRepository) SaveQuality(ctx context.Context, documentID int64, quality models.JSON) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET quality_json = $2, updated_at = now() WHERE id = $1`,
		documentID, quality)
	if err != nil {
		return translate(err, "save quality")
	}
	return requireAffected(res, "save quality")
}
