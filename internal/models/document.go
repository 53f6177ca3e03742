package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is free-form in storage; these are the values this service writes.
type DocumentStatus = string

const (
	StatusPending   DocumentStatus = "pending"
	StatusReceived  DocumentStatus = "received"
	StatusRunning   DocumentStatus = "running"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

// Pipeline stage names recorded on a Job.
const (
	StageQuality    = "quality"
	StagePreprocess = "preprocess"
	StageOCR        = "ocr"
	StageSchema     = "schema"
)

// Document is one uploaded artifact and its processing outputs.
type Document struct {
	ID           int64      `db:"id" json:"id"`
	UploadID     string     `db:"upload_id" json:"upload_id"`
	DocType      *string    `db:"doc_type" json:"doc_type,omitempty"`
	Status       string     `db:"status" json:"status"`
	SourceURL    *string    `db:"source_url" json:"source_url,omitempty"`
	RectifiedURL *string    `db:"rectified_url" json:"rectified_url,omitempty"`
	QualityJSON  JSON       `db:"quality_json" json:"quality_json,omitempty"`
	OCRJSON      JSON       `db:"ocr_json" json:"ocr_json,omitempty"`
	SchemaJSON   JSON       `db:"schema_json" json:"schema_json,omitempty"`
	WebhookURL   *string    `db:"webhook_url" json:"webhook_url,omitempty"`
	FinalizedAt  *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Fields []DocumentField `db:"-" json:"fields,omitempty"`
}

// DocumentField is one extracted key/value with its provenance.
type DocumentField struct {
	ID         int64      `db:"id" json:"id"`
	DocumentID int64      `db:"document_id" json:"document_id"`
	FieldName  string     `db:"field_name" json:"field_name"`
	FieldType  *string    `db:"field_type" json:"field_type,omitempty"`
	ValueText  *string    `db:"value_text" json:"value_text,omitempty"`
	ValueNum   *float64   `db:"value_num" json:"value_num,omitempty"`
	ValueDate  *time.Time `db:"value_date" json:"value_date,omitempty"`
	BBox       JSON       `db:"bbox" json:"bbox,omitempty"`
	Confidence *float64   `db:"confidence" json:"confidence,omitempty"`
	EditedBy   *string    `db:"edited_by" json:"edited_by,omitempty"`
	EditedAt   *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Job tracks a Document through pipeline stages. DocumentID is nulled when
// the document is deleted.
type Job struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UploadID   string    `db:"upload_id" json:"upload_id"`
	DocumentID *int64    `db:"document_id" json:"document_id,omitempty"`
	Status     string    `db:"status" json:"status"`
	Stage      *string   `db:"stage" json:"stage,omitempty"`
	Payload    JSON      `db:"payload" json:"payload,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
