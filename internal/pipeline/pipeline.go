// Package pipeline holds the processing the worker runs for each upload.
// Only the receipt and quality stages exist; OCR and schema extraction are
// not implemented.
package pipeline

import "context"

// Request identifies the job a worker picked up.
type Request struct {
	JobID    string `json:"job_id"`
	UploadID string `json:"upload_id"`
}

// Result is written back to the broker when processing finishes.
type Result struct {
	JobID    string   `json:"job_id"`
	UploadID string   `json:"upload_id"`
	Status   string   `json:"status"`
	Quality  *Quality `json:"quality,omitempty"`
}

type Pipeline interface {
	Process(ctx context.Context, req Request) (*Result, error)
}
