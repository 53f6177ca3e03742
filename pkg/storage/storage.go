package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/storage/minio"
	"github.com/feichai0017/document-intake/pkg/storage/s3"
)

const (
	// RawPrefix holds uploaded source files.
	RawPrefix = "raw"
	// ProcPrefix holds artifacts derived by the worker.
	ProcPrefix = "proc"

	DefaultPresignTTL = 3600 * time.Second
)

// ErrUnknownSize is returned by ObjectSize for readers it cannot measure.
var ErrUnknownSize = errors.New("cannot determine object size")

// Storage is the object store used for uploads and derived artifacts.
type Storage interface {
	// EnsureBucket creates the configured bucket when it does not exist.
	EnsureBucket(ctx context.Context) error
	// Put ensures the bucket and writes size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// PresignedGet returns a URL granting anonymous read access for ttl.
	PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case config.StorageTypeMinio:
		return minio.New(cfg.Minio, log)
	case config.StorageTypeS3:
		return s3.New(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// RawObjectKey is the key of an upload's source file, e.g. raw/<id>/source.pdf.
func RawObjectKey(uploadID, ext string) string {
	return RawPrefix + "/" + uploadID + "/source" + ext
}

// ProcObjectKey is the key of an artifact derived from an upload.
func ProcObjectKey(uploadID, name string) string {
	return path.Join(ProcPrefix, uploadID, name)
}

// ObjectSize reports how many bytes r will yield. In-memory readers report
// their unread length; other seekers are measured and rewound to the start.
func ObjectSize(r io.Reader) (int64, error) {
	switch v := r.(type) {
	case *bytes.Reader:
		return int64(v.Len()), nil
	case *bytes.Buffer:
		return int64(v.Len()), nil
	case *strings.Reader:
		return int64(v.Len()), nil
	case io.Seeker:
		end, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("seek end: %w", err)
		}
		if _, err := v.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seek start: %w", err)
		}
		return end, nil
	default:
		return 0, ErrUnknownSize
	}
}
