package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/logger"
)

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	region     string
	logger     logger.Logger
}

// New creates a MinIO client. No request is made until the first call.
func New(cfg config.MinioConfig, log logger.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.BucketName,
		region:     cfg.Region,
		logger:     log.Named("minio"),
	}, nil
}

// EnsureBucket implements Storage.EnsureBucket
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: m.region})
	if err != nil {
		// another writer may have created it in between
		if exists, errExists := m.client.BucketExists(ctx, m.bucketName); errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	m.logger.Info("Created bucket", logger.String("bucket", m.bucketName))
	return nil
}

// Put implements Storage.Put
func (m *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}

	_, err := m.client.PutObject(ctx, m.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		m.logger.Error("Failed to store file to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

// PresignedGet implements Storage.PresignedGet
func (m *MinioStorage) PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Get implements Storage.Get
func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return obj, nil
}

// Delete implements Storage.Delete
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to delete file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
