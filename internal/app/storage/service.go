/*
Package storage wraps S3-compatible object storage used to archive chat transcripts.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Stat for missing keys.
var ErrObjectNotFound = errors.New("storage: object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Key          string
	ContentType  string
	Size         int64
	LastModified time.Time
}

// StorageService defines the public interface for the object storage service.
type StorageService interface {
	// Put uploads body under key.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// Stat returns the object's metadata or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// PresignDownload generates a pre-signed URL for downloading an object.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewStorageService is the factory function for StorageService.
// Currently, only S3 compatible implementations are supported.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	return newS3Client(ctx, cfg)
}
