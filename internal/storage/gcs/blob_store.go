// Package gcs implements a Google Cloud Storage blob store.
package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// BlobStore implements the storage Provider interface for GCS.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New initializes a GCS client and verifies the bucket is reachable, so a
// misconfigured crawl fails at startup rather than at export time.
// Authentication is handled via Application Default Credentials.
func New(ctx context.Context, bucket string) (*BlobStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// Save uploads data to the named object in the bucket.
func (s *BlobStore) Save(ctx context.Context, objectName string, data []byte) error {
	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gcs object %s: %w", objectName, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gcs writer for object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
