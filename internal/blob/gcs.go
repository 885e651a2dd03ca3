package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores blobs in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore builds a Store over the given bucket. Credentials come from
// ADC, or from explicit JSON in GCS_CREDENTIALS_JSON for local runs. The
// bucket is probed once at startup; an unreachable bucket is logged and
// tolerated so the service can still come up while storage recovers.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("blob: bucket name is required")
	}

	var client *storage.Client
	var err error
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: create gcs client: %w", err)
	}

	s := &GCSStore{client: client, bucket: bucket}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		slog.Warn("gcs bucket not accessible at startup", "bucket", bucket, "error", err)
	}
	return s, nil
}

// Put uploads content under a generated key and returns the key.
func (s *GCSStore) Put(ctx context.Context, content []byte, originalName, contentType string) (string, error) {
	objectName := NewObjectName(originalName)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(content); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("blob: upload %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("blob: close writer for %s: %w", objectName, err)
	}
	return objectName, nil
}

// Get returns the stored bytes, or ErrNotFound for a missing key.
func (s *GCSStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: open %s: %w", objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", objectName, err)
	}
	return data, nil
}

// Delete removes an object, mapping a missing key to ErrNotFound.
func (s *GCSStore) Delete(ctx context.Context, objectName string) error {
	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("blob: delete %s: %w", objectName, err)
	}
	return nil
}

// Exists checks object presence via attributes, without downloading.
func (s *GCSStore) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat %s: %w", objectName, err)
	}
	return true, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
