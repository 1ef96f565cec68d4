package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrStorageNotConfigured is returned when GCS_BUCKET is unset (local dev, tests).
var ErrStorageNotConfigured = errors.New("GCS_BUCKET is required")

func storageBucket() (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", ErrStorageNotConfigured
	}
	return bucket, nil
}

// GetGCSClient prefers GCS_CREDENTIALS_JSON and falls back to ADC
// (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
func GetGCSClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func UploadBytesToGCS(ctx context.Context, objectKey string, data []byte, contentType string) error {
	bucket, err := storageBucket()
	if err != nil {
		return err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucket).Object(objectKey).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// ReadObjectFromGCS reads at most limit bytes; larger objects are rejected.
func ReadObjectFromGCS(ctx context.Context, objectKey string, limit int64) ([]byte, error) {
	bucket, err := storageBucket()
	if err != nil {
		return nil, err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("object %s exceeds %d bytes", objectKey, limit)
	}
	return data, nil
}

// DeleteObjectFromGCS treats a missing object as already deleted.
func DeleteObjectFromGCS(ctx context.Context, objectKey string) error {
	bucket, err := storageBucket()
	if err != nil {
		return err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucket).Object(objectKey).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// GCSObjectStore adapts the package functions to the small interfaces the
// cleanup worker and handlers depend on.
type GCSObjectStore struct{}

func (GCSObjectStore) Delete(ctx context.Context, objectKey string) error {
	return DeleteObjectFromGCS(ctx, objectKey)
}

// JobObjectPrefix is the storage prefix every object of a job lives under.
func JobObjectPrefix(partnerId, jobId string) string {
	return path.Join(partnerId, "jobs", jobId)
}

// ObjectKeyInPrefix rejects keys escaping the prefix.
func ObjectKeyInPrefix(objectKey, prefix string) bool {
	if strings.Contains(objectKey, "..") {
		return false
	}
	return strings.HasPrefix(objectKey, strings.TrimRight(prefix, "/")+"/")
}

func ThumbnailObjectKey(objectKey string) string {
	return path.Join(path.Dir(objectKey), "thumbnails", path.Base(objectKey))
}
