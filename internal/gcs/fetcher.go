// Package gcs reads source files addressed as gs:// URIs so flat-file
// ingestion works the same for local paths and cloud objects.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Fetcher downloads object bytes for a gs:// URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// IsGCSURI reports whether the path names a cloud object rather than a local
// file.
func IsGCSURI(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// ParseURI splits "gs://bucket/path/to/object" into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid gs:// URI: %q", uri)
	}
	return parts[0], parts[1], nil
}

// StorageFetcher implements Fetcher against Google Cloud Storage.
type StorageFetcher struct{}

// NewStorageFetcher creates a GCS-backed fetcher.
func NewStorageFetcher() *StorageFetcher {
	return &StorageFetcher{}
}

// Fetch downloads the object bytes for the given gs:// URI.
func (f *StorageFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", uri, err)
	}
	return data, nil
}

var _ Fetcher = (*StorageFetcher)(nil)
