package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Store mirrors local state to a remote object-storage target. The core
// pushes after mutating operations and fetches on bootstrap; it never assumes
// the mirror is consistent with local state.
type Store interface {
	// Push writes r to objectName, overwriting any existing object.
	Push(ctx context.Context, objectName string, r io.Reader) error

	// Fetch downloads objectName's bytes.
	Fetch(ctx context.Context, objectName string) ([]byte, error)

	// List returns object names under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// GCSStore is the Google Cloud Storage implementation of Store. It assumes
// Application Default Credentials are configured.
type GCSStore struct {
	bucket string
}

// NewGCSStore creates a GCSStore writing into bucket.
func NewGCSStore(bucket string) *GCSStore {
	return &GCSStore{bucket: bucket}
}

var _ Store = (*GCSStore)(nil)

// Push implements Store.
func (s *GCSStore) Push(ctx context.Context, objectName string, r io.Reader) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Push: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("Push: copy to object writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Push: finalize upload: %w", err)
	}
	return nil
}

// Fetch implements Store.
func (s *GCSStore) Fetch(ctx context.Context, objectName string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", s.bucket, objectName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: create storage client: %w", err)
	}
	defer client.Close()

	it := client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating objects: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// UploadObjectName builds the archive path for a raw upload,
// e.g. "uploads/denis/visa-march.csv".
func UploadObjectName(prefix, username, filename string) string {
	return path.Join(prefix, username, path.Base(filename))
}

// ParseURI splits a "gs://bucket/object/path" URI into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid storage URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
