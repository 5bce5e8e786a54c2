// Package snapshot archives raw fetched pages so extraction can be replayed
// without re-fetching.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	gstorage "cloud.google.com/go/storage"
)

// GCSStore implements event.BlobStore over a Google Cloud Storage bucket.
// Authentication uses Application Default Credentials.
type GCSStore struct {
	client *gstorage.Client
	bucket string
}

// NewGCSStore initializes the client and fails fast when the bucket is not
// reachable.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("snapshot bucket is required")
	}
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// PutObject uploads the data and returns its gs:// URI.
func (s *GCSStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return "", fmt.Errorf("write gcs object %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// ObjectPath derives a stable content-addressed object name, partitioned by
// day so buckets stay browsable.
func ObjectPath(fetchedAt time.Time, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("pages/%s/%s.html", fetchedAt.UTC().Format("2006-01-02"), hex.EncodeToString(sum[:]))
}

// MemoryStore is an in-memory BlobStore for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// PutObject stores a copy of the data and returns a mem:// URI.
func (s *MemoryStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// Get returns a stored object, for test assertions.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}
