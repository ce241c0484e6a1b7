package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
)

// Sink stores a rendered export and returns where it went.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// FileSink writes exports into a local directory.
type FileSink struct {
	Dir string
}

func (s FileSink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	p := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("write export %s: %w", p, err)
	}
	slog.InfoContext(ctx, "Report exported to file",
		"component", "export",
		"path", p,
		"bytes", len(data))
	return p, nil
}

// GCSSink uploads exports to a Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates a sink using Application Default Credentials.
func NewGCSSink(ctx context.Context, bucket, prefix string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	object := path.Join(s.prefix, name)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", s.bucket, object)
	slog.InfoContext(ctx, "Report uploaded to GCS",
		"component", "export",
		"uri", uri,
		"bytes", len(data))
	return uri, nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
