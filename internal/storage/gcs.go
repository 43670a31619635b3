package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/cropscan/apiserver/config"
	"google.golang.org/api/option"
)

// GCSArchive keeps uploads in a Google Cloud Storage bucket.
type GCSArchive struct {
	client    *storage.Client
	bucket    string
	projectID string
}

func NewGCSArchive(ctx context.Context, cfg config.GCSConfig) (*GCSArchive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSArchive{client: client, bucket: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates the bucket only when a project id is configured.
func (g *GCSArchive) EnsureBucket(ctx context.Context) error {
	bucket := g.client.Bucket(g.bucket)
	_, err := bucket.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case strings.TrimSpace(g.projectID) == "":
		return fmt.Errorf("gcs bucket %q does not exist and GCS_PROJECT_ID is empty", g.bucket)
	}
	return bucket.Create(ctx, g.projectID, nil)
}

// Put streams obj to the bucket. Size is ignored; the writer commits on Close.
func (g *GCSArchive) Put(ctx context.Context, obj Object) error {
	w := g.client.Bucket(g.bucket).Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = obj.Metadata
	if _, err := io.Copy(w, obj.Body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSArchive) Bucket() string {
	return g.bucket
}
