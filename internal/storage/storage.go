package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cropscan/apiserver/config"
	"github.com/google/uuid"
)

const (
	metaSource       = "source"
	metaOriginalName = "original-name"
	metaArchivedAt   = "archived-at"
	sourcePredict    = "predict"
)

// Object is one archived upload.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectStorage is implemented by the archive backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, obj Object) error
	Bucket() string
}

// Storage archives uploaded scan images on a backend.
type Storage struct {
	backend ObjectStorage
	now     func() time.Time
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend, now: time.Now}
}

// NewFromConfig builds the configured archive backend.
// It returns nil without error when archiving is disabled.
func NewFromConfig(ctx context.Context, cfg config.ArchiveConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.ArchiveBackendMinio:
		backend, err = NewMinioArchive(cfg.Minio)
	case config.ArchiveBackendGCS:
		backend, err = NewGCSArchive(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend), nil
}

// EnsureBucket creates the archive bucket when the backend allows it.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// ArchiveUpload stores an uploaded image under a dated, collision-free key and returns the key.
func (s *Storage) ArchiveUpload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	now := s.now().UTC()
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	obj := Object{
		Key:         UploadKey(now, uuid.NewString(), filename),
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata: map[string]string{
			metaSource:       sourcePredict,
			metaOriginalName: filename,
			metaArchivedAt:   now.Format(time.RFC3339),
		},
	}
	if err := s.backend.Put(ctx, obj); err != nil {
		return "", fmt.Errorf("archive upload: %w", err)
	}
	return obj.Key, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadKey builds uploads/YYYY/MM/DD/<id>-<sanitized name>.
func UploadKey(at time.Time, id, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	name = strings.Trim(unsafeKeyChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "upload.jpg"
	}
	at = at.UTC()
	return fmt.Sprintf("uploads/%04d/%02d/%02d/%s-%s", at.Year(), int(at.Month()), at.Day(), id, name)
}
