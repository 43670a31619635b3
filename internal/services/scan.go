package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cropscan/apiserver/types"
)

// ScanRepository defines persistence operations for scan history.
type ScanRepository interface {
	ListRecent(ctx context.Context, limit int) ([]types.ScanHistory, error)
	Create(ctx context.Context, scan types.ScanHistory) (types.ScanHistory, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

// EventPublisher emits domain events. Implemented by *mq.MQ.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel, eventType string, payload any) (string, error)
}

// ScanService encapsulates scan history use-cases.
type ScanService struct {
	repo    ScanRepository
	events  EventPublisher
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// ScanOption customises a ScanService.
type ScanOption func(*ScanService)

// WithScanEvents publishes scan.created and scans.cleared to channel.
func WithScanEvents(events EventPublisher, channel string) ScanOption {
	return func(s *ScanService) {
		s.events = events
		s.channel = channel
	}
}

// WithScanLogger sets the logger used for best-effort failures.
func WithScanLogger(logger *slog.Logger) ScanOption {
	return func(s *ScanService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScanService(repo ScanRepository, opts ...ScanOption) *ScanService {
	s := &ScanService{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns up to ScanHistoryLimit records, newest first.
func (s *ScanService) List(ctx context.Context) ([]types.ScanHistory, error) {
	scans, err := s.repo.ListRecent(ctx, types.ScanHistoryLimit)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []types.ScanHistory{}
	}
	return scans, nil
}

// Create normalises and persists a scan. Callers validate the required fields first.
func (s *ScanService) Create(ctx context.Context, scan types.ScanHistory) (types.ScanHistory, error) {
	scan.FileName = defaultIfBlank(scan.FileName, types.DefaultScanFileName)
	scan.Disease = strings.TrimSpace(scan.Disease)
	scan.Confidence = strings.TrimSpace(scan.Confidence)
	scan.Severity = strings.TrimSpace(scan.Severity)
	scan.Treatment = defaultIfBlank(scan.Treatment, types.DefaultScanTreatment)
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = s.now()
	}
	scan.CreatedAt = scan.CreatedAt.UTC()

	created, err := s.repo.Create(ctx, scan)
	if err != nil {
		return types.ScanHistory{}, err
	}

	s.publish(ctx, types.EventScanCreated, created)
	return created, nil
}

// Clear deletes every record and reports how many existed before the delete.
// Records inserted between the count and the delete may or may not be included.
func (s *ScanService) Clear(ctx context.Context) (int64, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.repo.DeleteAll(ctx); err != nil {
		return 0, err
	}

	s.publish(ctx, types.EventScansCleared, types.ScansClearedPayload{Deleted: total})
	return total, nil
}

func (s *ScanService) publish(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishEvent(ctx, s.channel, eventType, payload); err != nil {
		s.logger.WarnContext(ctx, "publish scan event failed", "event", eventType, "error", err)
	}
}

func defaultIfBlank(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
