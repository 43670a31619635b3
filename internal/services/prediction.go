package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/cropscan/apiserver/internal/inference"
	"github.com/cropscan/apiserver/types"
)

// Predictor performs a single inference call. Implemented by *inference.Client.
type Predictor interface {
	Predict(ctx context.Context, upload types.Upload) (inference.Result, error)
}

// UploadArchiver keeps a copy of relayed images. Implemented by *storage.Storage.
type UploadArchiver interface {
	ArchiveUpload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// PredictionService relays uploads to the inference service.
type PredictionService struct {
	predictor Predictor
	archive   UploadArchiver
	events    EventPublisher
	channel   string
	logger    *slog.Logger
	now       func() time.Time
}

// PredictionOption customises a PredictionService.
type PredictionOption func(*PredictionService)

// WithUploadArchive stores every successfully relayed upload.
func WithUploadArchive(archive UploadArchiver) PredictionOption {
	return func(s *PredictionService) {
		s.archive = archive
	}
}

// WithPredictionEvents publishes prediction.completed to channel.
func WithPredictionEvents(events EventPublisher, channel string) PredictionOption {
	return func(s *PredictionService) {
		s.events = events
		s.channel = channel
	}
}

// WithPredictionLogger sets the logger used for best-effort failures.
func WithPredictionLogger(logger *slog.Logger) PredictionOption {
	return func(s *PredictionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPredictionService(predictor Predictor, opts ...PredictionOption) *PredictionService {
	s := &PredictionService{
		predictor: predictor,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict makes exactly one upstream call. Archiving and event publishing run
// only after a successful relay and never change its outcome.
func (s *PredictionService) Predict(ctx context.Context, upload types.Upload) (inference.Result, error) {
	receivedAt := s.now().UTC()

	result, err := s.predictor.Predict(ctx, upload)
	if err != nil {
		return inference.Result{}, err
	}

	var objectKey string
	if s.archive != nil {
		key, err := s.archive.ArchiveUpload(ctx, upload.Filename, upload.ContentType, upload.Data)
		if err != nil {
			s.logger.WarnContext(ctx, "archive upload failed", "file", upload.Filename, "error", err)
		} else {
			objectKey = key
		}
	}

	if s.events != nil {
		payload := types.PredictionCompletedPayload{
			FileName:   upload.Filename,
			Status:     result.Status,
			ObjectKey:  objectKey,
			ReceivedAt: receivedAt,
			Prediction: result.Prediction,
		}
		if _, err := s.events.PublishEvent(ctx, s.channel, types.EventPredictionCompleted, payload); err != nil {
			s.logger.WarnContext(ctx, "publish prediction event failed", "error", err)
		}
	}

	return result, nil
}
