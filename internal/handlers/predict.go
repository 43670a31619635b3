package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cropscan/apiserver/internal/inference"
	"github.com/cropscan/apiserver/internal/metrics"
	"github.com/cropscan/apiserver/internal/services"
	"github.com/cropscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const (
	formFieldFile = "file"
	// multipartOverhead leaves room for boundaries and part headers around the file.
	multipartOverhead  = 1 << 20
	multipartMemoryMax = 32 << 20
)

const (
	msgNoFile           = "No file uploaded"
	msgUnreadableFile   = "Unable to read uploaded file"
	msgAIUnavailable    = "AI service is unavailable"
	msgAIInvalid        = "AI service returned an invalid response"
	msgAINonJSON        = "AI service returned non-JSON response"
	msgRateLimitReached = "rate limit exceeded"
)

// PredictionHandler relays uploaded images to the inference service.
type PredictionHandler struct {
	service        *services.PredictionService
	maxUploadBytes int64
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewPredictionHandler constructs a PredictionHandler. m may be nil.
func NewPredictionHandler(service *services.PredictionService, maxUploadBytes int64, m *metrics.Metrics, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		metrics:        m,
		logger:         loggerOrDefault(logger),
	}
}

// PredictRouter registers the relay route, optionally behind a rate limiter.
func PredictRouter(r chi.Router, handler *PredictionHandler, limit float64, burst int) {
	r.With(RateLimit(limit, burst)).Post("/", handler.Predict)
}

// Predict forwards the "file" part upstream and relays the JSON answer.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	upload, status, message := h.readUpload(w, r)
	if status != 0 {
		writeError(w, status, message)
		return
	}

	result, err := h.service.Predict(r.Context(), upload)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.metrics.ObserveInference(metrics.OutcomeOK)
	writeJSON(w, result.Status, result.Prediction)
}

func (h *PredictionHandler) readUpload(w http.ResponseWriter, r *http.Request) (types.Upload, int, string) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemoryMax); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return types.Upload{}, http.StatusBadRequest, msgNoFile
		}
		return types.Upload{}, http.StatusBadRequest, msgUnreadableFile
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return types.Upload{}, http.StatusBadRequest, msgNoFile
		}
		return types.Upload{}, http.StatusBadRequest, msgUnreadableFile
	}
	defer file.Close()

	if header.Size == 0 {
		return types.Upload{}, http.StatusBadRequest, msgNoFile
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return types.Upload{}, http.StatusBadRequest, msgUnreadableFile
	}

	var reader io.Reader = file
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		h.logger.WarnContext(r.Context(), "read uploaded file", "error", err)
		return types.Upload{}, http.StatusBadRequest, msgUnreadableFile
	}
	if len(data) == 0 {
		return types.Upload{}, http.StatusBadRequest, msgNoFile
	}
	if h.maxUploadBytes > 0 && int64(len(data)) > h.maxUploadBytes {
		return types.Upload{}, http.StatusBadRequest, msgUnreadableFile
	}

	return types.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, 0, ""
}

func (h *PredictionHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inference.ErrInvalidResponse):
		h.metrics.ObserveInference(metrics.OutcomeInvalid)
		h.logger.WarnContext(r.Context(), "inference returned invalid response", "error", err)
		writeError(w, http.StatusBadGateway, msgAIInvalid)
	case errors.Is(err, inference.ErrNonJSON):
		h.metrics.ObserveInference(metrics.OutcomeNonJSON)
		h.logger.WarnContext(r.Context(), "inference returned non-JSON response", "error", err)
		writeError(w, http.StatusBadGateway, msgAINonJSON)
	default:
		h.metrics.ObserveInference(metrics.OutcomeUnavailable)
		h.logger.WarnContext(r.Context(), "inference unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, msgAIUnavailable)
	}
}

// RateLimit applies a shared token bucket. A non-positive limit disables it.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(limit), burst)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, msgRateLimitReached)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
