package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cropscan/apiserver/internal/services"
	"github.com/cropscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const msgScanFieldsRequired = "disease, confidence, and severity are required"

// ScanHandler serves the scan history endpoints.
type ScanHandler struct {
	scanService *services.ScanService
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewScanHandler constructs a ScanHandler with the provided dependencies.
func NewScanHandler(scanService *services.ScanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
		validate:    newValidator(),
		logger:      loggerOrDefault(logger),
	}
}

// ScanRouter registers scan history routes. clearGuard wraps the DELETE route.
func ScanRouter(r chi.Router, scanService *services.ScanService, clearGuard func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewScanHandler(scanService, logger)

	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	if clearGuard != nil {
		r.With(clearGuard).Delete("/", handler.Clear)
	} else {
		r.Delete("/", handler.Clear)
	}
}

// CreateScanRequest is the payload for recording a prediction.
type CreateScanRequest struct {
	FileName   string     `json:"fileName"`
	Disease    string     `json:"disease" validate:"notblank"`
	Confidence string     `json:"confidence" validate:"notblank"`
	Severity   string     `json:"severity" validate:"notblank"`
	Treatment  string     `json:"treatment"`
	CreatedAt  *time.Time `json:"createdAt"`
}

// ClearScansResponse reports how many records a clear removed.
type ClearScansResponse struct {
	Deleted int64 `json:"deleted"`
}

// List returns the most recent scans, newest first.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	scans, err := h.scanService.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list scans", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}

	writeJSON(w, http.StatusOK, scans)
}

// Create validates and stores a scan record.
func (h *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, msgScanFieldsRequired)
		return
	}

	scan := types.ScanHistory{
		FileName:   req.FileName,
		Disease:    req.Disease,
		Confidence: req.Confidence,
		Severity:   req.Severity,
		Treatment:  req.Treatment,
	}
	if req.CreatedAt != nil {
		scan.CreatedAt = *req.CreatedAt
	}

	created, err := h.scanService.Create(r.Context(), scan)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create scan", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create scan")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// Clear deletes the whole history.
func (h *ScanHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.scanService.Clear(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "clear scans", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear scans")
		return
	}

	h.logger.InfoContext(r.Context(), "scan history cleared", "deleted", deleted, "admin", adminSubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, ClearScansResponse{Deleted: deleted})
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}
