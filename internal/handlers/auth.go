package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cropscan/apiserver/config"
	"github.com/cropscan/apiserver/internal/services"
	"github.com/cropscan/apiserver/internal/store"
	"github.com/cropscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgEmailExists       = "Email already exists"
	msgRegistered        = "User registered successfully"
	msgInvalidBody       = "Invalid request body"
	msgRegistrationError = "Registration failed"
)

// registerFields are decoded into RegisterRequest or reserved by the store.
var registerFields = map[string]struct{}{
	"id": {}, "_id": {}, "_class": {},
	"name": {}, "email": {}, "password": {}, "phone": {}, "location": {}, "role": {},
}

// AuthHandler serves account registration.
type AuthHandler struct {
	userService   *services.UserService
	strictStatus  bool
	hashPasswords bool
	logger        *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, cfg config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		strictStatus:  cfg.StrictRegisterStatus,
		hashPasswords: cfg.PasswordHashing,
		logger:        loggerOrDefault(logger),
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, cfg config.AuthConfig, logger *slog.Logger) {
	handler := NewAuthHandler(userService, cfg, logger)

	r.Post("/register", handler.Register)
}

// RegisterRequest is the registration payload. Any role sent by the client is ignored.
// Other top-level keys are kept in Extra and stored with the account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Role     string `json:"role"`

	Extra map[string]any `json:"-"`
}

func decodeRegisterRequest(body io.Reader) (RegisterRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return RegisterRequest{}, err
	}
	var req RegisterRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return RegisterRequest{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RegisterRequest{}, err
	}
	for key, value := range fields {
		if _, known := registerFields[strings.ToLower(key)]; known {
			continue
		}
		if req.Extra == nil {
			req.Extra = make(map[string]any)
		}
		req.Extra[key] = value
	}
	return req, nil
}

// Register creates a FARMER account unless the email is already taken.
// Both outcomes answer with plain text; existing clients match on the body.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRegisterRequest(r.Body)
	if err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if _, err := h.userService.GetByEmail(r.Context(), req.Email); err == nil {
		h.writeDuplicate(w)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.ErrorContext(r.Context(), "lookup user by email", "error", err)
		writeText(w, http.StatusInternalServerError, msgRegistrationError)
		return
	}

	password := req.Password
	if h.hashPasswords {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "hash password", "error", err)
			writeText(w, http.StatusInternalServerError, msgRegistrationError)
			return
		}
		password = string(hashed)
	}

	_, err = h.userService.Create(r.Context(), types.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: password,
		Phone:    req.Phone,
		Location: req.Location,
		Profile:  req.Extra,
	})
	if err != nil {
		// A concurrent registration can win between the lookup and the insert.
		if errors.Is(err, store.ErrDuplicate) {
			h.writeDuplicate(w)
			return
		}
		h.logger.ErrorContext(r.Context(), "create user", "error", err)
		writeText(w, http.StatusInternalServerError, msgRegistrationError)
		return
	}

	writeText(w, http.StatusOK, msgRegistered)
}

func (h *AuthHandler) writeDuplicate(w http.ResponseWriter) {
	status := http.StatusOK
	if h.strictStatus {
		status = http.StatusConflict
	}
	writeText(w, status, msgEmailExists)
}
