package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// Handlers handles HTTP requests for registration and login
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates new identity HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers identity routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// Register handles subject registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input RegistrationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "invalid JSON payload"))
		return
	}

	subject, err := h.service.Register(r.Context(), &input)
	if err != nil {
		h.logger.Error("Registration failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, subject)
}

// Login handles credential verification and token issuance
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "invalid JSON payload"))
		return
	}

	token, err := h.service.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, token)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	kind := types.KindOf(err)
	code := types.ErrCodeInternalError
	message := "internal error"

	var structured *types.Error
	if errors.As(err, &structured) {
		code = structured.Code
		message = structured.Message
	}

	h.writeJSON(w, types.HTTPStatus(kind), map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
