package disclosure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medishare/recordvault/internal/identity"
	"github.com/medishare/recordvault/pkg/interfaces"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// maxUploadSize caps a report upload at 32 MiB
const maxUploadSize = 32 << 20

// Handlers exposes the disclosure engine over HTTP. All routes require an
// authenticated principal injected by the identity middleware.
type Handlers struct {
	engine    *Engine
	directory interfaces.SubjectDirectory
	logger    *logger.Logger
}

// NewHandlers creates HTTP handlers for the disclosure engine
func NewHandlers(engine *Engine, directory interfaces.SubjectDirectory, log *logger.Logger) *Handlers {
	return &Handlers{
		engine:    engine,
		directory: directory,
		logger:    log.WithComponent("disclosure-handlers"),
	}
}

// RegisterRoutes registers disclosure routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reports", h.Upload).Methods("POST")
	router.HandleFunc("/reports", h.ListReports).Methods("GET")
	router.HandleFunc("/doctor/reports", h.ListAccessible).Methods("GET")
	router.HandleFunc("/reports/{id}/content", h.View).Methods("GET")
	router.HandleFunc("/reports/{id}/share", h.Share).Methods("POST")
	router.HandleFunc("/reports/{id}/revoke", h.Revoke).Methods("POST")
	router.HandleFunc("/reports/{id}/annotation", h.AddAnnotation).Methods("PUT")
	router.HandleFunc("/reports/{id}/annotation", h.GetAnnotation).Methods("GET")
}

// Upload handles POST /reports with a multipart "report" file field
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}
	if principal.Role != types.RolePatient {
		h.writeError(w, types.NewAccessDeniedError(types.ErrCodeReportInaccessible, "only patients can upload reports"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "invalid multipart request"))
		return
	}

	file, header, err := r.FormFile("report")
	if err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "report file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "failed to read report file"))
		return
	}

	result, err := h.engine.Upload(r.Context(), principal.SubjectID, header.Filename, data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// ListReports handles GET /reports for the owner's dashboard
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	reports, err := h.engine.ListReports(r.Context(), principal.SubjectID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// ListAccessible handles GET /doctor/reports for the doctor's dashboard
func (h *Handlers) ListAccessible(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}
	if principal.Role != types.RoleDoctor {
		h.writeError(w, types.NewAccessDeniedError(types.ErrCodeReportInaccessible, "only doctors have an accessible reports list"))
		return
	}

	reports, err := h.engine.ListAccessibleReports(r.Context(), principal.SubjectID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// View handles GET /reports/{id}/content and streams the decrypted payload
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	reportID := mux.Vars(r)["id"]
	content, err := h.engine.View(r.Context(), principal.SubjectID, principal.Role, reportID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", content.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		h.logger.Error("Failed to stream report content", "report_id", reportID, "error", err)
	}
}

type shareRequest struct {
	DoctorID      string `json:"doctor_id,omitempty"`
	DoctorEmail   string `json:"doctor_email,omitempty"`
	DurationHours int    `json:"duration_hours"`
}

// Share handles POST /reports/{id}/share. The doctor may be addressed by id
// or by email; email lookup only ever matches doctor accounts.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	doctorID := req.DoctorID
	if doctorID == "" {
		if req.DoctorEmail == "" {
			h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "doctor_id or doctor_email is required"))
			return
		}
		doctor, err := h.directory.FindDoctorByEmail(r.Context(), req.DoctorEmail)
		if err != nil {
			h.writeError(w, err)
			return
		}
		doctorID = doctor.ID
	}

	reportID := mux.Vars(r)["id"]
	result, err := h.engine.Share(r.Context(), principal.SubjectID, reportID, doctorID, time.Duration(req.DurationHours)*time.Hour)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

type revokeRequest struct {
	DoctorID string `json:"doctor_id"`
}

// Revoke handles POST /reports/{id}/revoke
func (h *Handlers) Revoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DoctorID == "" {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "doctor_id is required"))
		return
	}

	reportID := mux.Vars(r)["id"]
	result, err := h.engine.Revoke(r.Context(), principal.SubjectID, reportID, req.DoctorID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type annotationRequest struct {
	Text string `json:"text"`
}

// AddAnnotation handles PUT /reports/{id}/annotation for doctors
func (h *Handlers) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}
	if principal.Role != types.RoleDoctor {
		h.writeError(w, types.NewAccessDeniedError(types.ErrCodeReportInaccessible, "only doctors can annotate reports"))
		return
	}

	var req annotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	reportID := mux.Vars(r)["id"]
	at, err := h.engine.AddAnnotation(r.Context(), principal.SubjectID, reportID, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"report_id":    reportID,
		"annotated_at": at.Format(time.RFC3339),
	})
}

// GetAnnotation handles GET /reports/{id}/annotation
func (h *Handlers) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	reportID := mux.Vars(r)["id"]
	annotation, err := h.engine.GetAnnotation(r.Context(), principal.SubjectID, principal.Role, reportID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"report_id":  reportID,
		"annotation": annotation,
	})
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
