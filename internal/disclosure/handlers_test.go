package disclosure

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medishare/recordvault/internal/identity"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

func newHandlerFixture(t *testing.T) (*engineFixture, *mux.Router) {
	t.Helper()

	f := newEngineFixture(t, true)
	handlers := NewHandlers(f.engine, f.subjects, logger.New("test", "error"))

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return f, router
}

func asPrincipal(r *http.Request, subjectID string, role types.Role) *http.Request {
	ctx := identity.WithPrincipal(r.Context(), identity.Principal{SubjectID: subjectID, Role: role})
	return r.WithContext(ctx)
}

func multipartUpload(t *testing.T, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("report", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestHandlers_Upload(t *testing.T) {
	f, router := newHandlerFixture(t)

	f.locator.On("Store", mock.Anything, mock.Anything).Return("ipfs://QmTestCID", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.anchor.On("Anchor", mock.Anything, "patient-1", mock.Anything).
		Return(&types.AnchorReceipt{TxID: "0xbeef", AnchoredAt: f.now}, nil)
	f.reports.On("SetAnchorReceipt", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body, contentType := multipartUpload(t, "bloodwork.pdf", []byte("results"))
	req := httptest.NewRequest(http.MethodPost, "/reports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var result types.UploadResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.NotEmpty(t, result.ReportID)
	assert.NotEmpty(t, result.ContentHash)
}

func TestHandlers_Upload_DoctorForbidden(t *testing.T) {
	_, router := newHandlerFixture(t)

	body, contentType := multipartUpload(t, "bloodwork.pdf", []byte("results"))
	req := httptest.NewRequest(http.MethodPost, "/reports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "doctor-1", types.RoleDoctor))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_Upload_MissingFile(t *testing.T) {
	_, router := newHandlerFixture(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_View(t *testing.T) {
	f, router := newHandlerFixture(t)
	report, blob := sealedReport(t, "patient-1", []byte("%PDF-1.4 results"))

	f.reports.On("GetByID", mock.Anything, "report-1").Return(report, nil)
	f.locator.On("Retrieve", mock.Anything, report.Locator).Return(blob, nil)

	req := httptest.NewRequest(http.MethodGet, "/reports/report-1/content", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("%PDF-1.4 results"), rec.Body.Bytes())
}

func TestHandlers_View_Denied(t *testing.T) {
	f, router := newHandlerFixture(t)

	f.reports.On("GetByID", mock.Anything, "missing").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "report not found"))

	req := httptest.NewRequest(http.MethodGet, "/reports/missing/content", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "doctor-1", types.RoleDoctor))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_Share_ByDoctorEmail(t *testing.T) {
	f, router := newHandlerFixture(t)
	report, _ := sealedReport(t, "patient-1", []byte("results"))

	f.reports.On("GetByID", mock.Anything, "report-1").Return(report, nil)
	f.subjects.On("FindDoctorByEmail", mock.Anything, "doc@example.com").
		Return(&types.Subject{ID: "doctor-1", Role: types.RoleDoctor}, nil)
	f.subjects.On("GetByID", mock.Anything, "doctor-1").
		Return(&types.Subject{ID: "doctor-1", Role: types.RoleDoctor}, nil)
	f.grants.On("Create", mock.Anything, mock.Anything).Return(nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"doctor_email":   "doc@example.com",
		"duration_hours": 48,
	})
	req := httptest.NewRequest(http.MethodPost, "/reports/report-1/share", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var result types.ShareResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.NotEmpty(t, result.GrantID)
	require.NotNil(t, result.ExpiresAt)
	assert.True(t, result.ExpiresAt.Equal(f.now.Add(48*time.Hour)))
}

func TestHandlers_Share_DuplicateConflict(t *testing.T) {
	f, router := newHandlerFixture(t)
	report, _ := sealedReport(t, "patient-1", []byte("results"))

	f.reports.On("GetByID", mock.Anything, "report-1").Return(report, nil)
	f.subjects.On("GetByID", mock.Anything, "doctor-1").
		Return(&types.Subject{ID: "doctor-1", Role: types.RoleDoctor}, nil)
	f.grants.On("Create", mock.Anything, mock.Anything).
		Return(types.NewConflictError(types.ErrCodeDuplicateGrant, "an active grant already exists for this doctor"))

	payload, _ := json.Marshal(map[string]interface{}{
		"doctor_id":      "doctor-1",
		"duration_hours": 24,
	})
	req := httptest.NewRequest(http.MethodPost, "/reports/report-1/share", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_Share_MissingTarget(t *testing.T) {
	_, router := newHandlerFixture(t)

	payload, _ := json.Marshal(map[string]interface{}{"duration_hours": 24})
	req := httptest.NewRequest(http.MethodPost, "/reports/report-1/share", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Revoke_AlreadyRevoked(t *testing.T) {
	f, router := newHandlerFixture(t)
	report, _ := sealedReport(t, "patient-1", []byte("results"))

	revokedAt := f.now.Add(-time.Hour)
	grant := activeGrant(f)
	grant.RevokedAt = &revokedAt

	f.reports.On("GetByID", mock.Anything, "report-1").Return(report, nil)
	f.grants.On("GetLatest", mock.Anything, "report-1", "doctor-1").Return(grant, nil)

	payload, _ := json.Marshal(map[string]string{"doctor_id": "doctor-1"})
	req := httptest.NewRequest(http.MethodPost, "/reports/report-1/revoke", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_Annotation_RoundTrip(t *testing.T) {
	f, router := newHandlerFixture(t)
	grant := activeGrant(f)

	f.grants.On("GetActive", mock.Anything, "report-1", "doctor-1", f.now).Return(grant, nil)
	f.grants.On("SetAnnotation", mock.Anything, grant.ID, "elevated troponin", f.now).Return(nil)

	payload, _ := json.Marshal(map[string]string{"text": "elevated troponin"})
	req := httptest.NewRequest(http.MethodPut, "/reports/report-1/annotation", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "doctor-1", types.RoleDoctor))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_Annotation_PatientCannotWrite(t *testing.T) {
	_, router := newHandlerFixture(t)

	payload, _ := json.Marshal(map[string]string{"text": "self diagnosis"})
	req := httptest.NewRequest(http.MethodPut, "/reports/report-1/annotation", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asPrincipal(req, "patient-1", types.RolePatient))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_Unauthenticated(t *testing.T) {
	_, router := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", detectMimeType("scan.pdf", nil))
	assert.Equal(t, "text/plain; charset=utf-8", detectMimeType("notes.bin", []byte("plain text content")))
}
