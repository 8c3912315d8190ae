package disclosure

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medishare/recordvault/pkg/crypto"
	"github.com/medishare/recordvault/pkg/interfaces"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/monitoring"
	"github.com/medishare/recordvault/pkg/types"
)

// anchorTimeout bounds a best-effort anchor attempt running detached from
// the originating request
const anchorTimeout = 30 * time.Second

// Engine orchestrates the report custody and disclosure lifecycle: upload,
// share, revoke, view and annotate. All collaborators are injected so the
// engine owns no global state and no connection handling.
type Engine struct {
	reports  interfaces.ReportStore
	grants   interfaces.GrantStore
	subjects interfaces.SubjectDirectory
	locator  interfaces.LocatorClient
	anchor   interfaces.AnchorClient

	// strictAnchor makes anchoring failures fatal to uploads; the default
	// is the best-effort policy where anchoring runs detached and a failure
	// only leaves the receipt empty
	strictAnchor bool

	logger *logger.Logger
	now    func() time.Time
}

// NewEngine creates a new disclosure engine
func NewEngine(
	reports interfaces.ReportStore,
	grants interfaces.GrantStore,
	subjects interfaces.SubjectDirectory,
	locator interfaces.LocatorClient,
	anchor interfaces.AnchorClient,
	strictAnchor bool,
	log *logger.Logger,
) *Engine {
	return &Engine{
		reports:      reports,
		grants:       grants,
		subjects:     subjects,
		locator:      locator,
		anchor:       anchor,
		strictAnchor: strictAnchor,
		logger:       log.WithComponent("disclosure-engine"),
		now:          time.Now,
	}
}

// Upload encrypts the file with a fresh per-report key, stores the
// ciphertext, derives the content hash from the locator and persists the
// custody record. Anchoring follows the configured policy.
func (e *Engine) Upload(ctx context.Context, ownerID, fileName string, data []byte) (*types.UploadResult, error) {
	if len(data) == 0 {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "file is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "file name is required")
	}

	key, err := crypto.NewReportKey()
	if err != nil {
		monitoring.RecordUpload(false)
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to generate report key", err)
	}

	blob, err := crypto.Seal(data, key)
	if err != nil {
		monitoring.RecordUpload(false)
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to encrypt report", err)
	}

	// The locator call is a network round trip; no store lock is held here
	locator, err := e.locator.Store(ctx, blob)
	if err != nil {
		monitoring.RecordUpload(false)
		return nil, err
	}

	report := &types.Report{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		FileName:      fileName,
		Locator:       locator,
		EncryptionKey: key,
		ContentHash:   crypto.LocatorDigest(locator),
		UploadedAt:    e.now(),
	}

	if err := e.reports.Create(ctx, report); err != nil {
		monitoring.RecordUpload(false)
		return nil, err
	}

	if e.strictAnchor {
		if err := e.anchorNow(ctx, report); err != nil {
			// No orphan custody row: the record is rolled back and the
			// unreferenced ciphertext stays undecryptable.
			if delErr := e.reports.Delete(ctx, report.ID); delErr != nil {
				e.logger.Error("Failed to roll back custody record", "report_id", report.ID, "error", delErr)
			}
			monitoring.RecordUpload(false)
			return nil, err
		}
	} else {
		go e.anchorDetached(report)
	}

	monitoring.RecordUpload(true)
	e.logger.Audit(ownerID, "upload_report", report.ID, true)

	return &types.UploadResult{
		ReportID:    report.ID,
		ContentHash: report.ContentHash,
	}, nil
}

// anchorNow submits the hash synchronously and records the receipt
func (e *Engine) anchorNow(ctx context.Context, report *types.Report) error {
	start := e.now()
	receipt, err := e.anchor.Anchor(ctx, report.OwnerID, report.ContentHash)
	monitoring.RecordAnchor(err == nil, time.Since(start))
	if err != nil {
		return err
	}
	return e.reports.SetAnchorReceipt(ctx, report.ID, receipt)
}

// anchorDetached runs the best-effort anchor attempt outside the request
// lifetime. A failure is logged and leaves the receipt empty; the report
// stays usable.
func (e *Engine) anchorDetached(report *types.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), anchorTimeout)
	defer cancel()

	if err := e.anchorNow(ctx, report); err != nil {
		e.logger.Error("Best-effort anchoring failed", "report_id", report.ID, "content_hash", report.ContentHash, "error", err)
	}
}

// ListReports lists the owner's reports
func (e *Engine) ListReports(ctx context.Context, ownerID string) ([]*types.ReportSummary, error) {
	return e.reports.ListByOwner(ctx, ownerID)
}

// View returns the decrypted report content for an authorized requester: the
// owner always, a doctor only while a grant is active. The grant check reads
// the latest committed ledger state, so a revoke that commits first blocks
// the view. Denials are uniform: a missing report and an unauthorized one
// are indistinguishable to the caller.
func (e *Engine) View(ctx context.Context, requesterID string, role types.Role, reportID string) (*types.ReportContent, error) {
	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		if types.KindOf(err) == types.ErrorKindNotFound {
			return nil, e.deny(requesterID, role, reportID, "view")
		}
		return nil, err
	}

	switch role {
	case types.RolePatient:
		if report.OwnerID != requesterID {
			return nil, e.deny(requesterID, role, reportID, "view")
		}
	case types.RoleDoctor:
		grant, err := e.grants.GetActive(ctx, reportID, requesterID, e.now())
		if err != nil {
			return nil, err
		}
		if grant == nil {
			return nil, e.deny(requesterID, role, reportID, "view")
		}
	default:
		return nil, e.deny(requesterID, role, reportID, "view")
	}

	blob, err := e.locator.Retrieve(ctx, report.Locator)
	if err != nil {
		return nil, err
	}

	// Fails closed on tampering or key mismatch; plaintext only ever lives
	// in this request-scoped buffer
	plaintext, err := crypto.Open(blob, report.EncryptionKey)
	if err != nil {
		return nil, err
	}

	monitoring.RecordAccess(string(role), true)
	e.logger.ReportAccess(requesterID, string(role), reportID, "view", true)

	return &types.ReportContent{
		FileName: report.FileName,
		MimeType: detectMimeType(report.FileName, plaintext),
		Data:     plaintext,
	}, nil
}

// Share creates a new time-boxed disclosure grant for a doctor. At most one
// active grant may exist per (report, doctor) pair; the store enforces this
// and a duplicate share surfaces as conflict.
func (e *Engine) Share(ctx context.Context, ownerID, reportID, doctorID string, duration time.Duration) (*types.ShareResult, error) {
	if duration <= 0 {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "share duration must be positive")
	}

	report, err := e.ownedReport(ctx, ownerID, reportID)
	if err != nil {
		monitoring.RecordGrantOperation("share", false)
		return nil, err
	}

	doctor, err := e.subjects.GetByID(ctx, doctorID)
	if err != nil || doctor.Role != types.RoleDoctor {
		monitoring.RecordGrantOperation("share", false)
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "doctor not found")
	}

	now := e.now()
	expiresAt := now.Add(duration)
	grant := &types.DisclosureGrant{
		ID:        uuid.New().String(),
		ReportID:  report.ID,
		OwnerID:   ownerID,
		DoctorID:  doctor.ID,
		GrantedAt: now,
		ExpiresAt: &expiresAt,
	}

	if err := e.grants.Create(ctx, grant); err != nil {
		monitoring.RecordGrantOperation("share", false)
		return nil, err
	}

	monitoring.RecordGrantOperation("share", true)
	e.logger.Audit(ownerID, "share_report", report.ID, true)

	return &types.ShareResult{
		GrantID:   grant.ID,
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Revoke permanently revokes the doctor's grant. A second revoke reports
// already_revoked so callers can tell a no-op from a new revocation.
func (e *Engine) Revoke(ctx context.Context, ownerID, reportID, doctorID string) (*types.RevokeResult, error) {
	if _, err := e.ownedReport(ctx, ownerID, reportID); err != nil {
		monitoring.RecordGrantOperation("revoke", false)
		return nil, err
	}

	grant, err := e.grants.GetLatest(ctx, reportID, doctorID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		monitoring.RecordGrantOperation("revoke", false)
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "grant not found")
	}
	if grant.RevokedAt != nil {
		monitoring.RecordGrantOperation("revoke", false)
		return nil, types.NewAlreadyRevokedError(types.ErrCodeAlreadyRevoked, "grant is already revoked")
	}

	at := e.now()
	if err := e.grants.Revoke(ctx, grant.ID, at); err != nil {
		monitoring.RecordGrantOperation("revoke", false)
		return nil, err
	}

	monitoring.RecordGrantOperation("revoke", true)
	e.logger.Audit(ownerID, "revoke_grant", grant.ID, true)

	return &types.RevokeResult{
		GrantID:   grant.ID,
		RevokedAt: at,
	}, nil
}

// ListAccessibleReports lists the reports currently disclosed to the doctor
func (e *Engine) ListAccessibleReports(ctx context.Context, doctorID string) ([]*types.AccessibleReport, error) {
	return e.grants.ListAccessible(ctx, doctorID, e.now())
}

// AddAnnotation writes or overwrites the doctor's clinical annotation on an
// active grant. The store re-checks activity on write, so an annotation
// cannot land after a racing revoke.
func (e *Engine) AddAnnotation(ctx context.Context, doctorID, reportID, text string) (time.Time, error) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "annotation text is required")
	}

	grant, err := e.grants.GetActive(ctx, reportID, doctorID, e.now())
	if err != nil {
		return time.Time{}, err
	}
	if grant == nil {
		monitoring.RecordGrantOperation("annotate", false)
		return time.Time{}, e.deny(doctorID, types.RoleDoctor, reportID, "annotate")
	}

	at := e.now()
	if err := e.grants.SetAnnotation(ctx, grant.ID, text, at); err != nil {
		monitoring.RecordGrantOperation("annotate", false)
		return time.Time{}, err
	}

	monitoring.RecordGrantOperation("annotate", true)
	e.logger.Audit(doctorID, "annotate_report", reportID, true)
	return at, nil
}

// GetAnnotation returns the annotation visible to the requester: the owner
// sees the most recently written annotation, a doctor sees the one on their
// own active grant. A nil result means "not yet annotated" and is not an
// error.
func (e *Engine) GetAnnotation(ctx context.Context, requesterID string, role types.Role, reportID string) (*string, error) {
	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		if types.KindOf(err) == types.ErrorKindNotFound {
			return nil, e.deny(requesterID, role, reportID, "read_annotation")
		}
		return nil, err
	}

	switch role {
	case types.RolePatient:
		if report.OwnerID != requesterID {
			return nil, e.deny(requesterID, role, reportID, "read_annotation")
		}
		return e.grants.LatestAnnotation(ctx, reportID)
	case types.RoleDoctor:
		grant, err := e.grants.GetActive(ctx, reportID, requesterID, e.now())
		if err != nil {
			return nil, err
		}
		if grant == nil {
			return nil, e.deny(requesterID, role, reportID, "read_annotation")
		}
		return grant.Annotation, nil
	default:
		return nil, e.deny(requesterID, role, reportID, "read_annotation")
	}
}

// ownedReport loads a report for an owner-side mutation. Unlike the view
// path, the owner dashboard may learn that a report id does not belong to
// them, so this reports not_found.
func (e *Engine) ownedReport(ctx context.Context, ownerID, reportID string) (*types.Report, error) {
	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.OwnerID != ownerID {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "report not found")
	}
	return report, nil
}

// deny records the denied access and returns the uniform denial error
func (e *Engine) deny(requesterID string, role types.Role, reportID, action string) error {
	monitoring.RecordAccess(string(role), false)
	e.logger.ReportAccess(requesterID, string(role), reportID, action, false)
	return types.NewAccessDeniedError(types.ErrCodeReportInaccessible, "report not accessible")
}
