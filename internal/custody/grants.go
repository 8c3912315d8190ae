package custody

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// GrantRepository is the durable disclosure ledger. Grant exclusivity is
// enforced by the partial unique index on (report_id, doctor_id) for active
// rows, so a racing share loses with a unique violation rather than
// defeating a check-then-act. Revocation and annotation are conditional
// updates: two concurrent revokes yield one success and one already_revoked.
type GrantRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *sql.DB, log *logger.Logger) *GrantRepository {
	return &GrantRepository{
		db:     db,
		logger: log.WithComponent("disclosure-ledger"),
	}
}

const grantColumns = `id, report_id, owner_id, doctor_id, granted_at, expires_at, revoked_at, annotation, annotated_at, status`

// Create inserts a new grant. Any active-but-expired row for the pair is
// closed first in the same transaction so the unique index only ever sees
// genuinely active grants.
func (r *GrantRepository) Create(ctx context.Context, grant *types.DisclosureGrant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	closeExpired := `
		UPDATE disclosure_grants
		SET status = 'expired'
		WHERE report_id = $1 AND doctor_id = $2 AND status = 'active'
		  AND expires_at IS NOT NULL AND expires_at <= $3`

	if _, err := tx.ExecContext(ctx, closeExpired, grant.ReportID, grant.DoctorID, grant.GrantedAt); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to close expired grants", err)
	}

	insert := `
		INSERT INTO disclosure_grants (id, report_id, owner_id, doctor_id, granted_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'active')`

	_, err = tx.ExecContext(ctx, insert,
		grant.ID,
		grant.ReportID,
		grant.OwnerID,
		grant.DoctorID,
		grant.GrantedAt,
		grant.ExpiresAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError(types.ErrCodeDuplicateGrant, "an active grant already exists for this doctor")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create grant", err)
	}

	if err := tx.Commit(); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError(types.ErrCodeDuplicateGrant, "an active grant already exists for this doctor")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to commit grant", err)
	}

	grant.Status = types.GrantStatusActive
	r.logger.Info("Disclosure grant created", "grant_id", grant.ID, "report_id", grant.ReportID, "doctor_id", grant.DoctorID)
	return nil
}

// GetActive returns the grant currently authorizing the doctor for the
// report, or nil when none exists. The check always reads committed state;
// expiry is evaluated against the caller's clock, not a stale status column.
func (r *GrantRepository) GetActive(ctx context.Context, reportID, doctorID string, now time.Time) (*types.DisclosureGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM disclosure_grants
		WHERE report_id = $1 AND doctor_id = $2 AND status = 'active'
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)`

	grant, err := r.scanGrant(r.db.QueryRowContext(ctx, query, reportID, doctorID, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to get active grant", err)
	}
	return grant, nil
}

// GetLatest returns the most recent grant for the pair regardless of state,
// or nil when the report was never shared with the doctor
func (r *GrantRepository) GetLatest(ctx context.Context, reportID, doctorID string) (*types.DisclosureGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM disclosure_grants
		WHERE report_id = $1 AND doctor_id = $2
		ORDER BY granted_at DESC
		LIMIT 1`

	grant, err := r.scanGrant(r.db.QueryRowContext(ctx, query, reportID, doctorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to get grant", err)
	}
	return grant, nil
}

// Revoke marks the grant revoked. revoked_at is written once; a grant
// already revoked reports already_revoked rather than silent success.
func (r *GrantRepository) Revoke(ctx context.Context, grantID string, at time.Time) error {
	query := `
		UPDATE disclosure_grants
		SET revoked_at = $2, status = 'revoked'
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, grantID, at)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to revoke grant", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to revoke grant", err)
	}
	if affected == 0 {
		return types.NewAlreadyRevokedError(types.ErrCodeAlreadyRevoked, "grant is already revoked")
	}

	r.logger.Info("Disclosure grant revoked", "grant_id", grantID)
	return nil
}

// SetAnnotation writes the clinical annotation. The WHERE clause re-checks
// grant activity so an annotation cannot land after a racing revoke or past
// expiry; losing the race reports access_denied.
func (r *GrantRepository) SetAnnotation(ctx context.Context, grantID, text string, at time.Time) error {
	query := `
		UPDATE disclosure_grants
		SET annotation = $2, annotated_at = $3
		WHERE id = $1 AND status = 'active' AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)`

	result, err := r.db.ExecContext(ctx, query, grantID, text, at)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to write annotation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to write annotation", err)
	}
	if affected == 0 {
		return types.NewAccessDeniedError(types.ErrCodeReportInaccessible, "report not accessible")
	}

	return nil
}

// LatestAnnotation returns the most recently written annotation across all
// of the report's grants; nil means no doctor has annotated it yet
func (r *GrantRepository) LatestAnnotation(ctx context.Context, reportID string) (*string, error) {
	query := `
		SELECT annotation
		FROM disclosure_grants
		WHERE report_id = $1 AND annotation IS NOT NULL
		ORDER BY annotated_at DESC
		LIMIT 1`

	var annotation *string
	err := r.db.QueryRowContext(ctx, query, reportID).Scan(&annotation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read annotation", err)
	}
	return annotation, nil
}

// ListAccessible lists the doctor's currently active grants joined with
// report and owner metadata
func (r *GrantRepository) ListAccessible(ctx context.Context, doctorID string, now time.Time) ([]*types.AccessibleReport, error) {
	query := `
		SELECT g.id, g.report_id, rp.file_name, rp.content_hash,
		       rp.owner_id, s.name, s.email, g.granted_at, g.expires_at
		FROM disclosure_grants g
		JOIN reports rp ON rp.id = g.report_id
		JOIN subjects s ON s.id = rp.owner_id
		WHERE g.doctor_id = $1 AND g.status = 'active'
		  AND g.revoked_at IS NULL
		  AND (g.expires_at IS NULL OR g.expires_at > $2)
		ORDER BY g.granted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, doctorID, now)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list accessible reports", err)
	}
	defer rows.Close()

	var accessible []*types.AccessibleReport
	for rows.Next() {
		var a types.AccessibleReport
		err := rows.Scan(
			&a.GrantID,
			&a.ReportID,
			&a.FileName,
			&a.ContentHash,
			&a.OwnerID,
			&a.OwnerName,
			&a.OwnerEmail,
			&a.GrantedAt,
			&a.ExpiresAt,
		)
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to scan grant row", err)
		}
		accessible = append(accessible, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "error iterating grant rows", err)
	}

	return accessible, nil
}

// scanGrant scans one grant row
func (r *GrantRepository) scanGrant(row *sql.Row) (*types.DisclosureGrant, error) {
	var g types.DisclosureGrant
	err := row.Scan(
		&g.ID,
		&g.ReportID,
		&g.OwnerID,
		&g.DoctorID,
		&g.GrantedAt,
		&g.ExpiresAt,
		&g.RevokedAt,
		&g.Annotation,
		&g.AnnotatedAt,
		&g.Status,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
