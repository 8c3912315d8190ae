package custody

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/medishare/recordvault/pkg/crypto"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// ReportRepository is the durable custody store for uploaded reports.
// The per-report symmetric key is sealed with the service master key before
// it touches the database; rows are immutable after creation except for the
// anchor receipt.
type ReportRepository struct {
	db     *sql.DB
	keys   *crypto.KeyCipher
	logger *logger.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, keys *crypto.KeyCipher, log *logger.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		keys:   keys,
		logger: log.WithComponent("custody"),
	}
}

// Create persists a new custody record
func (r *ReportRepository) Create(ctx context.Context, report *types.Report) error {
	sealedKey, err := r.keys.SealKey(report.EncryptionKey)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to seal report key", err)
	}

	query := `
		INSERT INTO reports (id, owner_id, file_name, locator, encrypted_key, content_hash, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.OwnerID,
		report.FileName,
		report.Locator,
		sealedKey,
		report.ContentHash,
		report.UploadedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError(types.ErrCodeDuplicateHash, "content hash already recorded")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create custody record", err)
	}

	r.logger.Info("Custody record created", "report_id", report.ID, "content_hash", report.ContentHash)
	return nil
}

// GetByID retrieves a report with its unsealed encryption key
func (r *ReportRepository) GetByID(ctx context.Context, reportID string) (*types.Report, error) {
	query := `
		SELECT id, owner_id, file_name, locator, encrypted_key, content_hash,
		       COALESCE(anchor_tx, ''), anchored_at, uploaded_at
		FROM reports
		WHERE id = $1`

	var report types.Report
	var sealedKey []byte

	err := r.db.QueryRowContext(ctx, query, reportID).Scan(
		&report.ID,
		&report.OwnerID,
		&report.FileName,
		&report.Locator,
		&sealedKey,
		&report.ContentHash,
		&report.AnchorTx,
		&report.AnchoredAt,
		&report.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "report not found")
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to get report", err)
	}

	key, err := r.keys.OpenKey(sealedKey)
	if err != nil {
		return nil, types.NewCryptoFailureError(types.ErrCodeDecryptionFailed, "failed to unseal report key", err)
	}
	report.EncryptionKey = key

	return &report, nil
}

// ListByOwner lists the owner's reports without key material
func (r *ReportRepository) ListByOwner(ctx context.Context, ownerID string) ([]*types.ReportSummary, error) {
	query := `
		SELECT id, file_name, content_hash, COALESCE(anchor_tx, ''), anchored_at, uploaded_at
		FROM reports
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list reports", err)
	}
	defer rows.Close()

	var summaries []*types.ReportSummary
	for rows.Next() {
		var s types.ReportSummary
		if err := rows.Scan(&s.ID, &s.FileName, &s.ContentHash, &s.AnchorTx, &s.AnchoredAt, &s.UploadedAt); err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to scan report row", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "error iterating report rows", err)
	}

	return summaries, nil
}

// SetAnchorReceipt records the anchor proof once the ledger commit lands
func (r *ReportRepository) SetAnchorReceipt(ctx context.Context, reportID string, receipt *types.AnchorReceipt) error {
	query := `UPDATE reports SET anchor_tx = $2, anchored_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, reportID, receipt.TxID, receipt.AnchoredAt)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to record anchor receipt", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to record anchor receipt", err)
	}
	if affected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "report not found")
	}

	return nil
}

// Delete removes a custody record whose strict-mode anchoring failed.
// The orphaned ciphertext blob stays in content storage; without the key
// row it is undecryptable.
func (r *ReportRepository) Delete(ctx context.Context, reportID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to delete custody record", err)
	}
	r.logger.Warn("Custody record rolled back", "report_id", reportID)
	return nil
}
