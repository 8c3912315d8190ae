package interfaces

import (
	"context"
	"time"

	"github.com/medishare/recordvault/pkg/types"
)

// LocatorClient stores and retrieves opaque encrypted blobs in
// content-addressed storage. Failures surface as storage_unavailable.
type LocatorClient interface {
	Store(ctx context.Context, blob []byte) (string, error)
	Retrieve(ctx context.Context, locator string) ([]byte, error)
}

// AnchorClient commits a report's content hash to an immutable ledger under
// the owner's identity. Failures surface as anchor_unavailable.
type AnchorClient interface {
	Anchor(ctx context.Context, ownerID, contentHash string) (*types.AnchorReceipt, error)
}

// ReportStore is the durable custody record of every uploaded report
type ReportStore interface {
	Create(ctx context.Context, report *types.Report) error
	GetByID(ctx context.Context, reportID string) (*types.Report, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*types.ReportSummary, error)
	SetAnchorReceipt(ctx context.Context, reportID string, receipt *types.AnchorReceipt) error
	// Delete removes a custody record that failed strict anchoring.
	// Committed reports are never deleted.
	Delete(ctx context.Context, reportID string) error
}

// GrantStore is the durable disclosure ledger. Implementations must enforce
// the at-most-one-active-grant constraint per (report, doctor) pair at the
// store layer, and apply revocation and annotation with conditional writes
// so racing mutations cannot both succeed.
type GrantStore interface {
	Create(ctx context.Context, grant *types.DisclosureGrant) error
	GetActive(ctx context.Context, reportID, doctorID string, now time.Time) (*types.DisclosureGrant, error)
	GetLatest(ctx context.Context, reportID, doctorID string) (*types.DisclosureGrant, error)
	Revoke(ctx context.Context, grantID string, at time.Time) error
	SetAnnotation(ctx context.Context, grantID, text string, at time.Time) error
	LatestAnnotation(ctx context.Context, reportID string) (*string, error)
	ListAccessible(ctx context.Context, doctorID string, now time.Time) ([]*types.AccessibleReport, error)
}

// SubjectDirectory resolves verified principals for authorization decisions
type SubjectDirectory interface {
	GetByID(ctx context.Context, subjectID string) (*types.Subject, error)
	FindDoctorByEmail(ctx context.Context, email string) (*types.Subject, error)
}
