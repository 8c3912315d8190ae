package types

import "time"

// Report represents an uploaded, encrypted health report owned by one patient.
// The record is immutable after a successful upload; only disclosure grants
// referencing it are ever created afterwards.
type Report struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	FileName      string     `json:"file_name"`
	Locator       string     `json:"locator"`
	EncryptionKey []byte     `json:"-"`
	ContentHash   string     `json:"content_hash"`
	AnchorTx      string     `json:"anchor_tx,omitempty"`
	AnchoredAt    *time.Time `json:"anchored_at,omitempty"`
	UploadedAt    time.Time  `json:"uploaded_at"`
}

// ReportSummary is the owner-facing listing view of a report.
// Key material and the raw locator are never exposed here.
type ReportSummary struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name"`
	ContentHash string     `json:"content_hash"`
	AnchorTx    string     `json:"anchor_tx,omitempty"`
	AnchoredAt  *time.Time `json:"anchored_at,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

// ReportContent is the decrypted payload returned by a successful view
type ReportContent struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// UploadResult is returned to the owner after a successful upload
type UploadResult struct {
	ReportID    string `json:"report_id"`
	ContentHash string `json:"content_hash"`
}

// AnchorReceipt is the proof returned by the anchor ledger for a committed hash
type AnchorReceipt struct {
	TxID        string    `json:"tx_id"`
	OwnerID     string    `json:"owner_id"`
	ContentHash string    `json:"content_hash"`
	AnchoredAt  time.Time `json:"anchored_at"`
}
