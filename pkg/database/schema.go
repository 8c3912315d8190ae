package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the custody store and
// disclosure ledger
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	statements := []string{
		createSubjectsTable,
		createReportsTable,
		createGrantsTable,
		createSubjectsIndexes,
		createReportsIndexes,
		createGrantsIndexes,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createSubjectsTable = `
CREATE TABLE IF NOT EXISTS subjects (
    id              UUID PRIMARY KEY,
    role            VARCHAR(16) NOT NULL CHECK (role IN ('patient', 'doctor')),
    name            VARCHAR(255) NOT NULL,
    email           VARCHAR(255) NOT NULL UNIQUE,
    password_hash   VARCHAR(255) NOT NULL,
    specialization  VARCHAR(255),
    license_number  VARCHAR(128),
    hospital        VARCHAR(255),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createReportsTable = `
CREATE TABLE IF NOT EXISTS reports (
    id              UUID PRIMARY KEY,
    owner_id        UUID NOT NULL REFERENCES subjects(id),
    file_name       VARCHAR(512) NOT NULL,
    locator         TEXT NOT NULL,
    encrypted_key   BYTEA NOT NULL,
    content_hash    VARCHAR(64) NOT NULL UNIQUE,
    anchor_tx       VARCHAR(128),
    anchored_at     TIMESTAMPTZ,
    uploaded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// disclosure_grants.status tracks the grant state machine. The partial
// unique index enforces at most one active grant per (report, doctor) pair
// at the store layer; expired-but-open rows are closed by the share path
// before a new insert.
const createGrantsTable = `
CREATE TABLE IF NOT EXISTS disclosure_grants (
    id              UUID PRIMARY KEY,
    report_id       UUID NOT NULL REFERENCES reports(id),
    owner_id        UUID NOT NULL REFERENCES subjects(id),
    doctor_id       UUID NOT NULL REFERENCES subjects(id),
    granted_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at      TIMESTAMPTZ,
    revoked_at      TIMESTAMPTZ,
    annotation      TEXT,
    annotated_at    TIMESTAMPTZ,
    status          VARCHAR(16) NOT NULL DEFAULT 'active'
                    CHECK (status IN ('active', 'expired', 'revoked'))
);`

const createSubjectsIndexes = `
CREATE INDEX IF NOT EXISTS idx_subjects_role ON subjects(role);`

const createReportsIndexes = `
CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner_id);
CREATE INDEX IF NOT EXISTS idx_reports_uploaded_at ON reports(uploaded_at);`

const createGrantsIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_one_active
    ON disclosure_grants(report_id, doctor_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_grants_doctor ON disclosure_grants(doctor_id);
CREATE INDEX IF NOT EXISTS idx_grants_report ON disclosure_grants(report_id);`
