package identity

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

// SubjectRepository handles subject persistence for patients and doctors
type SubjectRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *sql.DB, log *logger.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:     db,
		logger: log.WithComponent("identity"),
	}
}

// Create persists a new subject
func (r *SubjectRepository) Create(ctx context.Context, subject *types.Subject) error {
	query := `
		INSERT INTO subjects (id, role, name, email, password_hash, specialization, license_number, hospital, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		subject.ID,
		subject.Role,
		subject.Name,
		strings.ToLower(subject.Email),
		subject.PasswordHash,
		nullable(subject.Specialization),
		nullable(subject.LicenseNumber),
		nullable(subject.Hospital),
		subject.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError(types.ErrCodeInvalidInput, "email already registered")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create subject", err)
	}

	r.logger.Info("Subject registered", "subject_id", subject.ID, "role", subject.Role)
	return nil
}

// GetByID retrieves a subject by id
func (r *SubjectRepository) GetByID(ctx context.Context, subjectID string) (*types.Subject, error) {
	return r.getOne(ctx, `WHERE id = $1`, subjectID)
}

// GetByEmail retrieves a subject by email
func (r *SubjectRepository) GetByEmail(ctx context.Context, email string) (*types.Subject, error) {
	return r.getOne(ctx, `WHERE email = $1`, strings.ToLower(email))
}

// FindDoctorByEmail retrieves a doctor by email, as used by the share path
func (r *SubjectRepository) FindDoctorByEmail(ctx context.Context, email string) (*types.Subject, error) {
	return r.getOne(ctx, `WHERE email = $1 AND role = 'doctor'`, strings.ToLower(email))
}

func (r *SubjectRepository) getOne(ctx context.Context, where string, arg interface{}) (*types.Subject, error) {
	query := `
		SELECT id, role, name, email, password_hash,
		       COALESCE(specialization, ''), COALESCE(license_number, ''), COALESCE(hospital, ''),
		       created_at
		FROM subjects ` + where

	var s types.Subject
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&s.ID,
		&s.Role,
		&s.Name,
		&s.Email,
		&s.PasswordHash,
		&s.Specialization,
		&s.LicenseNumber,
		&s.Hospital,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "subject not found")
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to get subject", err)
	}

	return &s, nil
}

// nullable maps empty strings to SQL NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
