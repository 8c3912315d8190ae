package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/monitoring"
	"github.com/medishare/recordvault/pkg/types"
)

// Service implements subject registration and authentication
type Service struct {
	repo   *SubjectRepository
	tokens *TokenManager
	logger *logger.Logger
}

// NewService creates a new identity service
func NewService(repo *SubjectRepository, tokens *TokenManager, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: log.WithComponent("identity"),
	}
}

// RegistrationInput carries a registration request
type RegistrationInput struct {
	Role           types.Role `json:"role"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Specialization string     `json:"specialization,omitempty"`
	LicenseNumber  string     `json:"license_number,omitempty"`
	Hospital       string     `json:"hospital,omitempty"`
}

// Register creates a new patient or doctor subject
func (s *Service) Register(ctx context.Context, input *RegistrationInput) (*types.Subject, error) {
	if !input.Role.Valid() {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "role must be patient or doctor")
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "name and email are required")
	}
	if len(input.Password) < 6 {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "password must be at least 6 characters")
	}
	if input.Role == types.RoleDoctor && (input.Specialization == "" || input.LicenseNumber == "") {
		return nil, types.NewInvalidArgumentError(types.ErrCodeInvalidInput, "doctors must provide specialization and license number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}

	subject := &types.Subject{
		ID:             uuid.New().String(),
		Role:           input.Role,
		Name:           input.Name,
		Email:          strings.ToLower(input.Email),
		PasswordHash:   string(hash),
		Specialization: input.Specialization,
		LicenseNumber:  input.LicenseNumber,
		Hospital:       input.Hospital,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, err
	}

	s.logger.Audit(subject.ID, "register", "subject", true)
	return subject, nil
}

// Login verifies credentials and issues a session credential.
// Bad credentials always surface as unauthorized, whether the email is
// unknown or the password wrong.
func (s *Service) Login(ctx context.Context, email, password string) (*types.AuthToken, error) {
	subject, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		monitoring.RecordAuthAttempt("unknown", false)
		return nil, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subject.PasswordHash), []byte(password)); err != nil {
		monitoring.RecordAuthAttempt(string(subject.Role), false)
		s.logger.Audit(subject.ID, "login", "session", false)
		return nil, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Issue(subject)
	if err != nil {
		return nil, err
	}

	monitoring.RecordAuthAttempt(string(subject.Role), true)
	s.logger.Audit(subject.ID, "login", "session", true)
	return token, nil
}

// Directory exposes the subject lookup interface consumed by the
// disclosure engine
func (s *Service) Directory() *SubjectRepository {
	return s.repo
}
