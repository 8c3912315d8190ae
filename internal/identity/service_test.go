package identity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/types"
)

func setupService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.New("test", "error")
	repo := NewSubjectRepository(db, log)
	tokens := newTestTokenManager("test-secret", 3600)
	return NewService(repo, tokens, log), mock
}

func subjectRow(s *types.Subject) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "role", "name", "email", "password_hash",
		"specialization", "license_number", "hospital", "created_at",
	}).AddRow(s.ID, string(s.Role), s.Name, s.Email, s.PasswordHash,
		s.Specialization, s.LicenseNumber, s.Hospital, s.CreatedAt)
}

func TestService_Register_Patient(t *testing.T) {
	svc, mock := setupService(t)

	mock.ExpectExec("INSERT INTO subjects").
		WillReturnResult(sqlmock.NewResult(1, 1))

	subject, err := svc.Register(context.Background(), &RegistrationInput{
		Role:     types.RolePatient,
		Name:     "Alice Smith",
		Email:    "Alice@Example.com",
		Password: "s3cret!",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, subject.ID)
	assert.Equal(t, "alice@example.com", subject.Email)
	assert.NotEqual(t, "s3cret!", subject.PasswordHash)
}

func TestService_Register_Validation(t *testing.T) {
	svc, _ := setupService(t)

	cases := []struct {
		name  string
		input RegistrationInput
	}{
		{"bad role", RegistrationInput{Role: "admin", Name: "X", Email: "x@example.com", Password: "secret1"}},
		{"missing name", RegistrationInput{Role: types.RolePatient, Email: "x@example.com", Password: "secret1"}},
		{"missing email", RegistrationInput{Role: types.RolePatient, Name: "X", Password: "secret1"}},
		{"short password", RegistrationInput{Role: types.RolePatient, Name: "X", Email: "x@example.com", Password: "abc"}},
		{"doctor without license", RegistrationInput{Role: types.RoleDoctor, Name: "X", Email: "x@example.com", Password: "secret1", Specialization: "cardiology"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject, err := svc.Register(context.Background(), &tc.input)
			assert.Error(t, err)
			assert.Nil(t, subject)
			assert.Equal(t, types.ErrorKindInvalidArgument, types.KindOf(err))
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, mock := setupService(t)

	mock.ExpectExec("INSERT INTO subjects").
		WillReturnError(&pq.Error{Code: "23505"})

	subject, err := svc.Register(context.Background(), &RegistrationInput{
		Role:     types.RolePatient,
		Name:     "Alice Smith",
		Email:    "alice@example.com",
		Password: "s3cret!",
	})
	assert.Error(t, err)
	assert.Nil(t, subject)
	assert.Equal(t, types.ErrorKindConflict, types.KindOf(err))
}

func TestService_Login(t *testing.T) {
	svc, mock := setupService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &types.Subject{
		ID:           "patient-1",
		Role:         types.RolePatient,
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WithArgs("alice@example.com").
		WillReturnRows(subjectRow(stored))

	token, err := svc.Login(context.Background(), "alice@example.com", "s3cret!")
	assert.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "patient-1", token.SubjectID)
	assert.Equal(t, types.RolePatient, token.Role)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	svc, mock := setupService(t)

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	token, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.Error(t, err)
	assert.Nil(t, token)
	assert.Equal(t, types.ErrorKindUnauthorized, types.KindOf(err))
}

func TestService_Login_WrongPassword(t *testing.T) {
	svc, mock := setupService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &types.Subject{
		ID:           "patient-1",
		Role:         types.RolePatient,
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WillReturnRows(subjectRow(stored))

	token, err := svc.Login(context.Background(), "alice@example.com", "wrong")
	assert.Error(t, err)
	assert.Nil(t, token)
	assert.Equal(t, types.ErrorKindUnauthorized, types.KindOf(err))
}

func TestService_Login_UniformFailureMessage(t *testing.T) {
	svc, mock := setupService(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	stored := &types.Subject{
		ID:           "patient-1",
		Role:         types.RolePatient,
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "whatever")

	mock.ExpectQuery("SELECT (.+) FROM subjects").
		WillReturnRows(subjectRow(stored))
	_, errWrongPassword := svc.Login(context.Background(), "alice@example.com", "wrong")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPassword)
	assert.Equal(t, errUnknown.Error(), errWrongPassword.Error())
}
