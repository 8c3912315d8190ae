package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishare/recordvault/pkg/config"
	"github.com/medishare/recordvault/pkg/types"
)

func newTestTokenManager(secret string, ttl int) *TokenManager {
	return NewTokenManager(&config.JWTConfig{
		SecretKey:      secret,
		AccessTokenTTL: ttl,
		Issuer:         "recordvault-test",
	})
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	tm := newTestTokenManager("test-secret", 3600)

	subject := &types.Subject{ID: "patient-1", Role: types.RolePatient}
	token, err := tm.Issue(subject)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "patient-1", token.SubjectID)
	assert.Equal(t, types.RolePatient, token.Role)

	subjectID, role, err := tm.Validate(token.Token)
	assert.NoError(t, err)
	assert.Equal(t, "patient-1", subjectID)
	assert.Equal(t, types.RolePatient, role)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := newTestTokenManager("secret-a", 3600).Issue(&types.Subject{ID: "patient-1", Role: types.RolePatient})
	require.NoError(t, err)

	_, _, err = newTestTokenManager("secret-b", 3600).Validate(token.Token)
	assert.Error(t, err)
	assert.Equal(t, types.ErrorKindUnauthorized, types.KindOf(err))
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	tm := newTestTokenManager("test-secret", -60)

	token, err := tm.Issue(&types.Subject{ID: "patient-1", Role: types.RolePatient})
	require.NoError(t, err)

	_, _, err = tm.Validate(token.Token)
	assert.Error(t, err)
	assert.Equal(t, types.ErrorKindUnauthorized, types.KindOf(err))
}

func TestTokenManager_GarbageToken(t *testing.T) {
	_, _, err := newTestTokenManager("test-secret", 3600).Validate("not.a.token")
	assert.Error(t, err)
	assert.Equal(t, types.ErrorKindUnauthorized, types.KindOf(err))
}
