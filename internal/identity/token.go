package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medishare/recordvault/pkg/config"
	"github.com/medishare/recordvault/pkg/types"
)

// Claims are the JWT claims carried in a session credential. Role is part of
// the signed assertion; authorization decisions re-derive it from here and
// never from client-supplied fields.
type Claims struct {
	SubjectID string `json:"sub_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates session credentials
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager creates a new token manager
func NewTokenManager(cfg *config.JWTConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.SecretKey),
		ttl:    time.Duration(cfg.AccessTokenTTL) * time.Second,
		issuer: cfg.Issuer,
	}
}

// Issue creates a signed token for the subject
func (tm *TokenManager) Issue(subject *types.Subject) (*types.AuthToken, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)

	claims := &Claims{
		SubjectID: subject.ID,
		Role:      string(subject.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   subject.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to sign token", err)
	}

	return &types.AuthToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		SubjectID: subject.ID,
		Role:      subject.Role,
	}, nil
}

// Validate parses the token and returns the verified subject id and role
func (tm *TokenManager) Validate(tokenString string) (string, types.Role, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return "", "", types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid token claims")
	}

	role := types.Role(claims.Role)
	if claims.SubjectID == "" || !role.Valid() {
		return "", "", types.NewUnauthorizedError(types.ErrCodeUnauthorized, "invalid token claims")
	}

	return claims.SubjectID, role, nil
}
