package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/medishare/recordvault/pkg/types"
)

type contextKey string

const (
	subjectIDKey contextKey = "subject_id"
	roleKey      contextKey = "role"
)

// Principal is the verified identity attached to a request
type Principal struct {
	SubjectID string
	Role      types.Role
}

// PrincipalFromContext returns the verified principal, if any
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	id, ok := ctx.Value(subjectIDKey).(string)
	if !ok || id == "" {
		return Principal{}, false
	}
	role, ok := ctx.Value(roleKey).(types.Role)
	if !ok {
		return Principal{}, false
	}
	return Principal{SubjectID: id, Role: role}, true
}

// Middleware validates the bearer token and injects the verified subject id
// and role into the request context. The role always comes from the signed
// token, never from headers or body fields.
func (tm *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthError(w, "missing bearer token")
			return
		}

		subjectID, role, err := tm.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeAuthError(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectIDKey, subjectID)
		ctx = context.WithValue(ctx, roleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithPrincipal injects a principal into the context. Test helper for
// exercising handlers without a token round-trip.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, subjectIDKey, p.SubjectID)
	return context.WithValue(ctx, roleKey, p.Role)
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"` + types.ErrCodeUnauthorized + `","message":"` + message + `"}}`))
}
