package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/punkouter26/podropsquare-server/internal/auth"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// adminClaimsKey is the context key for verified admin token claims.
const adminClaimsKey ctxKey = "adminClaims"

// GetAdminClaims returns the verified token claims from context.
// Returns 401 error if no valid token was presented.
func GetAdminClaims(ctx context.Context) (*auth.AdminClaims, error) {
	claims, ok := ctx.Value(adminClaimsKey).(*auth.AdminClaims)
	if !ok || claims == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return claims, nil
}

func setAdminClaims(ctx context.Context, claims *auth.AdminClaims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

// adminMiddleware validates Bearer tokens and stores their claims in context.
// If no token is present or invalid, continues without claims.
// Handlers use RequireAdmin to check authorization.
func adminMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Verify(authHeader[7:])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setAdminClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin validates the caller presented an admin token.
// Returns the token subject if successful, error otherwise.
func RequireAdmin(ctx context.Context) (string, error) {
	claims, err := GetAdminClaims(ctx)
	if err != nil {
		return "", err
	}
	if !claims.IsAdmin() {
		return "", domainerrors.Forbidden("Admin access required")
	}
	return claims.Subject, nil
}
