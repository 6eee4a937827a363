package auth

import (
	"net/http"
	"strings"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// Middleware wires authentication into HTTP handlers.
type Middleware struct {
	Service *Service
}

// RequireAuth enforces a valid bearer token and rejects tokens issued for a
// different tenant than the one resolved for the request.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		userID, tokenTenant, err := m.Service.ParseAccessToken(token)
		if err != nil {
			common.RenderError(w, err)
			return
		}
		if reqTenant, ok := tenant.FromContext(r.Context()); ok && tokenTenant != "" && tokenTenant != reqTenant {
			common.JSONError(w, http.StatusForbidden, "TENANT_MISMATCH", "token was issued for another tenant", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
