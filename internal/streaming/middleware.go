package streaming

import (
	"context"
	"net/http"
	"strings"
)

type ctxClaimsKey struct{}

// authMiddleware validates the bearer access token and stores its claims in
// the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		claims, err := s.parseToken(parts[1], "access")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r)
		if !ok || claims.Role != roleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(r *http.Request) (*TokenClaims, bool) {
	v := r.Context().Value(ctxClaimsKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*TokenClaims)
	return c, ok
}

func userIDFromContext(r *http.Request) (string, bool) {
	c, ok := claimsFromContext(r)
	if !ok || c.UserID == "" {
		return "", false
	}
	return c.UserID, true
}
