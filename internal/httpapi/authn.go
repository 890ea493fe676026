package httpapi

import (
	"net/http"
	"strings"

	"turfwar.org/internal/auth"
	"turfwar.org/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/register",
	"/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		if a.blacklist != nil && claims.ID != "" {
			revoked, err := a.blacklist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
			if revoked {
				writeError(w, r, http.StatusUnauthorized, "token revoked")
				return
			}
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, claims.Username)
		ctx = auth.ContextWithTokenID(ctx, claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser loads the authenticated actor fresh from the store, so
// admin flips and faction changes take effect on the next request rather
// than at next login.
func (a *API) currentUser(r *http.Request) (*identity.User, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, identity.ErrNotFound
	}
	return a.store.Users().FindByID(r.Context(), userID)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingBearer
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errBadScheme
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
