package api

import (
	"context"
	"errors"
	"net/http"

	"charteye/internal/auth"
)

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	if trace := traceFrom(ctx); trace != nil {
		trace.userID = userID
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// userIDFrom returns the authenticated user id, or "" for anonymous requests.
func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// optionalUser attaches the user id when a valid bearer token is present. Invalid
// tokens are rejected; a missing token continues anonymously.
func (h *handler) optionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := h.authenticate(token)
		if err != nil {
			h.logger.Warn("bearer token rejected", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// requireUser rejects requests without a valid bearer token.
func (h *handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.authenticate(auth.BearerToken(r))
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				h.logger.Warn("bearer token rejected", "path", r.URL.Path, "err", err)
			}
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (h *handler) authenticate(token string) (string, error) {
	if h.verifier == nil {
		if token == "" {
			return "", auth.ErrMissingToken
		}
		return "", auth.ErrNotConfigured
	}
	return h.verifier.Verify(token)
}
