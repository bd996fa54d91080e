package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// BearerToken extracts the token of an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate checks the bearer token of every request and stores the
// session in the request context.
func Authenticate(iss *Issuer, rev Revoker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				unauthorized(w, "unauthorized")
				return
			}
			s, err := iss.Parse(tok)
			if err != nil {
				unauthorized(w, "unauthorized")
				return
			}
			revoked, err := rev.IsRevoked(r.Context(), s.ID)
			if err != nil {
				// fails open
				log.Warn("session denylist unavailable", "error", err)
			}
			if revoked {
				unauthorized(w, ErrRevoked.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// RequireRole rejects sessions whose role is not listed.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w, "unauthorized")
				return
			}
			for _, role := range roles {
				if s.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// Logout revokes the session for the rest of its lifetime.
func Logout(ctx context.Context, rev Revoker, s Session) error {
	if s.ID == "" {
		return errors.New("session without id")
	}
	return rev.Revoke(ctx, s.ID, time.Until(s.ExpiresAt))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="staff"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
