package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
)

type contextKey string

const SessionKey contextKey = "session"

// Session resolves the caller's ID token into a services.Session and stores
// it on the request context. Requests without a token get a signed-out
// session; rejecting them is left to RequireSignedIn. A malformed or expired
// token is answered with 401.
//
// Browsers cannot set headers on an EventSource, so the access_token query
// parameter is accepted when no Authorization header is sent.
func Session(sessions *services.SessionManager) func(http.Handler) http.Handler {
	return resolveSession(sessions, true)
}

// OptionalSession is Session for the sign-in routes: a token that does not
// verify leaves the caller signed out instead of failing the request.
func OptionalSession(sessions *services.SessionManager) func(http.Handler) http.Handler {
	return resolveSession(sessions, false)
}

func resolveSession(sessions *services.SessionManager, strict bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signedOut := &services.Session{State: services.SessionSignedOut}

			token, ok := bearerToken(r)
			if !ok {
				if strict {
					writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), signedOut)))
				return
			}

			sess, err := sessions.Init(r.Context(), token)
			if err != nil {
				if errors.Is(err, services.ErrInvalidToken) {
					if strict {
						writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
						return
					}
					slog.Debug("[Session] ignoring stale token", "path", r.URL.Path)
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), signedOut)))
					return
				}
				slog.Error("[Session] init failed", "path", r.URL.Path, logging.Err(err))
				writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(models.MsgInternal))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("access_token"), true
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SessionFrom returns the request's session. A request that never passed
// through Session gets a signed-out one.
func SessionFrom(ctx context.Context) *services.Session {
	sess, ok := ctx.Value(SessionKey).(*services.Session)
	if !ok || sess == nil {
		return &services.Session{State: services.SessionSignedOut}
	}
	return sess
}

// WithSession stores sess on ctx.
func WithSession(ctx context.Context, sess *services.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).IsLogged() {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(models.MsgUnauthenticated))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccess lets through only accounts an admin has allowed.
func RequireAccess(next http.Handler) http.Handler {
	return RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).HasAccess() {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse(models.MsgAccessBlocked))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).IsAdmin() {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
