package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"terminbuddy/internal/identity"
	"terminbuddy/internal/model"
	"terminbuddy/libs/httpx"
)

const sessionCookie = "tb_session"

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeyBusiness
)

// BusinessSource is the slice of the business repository the middleware needs.
type BusinessSource interface {
	GetByOwner(ctx context.Context, ownerID string) (model.Business, error)
}

// SessionAuth resolves the provider access token carried in the Authorization
// header or the session cookie, and optionally the caller's business.
type SessionAuth struct {
	verifier   identity.Verifier
	businesses BusinessSource
	logger     *slog.Logger
}

func NewSessionAuth(verifier identity.Verifier, businesses BusinessSource, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{verifier: verifier, businesses: businesses, logger: logger}
}

func UserFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(identity.User)
	return u, ok
}

func BusinessFromContext(ctx context.Context) (model.Business, bool) {
	b, ok := ctx.Value(ctxKeyBusiness).(model.Business)
	return b, ok
}

func sessionToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireUser rejects anonymous requests with 401.
func (s *SessionAuth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		user, err := s.verifier.UserFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				httpx.WriteError(w, http.StatusUnauthorized, "session expired or invalid")
				return
			}
			s.logger.Error("identity lookup failed", "err", err)
			httpx.WriteError(w, http.StatusBadGateway, "identity provider unavailable")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireBusiness additionally resolves the caller's business; requests from
// owners who have not completed setup get 409.
func (s *SessionAuth) RequireBusiness(next http.Handler) http.Handler {
	return s.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		business, err := s.businesses.GetByOwner(r.Context(), user.ID)
		if err != nil {
			if isNotFound(err) {
				httpx.WriteError(w, http.StatusConflict, "business not configured; create one first")
				return
			}
			s.logger.Error("business lookup failed", "err", err, "owner_id", user.ID)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to load business")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyBusiness, business)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}
