package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"terminbuddy/internal/identity"
	"terminbuddy/libs/httpx"
)

// IdentityService is the slice of the identity client the auth endpoints use.
type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (identity.Session, error)
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
}

type AuthHandler struct {
	idp    IdentityService
	logger *slog.Logger
}

func NewAuthHandler(idp IdentityService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{idp: idp, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.credentialFlow(w, r, h.idp.SignUp, http.StatusCreated)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.credentialFlow(w, r, h.idp.SignIn, http.StatusOK)
}

func (h *AuthHandler) credentialFlow(w http.ResponseWriter, r *http.Request, call func(context.Context, string, string) (identity.Session, error), okStatus int) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password required")
		return
	}
	if !validEmail(req.Email) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	session, err := call(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("identity call failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   session.ExpiresIn,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, okStatus, sessionResponse{
		UserID: session.User.ID,
		Email:  session.User.Email,
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the signed-in identity-provider user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}
