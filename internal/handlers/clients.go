package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"terminbuddy/internal/model"
	"terminbuddy/internal/storage"
	"terminbuddy/libs/httpx"
)

type ClientHandler struct {
	repo   *storage.ClientRepository
	logger *slog.Logger
}

func NewClientHandler(repo *storage.ClientRepository, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{repo: repo, logger: logger}
}

type clientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type clientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toClientResponse(c model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

func (h *ClientHandler) parseRequest(w http.ResponseWriter, r *http.Request) (clientRequest, bool) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	if req.Email != "" && !validEmail(req.Email) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid email address")
		return req, false
	}
	return req, true
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	c := model.Client{
		ID:         uuid.NewString(),
		BusinessID: business.ID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Notes:      req.Notes,
	}
	if err := h.repo.Create(r.Context(), c); err != nil {
		h.logger.Error("client create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create client")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toClientResponse(c))
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	clients, err := h.repo.ListByBusiness(r.Context(), business.ID)
	if err != nil {
		h.logger.Error("client list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	c, err := h.repo.Get(r.Context(), business.ID, r.PathValue("id"))
	if err != nil {
		// Rows owned by another business are indistinguishable from missing.
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "client not found")
			return
		}
		h.logger.Error("client get failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load client")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.repo.Update(r.Context(), model.Client{
		ID:         r.PathValue("id"),
		BusinessID: business.ID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Notes:      req.Notes,
	})
	if err != nil {
		h.logger.Error("client update failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update client")
		return
	}
	if !updated {
		httpx.WriteError(w, http.StatusNotFound, "client not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Delete refuses to remove a client that still has appointments, cancelled or
// otherwise; history stays intact.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	id := r.PathValue("id")

	n, err := h.repo.CountAppointments(r.Context(), business.ID, id)
	if err != nil {
		h.logger.Error("client appointment count failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	if n > 0 {
		httpx.WriteError(w, http.StatusConflict, "client has appointments and cannot be deleted")
		return
	}

	deleted, err := h.repo.Delete(r.Context(), business.ID, id)
	if err != nil {
		h.logger.Error("client delete failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	if !deleted {
		httpx.WriteError(w, http.StatusNotFound, "client not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
