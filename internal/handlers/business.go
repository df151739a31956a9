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

type BusinessHandler struct {
	repo   *storage.BusinessRepository
	logger *slog.Logger
}

func NewBusinessHandler(repo *storage.BusinessRepository, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{repo: repo, logger: logger}
}

type createBusinessRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type businessResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Create is the one-time setup step. Exactly one business per owner; repeat
// calls get 409 instead of a second tenant.
func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "Europe/Vienna"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "unknown IANA time zone")
		return
	}

	exists, err := h.repo.ExistsForOwner(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("business existence check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create business")
		return
	}
	if exists {
		httpx.WriteError(w, http.StatusConflict, "business already exists for this account")
		return
	}

	b := model.Business{
		ID:       uuid.NewString(),
		OwnerID:  user.ID,
		Name:     req.Name,
		Timezone: req.Timezone,
	}
	if err := h.repo.Create(r.Context(), b); err != nil {
		h.logger.Error("business create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create business")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, businessResponse{ID: b.ID, Name: b.Name, Timezone: b.Timezone})
}

func (h *BusinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	business, ok := BusinessFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusConflict, "business not configured; create one first")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, businessResponse{ID: business.ID, Name: business.Name, Timezone: business.Timezone})
}
