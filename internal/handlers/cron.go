package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"terminbuddy/internal/reminder"
	"terminbuddy/libs/httpx"
)

// DispatchRunner is the slice of the reminder dispatcher the cron endpoint
// invokes.
type DispatchRunner interface {
	Run(ctx context.Context) ([]reminder.Summary, error)
}

// CronHandler guards the reminder trigger with a shared secret. The scheduler
// sends it in the X-Cron-Secret header; a ?secret query parameter works for
// schedulers that cannot set headers.
type CronHandler struct {
	secret     string
	dispatcher DispatchRunner
	logger     *slog.Logger
}

func NewCronHandler(secret string, dispatcher DispatchRunner, logger *slog.Logger) *CronHandler {
	return &CronHandler{secret: secret, dispatcher: dispatcher, logger: logger}
}

func (h *CronHandler) authorized(r *http.Request) bool {
	// An unset secret disables the endpoint rather than opening it.
	if h.secret == "" {
		return false
	}
	presented := r.Header.Get("X-Cron-Secret")
	if presented == "" {
		presented = r.URL.Query().Get("secret")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) == 1
}

type cronResponse struct {
	OK      bool               `json:"ok"`
	At      string             `json:"at"`
	Results []reminder.Summary `json:"results"`
}

func (h *CronHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid cron secret")
		return
	}

	summaries, err := h.dispatcher.Run(r.Context())
	if err != nil {
		h.logger.Error("reminder dispatch failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "reminder dispatch failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, cronResponse{
		OK:      true,
		At:      time.Now().UTC().Format(time.RFC3339),
		Results: summaries,
	})
}
