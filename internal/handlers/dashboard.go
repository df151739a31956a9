package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"terminbuddy/internal/storage"
	"terminbuddy/internal/tz"
	"terminbuddy/libs/httpx"
)

type DashboardHandler struct {
	repo   *storage.AppointmentRepository
	logger *slog.Logger
}

func NewDashboardHandler(repo *storage.AppointmentRepository, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{repo: repo, logger: logger}
}

type dashboardResponse struct {
	Clients   int `json:"clients"`
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
}

// Summary counts "today" against the business's own calendar day, not UTC.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())

	now := time.Now()
	local := tz.InZone(now, business.Timezone)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	counts, err := h.repo.Dashboard(r.Context(), business.ID, dayStart, dayEnd, now)
	if err != nil {
		h.logger.Error("dashboard query failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dashboardResponse{
		Clients:   counts.ClientCount,
		Today:     counts.TodayCount,
		Upcoming:  counts.UpcomingCount,
		Completed: counts.CompletedCount,
	})
}
