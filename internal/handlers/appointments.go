package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"terminbuddy/internal/email"
	"terminbuddy/internal/events"
	"terminbuddy/internal/ics"
	"terminbuddy/internal/model"
	"terminbuddy/internal/storage"
	"terminbuddy/internal/tz"
	"terminbuddy/libs/httpx"
)

// AppointmentStore is the persistence surface the appointment endpoints use,
// satisfied by storage.AppointmentRepository.
type AppointmentStore interface {
	FindOverlap(ctx context.Context, businessID string, startsAt, endsAt time.Time, excludeID string) (*storage.Conflict, error)
	Create(ctx context.Context, a model.Appointment) error
	Get(ctx context.Context, businessID, id string) (model.Appointment, error)
	GetDetail(ctx context.Context, businessID, id string) (storage.AppointmentDetail, error)
	ListByBusiness(ctx context.Context, businessID string, from, to time.Time, limit int) ([]model.Appointment, error)
	Reschedule(ctx context.Context, businessID, id, clientID string, startsAt, endsAt time.Time, notes string) (bool, error)
	SetStatus(ctx context.Context, businessID, id, status string) (bool, error)
}

// ClientSource is the slice of the client repository the appointment
// endpoints need for ownership checks.
type ClientSource interface {
	Get(ctx context.Context, businessID, id string) (model.Client, error)
}

type AppointmentHandler struct {
	repo      AppointmentStore
	clients   ClientSource
	publisher events.Publisher
	sender    email.Sender
	logger    *slog.Logger
}

func NewAppointmentHandler(
	repo AppointmentStore,
	clients ClientSource,
	publisher events.Publisher,
	sender email.Sender,
	logger *slog.Logger,
) *AppointmentHandler {
	return &AppointmentHandler{
		repo:      repo,
		clients:   clients,
		publisher: publisher,
		sender:    sender,
		logger:    logger,
	}
}

type appointmentRequest struct {
	ClientID    string `json:"client_id"`
	StartsAt    string `json:"starts_at"` // wall clock, business zone
	DurationMin int    `json:"duration_min"`
	Notes       string `json:"notes"`
}

type appointmentResponse struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	StartsAt      string `json:"starts_at"` // RFC 3339 UTC
	EndsAt        string `json:"ends_at"`
	StartsAtLocal string `json:"starts_at_local"` // wall clock, business zone
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
}

type conflictResponse struct {
	Error    string          `json:"error"`
	Conflict conflictDetails `json:"conflict"`
}

type conflictDetails struct {
	StartsAtLocal string `json:"starts_at_local"`
	EndsAtLocal   string `json:"ends_at_local"`
	ClientName    string `json:"client_name"`
}

func toAppointmentResponse(a model.Appointment, zone string) appointmentResponse {
	local, _ := tz.Render(a.StartsAt, zone)
	return appointmentResponse{
		ID:            a.ID,
		ClientID:      a.ClientID,
		StartsAt:      a.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        a.EndsAt.UTC().Format(time.RFC3339),
		StartsAtLocal: local,
		Status:        a.Status,
		Notes:         a.Notes,
	}
}

// parseInterval validates the wall-clock start and duration against the
// business zone. DST-gap times are rejected here, before any state changes.
func parseInterval(req appointmentRequest, zone string) (time.Time, time.Time, error) {
	startsAt, err := tz.ToInstant(strings.TrimSpace(req.StartsAt), zone)
	if err != nil {
		if errors.Is(err, tz.ErrNonexistentTime) {
			return time.Time{}, time.Time{}, fmt.Errorf("this time does not exist in %s (daylight saving change); pick another time", zone)
		}
		return time.Time{}, time.Time{}, errors.New("invalid starts_at; expected YYYY-MM-DDTHH:MM")
	}
	endsAt := startsAt.Add(durationMinutes(req.DurationMin))
	return startsAt, endsAt, nil
}

func (h *AppointmentHandler) rejectOverlap(w http.ResponseWriter, r *http.Request, businessID, zone string, startsAt, endsAt time.Time, excludeID string) (ok bool) {
	conflict, err := h.repo.FindOverlap(r.Context(), businessID, startsAt, endsAt, excludeID)
	if err != nil {
		h.logger.Error("overlap check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to check availability")
		return false
	}
	if conflict != nil {
		startLocal, _ := tz.Render(conflict.StartsAt, zone)
		endLocal, _ := tz.Render(conflict.EndsAt, zone)
		httpx.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error: fmt.Sprintf("slot taken: %s to %s (%s)", startLocal, endLocal, conflict.ClientName),
			Conflict: conflictDetails{
				StartsAtLocal: startLocal,
				EndsAtLocal:   endLocal,
				ClientName:    conflict.ClientName,
			},
		})
		return false
	}
	return true
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	client, err := h.clients.Get(r.Context(), business.ID, req.ClientID)
	if err != nil {
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusBadRequest, "client not found in this business")
			return
		}
		h.logger.Error("client lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	startsAt, endsAt, err := parseInterval(req, business.Timezone)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.rejectOverlap(w, r, business.ID, business.Timezone, startsAt, endsAt, "") {
		return
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		BusinessID: business.ID,
		ClientID:   client.ID,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Status:     model.StatusBooked,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if err := h.repo.Create(r.Context(), appt); err != nil {
		h.logger.Error("appointment create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	h.publisher.AppointmentEvent(r.Context(), events.TypeAppointmentCreated, appt)
	h.sendConfirmation(business, client, appt)

	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt, business.Timezone))
}

// sendConfirmation is best-effort; booking never fails because SMTP is down.
func (h *AppointmentHandler) sendConfirmation(business model.Business, client model.Client, appt model.Appointment) {
	if client.Email == "" {
		return
	}
	msg := email.Confirmation(email.AppointmentInfo{
		BusinessName: business.Name,
		Timezone:     business.Timezone,
		ClientName:   client.Name,
		ClientEmail:  client.Email,
		ClientPhone:  client.Phone,
		StartsAt:     appt.StartsAt,
		EndsAt:       appt.EndsAt,
		Notes:        appt.Notes,
	})
	if err := h.sender.Send(client.Email, msg); err != nil {
		h.logger.Error("confirmation email failed", "err", err, "appointment_id", appt.ID)
	}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())

	from, err := parseDayParam(r.URL.Query().Get("from"), business.Timezone)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := parseDayParam(r.URL.Query().Get("to"), business.Timezone)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}

	appts, err := h.repo.ListByBusiness(r.Context(), business.ID, from, to, 0)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a, business.Timezone))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	a, err := h.repo.Get(r.Context(), business.ID, r.PathValue("id"))
	if err != nil {
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment get failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(a, business.Timezone))
}

// Update reschedules an appointment. The overlap guard runs again with the
// appointment's own id excluded from the comparison set.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())
	id := r.PathValue("id")

	current, err := h.repo.Get(r.Context(), business.ID, id)
	if err != nil {
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment get failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		req.ClientID = current.ClientID
	}
	if _, err := h.clients.Get(r.Context(), business.ID, req.ClientID); err != nil {
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusBadRequest, "client not found in this business")
			return
		}
		h.logger.Error("client lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}

	startsAt, endsAt, err := parseInterval(req, business.Timezone)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.rejectOverlap(w, r, business.ID, business.Timezone, startsAt, endsAt, id) {
		return
	}

	updated, err := h.repo.Reschedule(r.Context(), business.ID, id, req.ClientID, startsAt, endsAt, strings.TrimSpace(req.Notes))
	if err != nil {
		h.logger.Error("appointment reschedule failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	if !updated {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
		return
	}

	current.ClientID = req.ClientID
	current.StartsAt = startsAt
	current.EndsAt = endsAt
	current.Notes = strings.TrimSpace(req.Notes)
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(current, business.Timezone))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.StatusCancelled, events.TypeAppointmentCancelled)
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.StatusCompleted, events.TypeAppointmentCompleted)
}

func (h *AppointmentHandler) setStatus(w http.ResponseWriter, r *http.Request, status, eventType string) {
	business, _ := BusinessFromContext(r.Context())
	id := r.PathValue("id")

	updated, err := h.repo.SetStatus(r.Context(), business.ID, id, status)
	if err != nil {
		h.logger.Error("appointment status write failed", "err", err, "status", status)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	if !updated {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
		return
	}

	appt, err := h.repo.Get(r.Context(), business.ID, id)
	if err == nil {
		h.publisher.AppointmentEvent(r.Context(), eventType, appt)
		httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt, business.Timezone))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": status})
}

// ExportICS streams the appointment as a downloadable iCalendar file.
func (h *AppointmentHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	business, _ := BusinessFromContext(r.Context())

	d, err := h.repo.GetDetail(r.Context(), business.ID, r.PathValue("id"))
	if err != nil {
		if isNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment detail load failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to export appointment")
		return
	}

	ev := ics.Event{
		ID:           d.ID,
		BusinessName: d.BusinessName,
		Timezone:     d.Timezone,
		ClientName:   d.ClientName,
		ClientEmail:  d.ClientEmail,
		ClientPhone:  d.ClientPhone,
		StartsAt:     d.StartsAt,
		EndsAt:       d.EndsAt,
		Status:       d.Status,
		Notes:        d.Notes,
	}
	doc, err := ics.Encode(ev, time.Now())
	if err != nil {
		h.logger.Error("ics encode failed", "err", err, "appointment_id", d.ID)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to export appointment")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.Filename(ev)))
	w.Header().Set("Cache-Control", "private, no-store, max-age=0")
	_, _ = w.Write(doc)
}
