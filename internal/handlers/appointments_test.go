package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"terminbuddy/internal/availability"
	"terminbuddy/internal/email"
	"terminbuddy/internal/events"
	"terminbuddy/internal/model"
	"terminbuddy/internal/storage"
	"terminbuddy/internal/tz"
)

// fakeApptStore applies the same rules as the SQL store: CANCELLED rows and
// the excluded id never count as conflicts, intervals are half-open.
type fakeApptStore struct {
	appts       map[string]model.Appointment
	clientNames map[string]string
}

func newFakeApptStore() *fakeApptStore {
	return &fakeApptStore{
		appts:       map[string]model.Appointment{},
		clientNames: map[string]string{"client-1": "Anna Muster", "client-2": "Ben Huber"},
	}
}

func (s *fakeApptStore) FindOverlap(_ context.Context, businessID string, startsAt, endsAt time.Time, excludeID string) (*storage.Conflict, error) {
	for _, a := range s.appts {
		if a.BusinessID != businessID || a.Status == model.StatusCancelled || a.ID == excludeID {
			continue
		}
		if availability.Overlaps(
			availability.Interval{Start: startsAt, End: endsAt},
			availability.Interval{Start: a.StartsAt, End: a.EndsAt},
		) {
			return &storage.Conflict{
				AppointmentID: a.ID,
				StartsAt:      a.StartsAt,
				EndsAt:        a.EndsAt,
				ClientName:    s.clientNames[a.ClientID],
			}, nil
		}
	}
	return nil, nil
}

func (s *fakeApptStore) Create(_ context.Context, a model.Appointment) error {
	s.appts[a.ID] = a
	return nil
}

func (s *fakeApptStore) Get(_ context.Context, businessID, id string) (model.Appointment, error) {
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (s *fakeApptStore) GetDetail(ctx context.Context, businessID, id string) (storage.AppointmentDetail, error) {
	a, err := s.Get(ctx, businessID, id)
	if err != nil {
		return storage.AppointmentDetail{}, err
	}
	return storage.AppointmentDetail{
		Appointment:  a,
		ClientName:   s.clientNames[a.ClientID],
		BusinessName: "Salon Anna",
		Timezone:     "Europe/Vienna",
	}, nil
}

func (s *fakeApptStore) ListByBusiness(_ context.Context, businessID string, from, to time.Time, _ int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.BusinessID != businessID {
			continue
		}
		if !from.IsZero() && a.StartsAt.Before(from) {
			continue
		}
		if !to.IsZero() && !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeApptStore) Reschedule(_ context.Context, businessID, id, clientID string, startsAt, endsAt time.Time, notes string) (bool, error) {
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return false, nil
	}
	a.ClientID = clientID
	a.StartsAt = startsAt
	a.EndsAt = endsAt
	a.Notes = notes
	s.appts[id] = a
	return true, nil
}

func (s *fakeApptStore) SetStatus(_ context.Context, businessID, id, status string) (bool, error) {
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return false, nil
	}
	a.Status = status
	s.appts[id] = a
	return true, nil
}

type fakeClients struct {
	byID map[string]model.Client
}

func (f *fakeClients) Get(_ context.Context, businessID, id string) (model.Client, error) {
	c, ok := f.byID[id]
	if !ok || c.BusinessID != businessID {
		return model.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) Send(to string, _ email.Message) error {
	f.sent = append(f.sent, to)
	return nil
}

var testBusiness = model.Business{
	ID:       "biz-1",
	OwnerID:  "user-1",
	Name:     "Salon Anna",
	Timezone: "Europe/Vienna",
}

func viennaInstant(t *testing.T, wall string) time.Time {
	t.Helper()
	instant, err := tz.ToInstant(wall, testBusiness.Timezone)
	if err != nil {
		t.Fatalf("ToInstant(%q): %v", wall, err)
	}
	return instant
}

func newApptFixture() (*AppointmentHandler, *fakeApptStore) {
	store := newFakeApptStore()
	clients := &fakeClients{byID: map[string]model.Client{
		"client-1": {ID: "client-1", BusinessID: "biz-1", Name: "Anna Muster", Email: "anna@example.com"},
		"client-2": {ID: "client-2", BusinessID: "biz-1", Name: "Ben Huber"},
	}}
	h := NewAppointmentHandler(store, clients, events.NopPublisher{}, &fakeMailer{}, testLogger())
	return h, store
}

func businessRequest(method, target, body string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := context.WithValue(req.Context(), ctxKeyBusiness, testBusiness)
	return req.WithContext(ctx)
}

func seedBooked(store *fakeApptStore, t *testing.T, id, clientID, startWall string, minutes int) {
	start := viennaInstant(t, startWall)
	store.appts[id] = model.Appointment{
		ID:         id,
		BusinessID: testBusiness.ID,
		ClientID:   clientID,
		StartsAt:   start,
		EndsAt:     start.Add(time.Duration(minutes) * time.Minute),
		Status:     model.StatusBooked,
	}
}

func TestCreateRejectsOverlappingSlot(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)

	req := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"client-2","starts_at":"2026-03-02T10:15","duration_min":30}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
	var resp conflictResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if resp.Conflict.StartsAtLocal != "2026-03-02T10:00" || resp.Conflict.EndsAtLocal != "2026-03-02T10:30" {
		t.Fatalf("conflict range = %q to %q", resp.Conflict.StartsAtLocal, resp.Conflict.EndsAtLocal)
	}
	if resp.Conflict.ClientName != "Anna Muster" {
		t.Fatalf("conflict client = %q", resp.Conflict.ClientName)
	}
	if len(store.appts) != 1 {
		t.Fatalf("conflicting booking must not be stored, have %d rows", len(store.appts))
	}
}

func TestCreateIgnoresCancelledSlot(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)
	a := store.appts["appt-1"]
	a.Status = model.StatusCancelled
	store.appts["appt-1"] = a

	req := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"client-2","starts_at":"2026-03-02T10:00","duration_min":30}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("cancelled slot must be bookable: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAcceptsTouchingSlot(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)

	// [10:00,10:30) then [10:30,11:00): touching endpoints do not overlap.
	req := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"client-2","starts_at":"2026-03-02T10:30","duration_min":30}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRejectsNonexistentWallClock(t *testing.T) {
	h, _ := newApptFixture()

	// Vienna springs forward over 02:00-03:00 on 2026-03-29.
	req := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"client-1","starts_at":"2026-03-29T02:30","duration_min":30}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRejectsForeignClient(t *testing.T) {
	h, _ := newApptFixture()

	req := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"someone-elses-client","starts_at":"2026-03-02T10:00","duration_min":30}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateExcludesOwnInterval(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)

	// Shifting [10:00,10:30) to [10:15,10:45) overlaps only the appointment
	// being edited, which must not count against itself.
	req := businessRequest(http.MethodPut, "/api/v1/appointments/appt-1",
		`{"client_id":"client-1","starts_at":"2026-03-02T10:15","duration_min":30}`)
	req.SetPathValue("id", "appt-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if got := store.appts["appt-1"].StartsAt; !got.Equal(viennaInstant(t, "2026-03-02T10:15")) {
		t.Fatalf("reschedule not applied, starts at %v", got)
	}
}

func TestUpdateStillChecksOtherAppointments(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)
	seedBooked(store, t, "appt-2", "client-2", "2026-03-02T11:00", 30)

	req := businessRequest(http.MethodPut, "/api/v1/appointments/appt-1",
		`{"client_id":"client-1","starts_at":"2026-03-02T11:15","duration_min":30}`)
	req.SetPathValue("id", "appt-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
	var resp conflictResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if resp.Conflict.ClientName != "Ben Huber" {
		t.Fatalf("conflict client = %q, want Ben Huber", resp.Conflict.ClientName)
	}
}

func TestCancelThenSlotReusable(t *testing.T) {
	h, store := newApptFixture()
	seedBooked(store, t, "appt-1", "client-1", "2026-03-02T10:00", 30)

	cancelReq := businessRequest(http.MethodPost, "/api/v1/appointments/appt-1/cancel", "")
	cancelReq.SetPathValue("id", "appt-1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, cancelReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d; body %s", rec.Code, rec.Body.String())
	}

	createReq := businessRequest(http.MethodPost, "/api/v1/appointments",
		`{"client_id":"client-2","starts_at":"2026-03-02T10:00","duration_min":30}`)
	rec = httptest.NewRecorder()
	h.Create(rec, createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("slot freed by cancellation must be bookable: status = %d, body %s", rec.Code, rec.Body.String())
	}
}
