package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"terminbuddy/internal/email"
)

// fakeStore keeps candidates and lock rows in memory, applying the same
// half-open window filter and uniqueness rule the SQL store applies.
type fakeStore struct {
	candidates []Candidate
	locks      map[string]bool // appointmentID + "/" + kind
}

func newFakeStore(candidates ...Candidate) *fakeStore {
	return &fakeStore{candidates: candidates, locks: map[string]bool{}}
}

func (s *fakeStore) lockKey(kind Kind, appointmentID string) string {
	return appointmentID + "/" + string(kind)
}

func (s *fakeStore) ListDue(_ context.Context, kind Kind, from, to time.Time, limit int) ([]Candidate, error) {
	var due []Candidate
	for _, c := range s.candidates {
		if c.StartsAt.Before(from) || !c.StartsAt.Before(to) {
			continue
		}
		if c.ClientEmail == "" {
			continue
		}
		if s.locks[s.lockKey(kind, c.AppointmentID)] {
			continue
		}
		due = append(due, c)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeStore) Claim(_ context.Context, kind Kind, c Candidate) (bool, error) {
	key := s.lockKey(kind, c.AppointmentID)
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *fakeStore) Release(_ context.Context, kind Kind, appointmentID string) error {
	delete(s.locks, s.lockKey(kind, appointmentID))
	return nil
}

type fakeSender struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeSender) Send(to string, _ email.Message) error {
	if err := f.failFor[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, to)
	return nil
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func candidateAt(id string, startsAt time.Time) Candidate {
	return Candidate{
		AppointmentID: id,
		BusinessID:    "biz-1",
		BusinessName:  "Barber Central",
		Timezone:      "Europe/Vienna",
		ClientName:    "Anna",
		ClientEmail:   id + "@example.com",
		StartsAt:      startsAt,
		EndsAt:        startsAt.Add(30 * time.Minute),
	}
}

func newTestDispatcher(store Store, sender email.Sender, cfg Config) *Dispatcher {
	d := NewDispatcher(store, sender, slog.New(slog.DiscardHandler), cfg)
	d.now = func() time.Time { return testNow }
	return d
}

func TestRun_WindowSelection(t *testing.T) {
	store := newFakeStore(
		candidateAt("in-window-early", testNow.Add(1440*time.Minute-4*time.Minute)),
		candidateAt("in-window-late", testNow.Add(1440*time.Minute+4*time.Minute)),
		candidateAt("outside-window", testNow.Add(1450*time.Minute)),
		candidateAt("window-upper-bound", testNow.Add(1445*time.Minute)), // to is exclusive
	)
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender, Config{Enable24Hour: true})

	summaries, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Kind != Kind24Hour || s.LeadMinutes != 1440 || s.WindowMinutes != 5 {
		t.Fatalf("unexpected summary meta: %+v", s)
	}
	if s.Total != 2 || s.Sent != 2 || s.Skipped != 0 || s.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", s)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := newFakeStore(candidateAt("appt-1", testNow.Add(24*time.Hour)))
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender, Config{Enable24Hour: true})

	first, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first[0].Sent != 1 {
		t.Fatalf("first run should send: %+v", first[0])
	}

	// The surviving lock row excludes the appointment from the next pass.
	second, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Sent != 0 || second[0].Total != 0 {
		t.Fatalf("second run must not re-send: %+v", second[0])
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 email, got %d", len(sender.sent))
	}
}

func TestRun_ConcurrentClaimSkips(t *testing.T) {
	store := newFakeStore(candidateAt("appt-1", testNow.Add(24*time.Hour)))
	// Simulate an overlapping cron run that already claimed the lock between
	// our candidate query and our claim.
	store.locks[store.lockKey(Kind24Hour, "appt-1")] = true

	sender := &fakeSender{}
	d := &Dispatcher{
		store:  store,
		sender: sender,
		logger: slog.New(slog.DiscardHandler),
		cfg:    Config{Enable24Hour: true, Window: 5 * time.Minute, BatchLimit: 250},
		now:    func() time.Time { return testNow },
	}

	// Bypass ListDue's lock filtering by calling runKind with the candidate
	// visible: rebuild the store listing without the lock filter.
	listStore := &claimRacedStore{fakeStore: store}
	d.store = listStore

	summaries, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := summaries[0]
	if s.Skipped != 1 || s.Sent != 0 {
		t.Fatalf("raced claim must count as skipped: %+v", s)
	}
	if len(sender.sent) != 0 {
		t.Fatal("raced claim must not send")
	}
}

// claimRacedStore lists candidates without the lock filter, mimicking the gap
// between the SQL select and the lock insert.
type claimRacedStore struct {
	*fakeStore
}

func (s *claimRacedStore) ListDue(_ context.Context, _ Kind, from, to time.Time, limit int) ([]Candidate, error) {
	var due []Candidate
	for _, c := range s.candidates {
		if c.StartsAt.Before(from) || !c.StartsAt.Before(to) {
			continue
		}
		due = append(due, c)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func TestRun_SendFailureReleasesLock(t *testing.T) {
	c := candidateAt("appt-1", testNow.Add(24*time.Hour))
	store := newFakeStore(c)
	sender := &fakeSender{failFor: map[string]error{c.ClientEmail: errors.New("smtp down")}}
	d := newTestDispatcher(store, sender, Config{Enable24Hour: true})

	first, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first[0].Failed != 1 || first[0].Sent != 0 {
		t.Fatalf("expected failure: %+v", first[0])
	}
	if store.locks[store.lockKey(Kind24Hour, c.AppointmentID)] {
		t.Fatal("lock must be released after a failed send")
	}

	// Next pass retries and succeeds once SMTP recovers.
	sender.failFor = nil
	second, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].Sent != 1 {
		t.Fatalf("retry pass should send: %+v", second[0])
	}
}

func TestRun_KindFlags(t *testing.T) {
	store := newFakeStore(
		candidateAt("near", testNow.Add(2*time.Hour)),
		candidateAt("far", testNow.Add(24*time.Hour)),
	)
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender, Config{Enable2Hour: true})

	summaries, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Kind != Kind2Hour {
		t.Fatalf("expected only the 2h kind: %+v", summaries)
	}
	if summaries[0].Sent != 1 {
		t.Fatalf("expected 1 send for the 2h kind: %+v", summaries[0])
	}
}
