package reminder

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

// fakeScheduler records registered jobs and lets tests fire them directly.
type fakeScheduler struct {
	nextID  int
	jobs    map[int]func()
	specs   map[int]string
	removed []int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[int]func()), specs: make(map[int]string)}
}

func (f *fakeScheduler) AddCronJob(expr string, task func()) (int, error) {
	f.nextID++
	f.jobs[f.nextID] = task
	f.specs[f.nextID] = expr
	return f.nextID, nil
}

func (f *fakeScheduler) Remove(id int) {
	delete(f.jobs, id)
	delete(f.specs, id)
	f.removed = append(f.removed, id)
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) fireAll() {
	for _, job := range f.jobs {
		job()
	}
}

// fakeSender records sent messages.
type fakeSender struct {
	sent []sentMessage
}

type sentMessage struct {
	to   string
	body string
}

func (f *fakeSender) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (f *fakeSender) SendMessage(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(t.TempDir(), "reminder.db")))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testMedication(userID string, times []string) models.Medication {
	return models.Medication{
		ID:         "med-1",
		UserID:     userID,
		Name:       "위고비",
		Dosage:     "0.25mg",
		Frequency:  models.FrequencyOnceDaily,
		TimesOfDay: times,
		Active:     true,
		CreatedAt:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), // a Monday
	}
}

func TestRegisterSchedulesEntryPerTime(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	svc := NewService(st, &fakeSender{}, sched)

	med := testMedication("user-1", []string{"08:30", "20:00"})
	med.Frequency = models.FrequencyTwiceDaily
	if err := svc.Register(med); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := svc.EntryCount(med.ID); got != 2 {
		t.Errorf("EntryCount = %d, want 2", got)
	}
	want := map[string]bool{"30 8 * * *": false, "0 20 * * *": false}
	for _, spec := range sched.specs {
		if _, ok := want[spec]; !ok {
			t.Errorf("unexpected cron spec %q", spec)
		}
		want[spec] = true
	}
	for spec, seen := range want {
		if !seen {
			t.Errorf("cron spec %q was not registered", spec)
		}
	}
}

func TestRegisterWeeklyPinsWeekday(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	svc := NewService(st, &fakeSender{}, sched)

	med := testMedication("user-1", []string{"09:00"})
	med.Frequency = models.FrequencyWeekly
	if err := svc.Register(med); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if len(sched.specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(sched.specs))
	}
	for _, spec := range sched.specs {
		// CreatedAt is a Monday, so the reminder fires on weekday 1 only.
		if spec != "0 9 * * 1" {
			t.Errorf("weekly spec = %q, want %q", spec, "0 9 * * 1")
		}
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, &fakeSender{}, newFakeScheduler())

	med := testMedication("user-1", []string{"25:00"})
	if err := svc.Register(med); err == nil {
		t.Error("expected error for invalid reminder time")
	}

	inactive := testMedication("user-1", []string{"09:00"})
	inactive.Active = false
	if err := svc.Register(inactive); err == nil {
		t.Error("expected error for inactive medication")
	}
}

func TestRegisterWithoutTimesIsNoop(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	svc := NewService(st, &fakeSender{}, sched)

	if err := svc.Register(testMedication("user-1", nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := svc.EntryCount("med-1"); got != 0 {
		t.Errorf("EntryCount = %d, want 0", got)
	}
}

func TestReRegisterReplacesEntries(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	svc := NewService(st, &fakeSender{}, sched)

	med := testMedication("user-1", []string{"08:00", "20:00"})
	if err := svc.Register(med); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	med.TimesOfDay = []string{"09:00"}
	if err := svc.Register(med); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	if got := svc.EntryCount(med.ID); got != 1 {
		t.Errorf("EntryCount = %d, want 1", got)
	}
	if len(sched.removed) != 2 {
		t.Errorf("removed %d entries, want 2", len(sched.removed))
	}
}

func TestDispatchSendsToProfilePhone(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	sender := &fakeSender{}
	svc := NewService(st, sender, sched)

	if err := st.SaveProfile(models.Profile{
		UserID:      "user-1",
		PhoneNumber: "821012345678",
	}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := svc.Register(testMedication("user-1", []string{"09:00"})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	sched.fireAll()

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(sender.sent))
	}
	if sender.sent[0].to != "821012345678" {
		t.Errorf("sent to %q, want profile phone", sender.sent[0].to)
	}
	if !strings.Contains(sender.sent[0].body, "위고비") || !strings.Contains(sender.sent[0].body, "0.25mg") {
		t.Errorf("reminder body %q missing medication name or dosage", sender.sent[0].body)
	}
}

func TestDispatchSkipsWithoutPhone(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	sender := &fakeSender{}
	svc := NewService(st, sender, sched)

	// No profile saved at all: the reminder is skipped, not an error.
	if err := svc.Register(testMedication("user-1", []string{"09:00"})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sched.fireAll()

	if len(sender.sent) != 0 {
		t.Errorf("expected no sent messages, got %d", len(sender.sent))
	}
}

func TestRecoverRegistersActiveMedications(t *testing.T) {
	st := newTestStore(t)
	sched := newFakeScheduler()
	svc := NewService(st, &fakeSender{}, sched)

	active := testMedication("user-1", []string{"09:00"})
	if err := st.SaveMedication(active); err != nil {
		t.Fatalf("SaveMedication failed: %v", err)
	}
	inactive := testMedication("user-1", []string{"10:00"})
	inactive.ID = "med-2"
	inactive.Active = false
	if err := st.SaveMedication(inactive); err != nil {
		t.Fatalf("SaveMedication failed: %v", err)
	}

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	if got := svc.EntryCount("med-1"); got != 1 {
		t.Errorf("active medication entries = %d, want 1", got)
	}
	if got := svc.EntryCount("med-2"); got != 0 {
		t.Errorf("inactive medication entries = %d, want 0", got)
	}
}
