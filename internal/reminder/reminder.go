// Package reminder schedules medication reminder SMS messages.
//
// Each active medication with configured times of day maps to cron entries;
// when an entry fires, the user's current phone number is looked up and a
// reminder is sent. Schedules are derived entirely from the medications
// table, so recovery after a restart is re-registration, not replay.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/DietCoach/internal/messaging"
	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/scheduler"
	"github.com/BTreeMap/DietCoach/internal/store"
)

// Service binds active medications to cron entries that send reminder SMS.
type Service struct {
	store  store.Store
	sender messaging.Sender
	sched  scheduler.Scheduler

	mu      sync.Mutex
	entries map[string][]int // medication id -> cron entry ids
}

// NewService creates a reminder service over the given store, sender, and
// scheduler. Call Recover to register entries for existing medications.
func NewService(st store.Store, sender messaging.Sender, sched scheduler.Scheduler) *Service {
	return &Service{
		store:   st,
		sender:  sender,
		sched:   sched,
		entries: make(map[string][]int),
	}
}

// Recover registers reminder entries for every active medication in the
// store. Individual registration failures are logged and skipped so one bad
// record cannot block startup.
func (s *Service) Recover(ctx context.Context) error {
	meds, err := s.store.ListAllActiveMedications()
	if err != nil {
		return fmt.Errorf("failed to list active medications: %w", err)
	}

	registered := 0
	for _, med := range meds {
		if err := s.Register(med); err != nil {
			slog.Warn("Service.Recover: skipping medication", "medicationID", med.ID, "error", err)
			continue
		}
		registered++
	}
	slog.Info("Service.Recover: reminder schedules restored", "medications", len(meds), "registered", registered)
	return nil
}

// Register schedules reminder entries for one medication. Medications
// without configured times of day have nothing to schedule and register
// zero entries. Registering an already-registered medication replaces its
// entries, so updates re-register safely.
func (s *Service) Register(med models.Medication) error {
	if !med.Active {
		return fmt.Errorf("medication %s is not active", med.ID)
	}

	specs, err := cronSpecs(med)
	if err != nil {
		return err
	}

	s.Unregister(med.ID)
	if len(specs) == 0 {
		slog.Debug("Service.Register: no reminder times configured", "medicationID", med.ID)
		return nil
	}

	ids := make([]int, 0, len(specs))
	for _, spec := range specs {
		m := med
		id, err := s.sched.AddCronJob(spec, func() { s.dispatch(m) })
		if err != nil {
			for _, added := range ids {
				s.sched.Remove(added)
			}
			return fmt.Errorf("failed to schedule reminder for medication %s: %w", med.ID, err)
		}
		ids = append(ids, id)
	}

	s.mu.Lock()
	s.entries[med.ID] = ids
	s.mu.Unlock()

	slog.Debug("Service.Register: reminders scheduled", "medicationID", med.ID, "name", med.Name, "entries", len(ids))
	return nil
}

// Unregister removes every scheduled entry for a medication.
func (s *Service) Unregister(medicationID string) {
	s.mu.Lock()
	ids := s.entries[medicationID]
	delete(s.entries, medicationID)
	s.mu.Unlock()

	for _, id := range ids {
		s.sched.Remove(id)
	}
	if len(ids) > 0 {
		slog.Debug("Service.Unregister: reminders removed", "medicationID", medicationID, "entries", len(ids))
	}
}

// EntryCount reports how many cron entries a medication currently holds.
func (s *Service) EntryCount(medicationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[medicationID])
}

// dispatch sends one reminder. The phone number is resolved at fire time so
// profile changes take effect without re-registration. Failures are logged,
// never propagated; a missed reminder must not disturb the scheduler.
func (s *Service) dispatch(med models.Medication) {
	profile, err := s.store.GetProfile(med.UserID)
	if err != nil {
		slog.Error("Service.dispatch: profile lookup failed", "medicationID", med.ID, "userID", med.UserID, "error", err)
		return
	}
	if profile == nil || profile.PhoneNumber == "" {
		slog.Debug("Service.dispatch: no phone number on file, reminder skipped", "medicationID", med.ID, "userID", med.UserID)
		return
	}

	if err := s.sender.SendMessage(context.Background(), profile.PhoneNumber, reminderMessage(med)); err != nil {
		slog.Error("Service.dispatch: reminder send failed", "medicationID", med.ID, "userID", med.UserID, "error", err)
		return
	}
	slog.Info("Service.dispatch: reminder sent", "medicationID", med.ID, "name", med.Name)
}

// reminderMessage renders the SMS body for one medication dose.
func reminderMessage(med models.Medication) string {
	if med.Dosage != "" {
		return fmt.Sprintf("💊 %s %s 복용 시간입니다.", med.Name, med.Dosage)
	}
	return fmt.Sprintf("💊 %s 복용 시간입니다.", med.Name)
}

// cronSpecs converts a medication's times of day into cron expressions.
// Daily frequencies fire every day at each configured time; weekly
// medications fire only on the weekday the medication was created, so a
// weekly dose is not reminded seven times over.
func cronSpecs(med models.Medication) ([]string, error) {
	dow := "*"
	if med.Frequency == models.FrequencyWeekly {
		dow = strconv.Itoa(int(med.CreatedAt.Weekday()))
	}

	specs := make([]string, 0, len(med.TimesOfDay))
	for _, tod := range med.TimesOfDay {
		hour, minute, err := parseTimeOfDay(tod)
		if err != nil {
			return nil, fmt.Errorf("medication %s has invalid reminder time %q: %w", med.ID, tod, err)
		}
		specs = append(specs, fmt.Sprintf("%d %d * * %s", minute, hour, dow))
	}
	return specs, nil
}

// parseTimeOfDay parses an "HH:MM" clock time.
func parseTimeOfDay(tod string) (hour, minute int, err error) {
	parts := strings.Split(tod, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}
