// Package scheduler provides cron-based job scheduling for DietCoach.
//
// Medication reminders register recurring jobs here; the engine is
// robfig/cron with standard 5-field expressions (minute precision).
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler registers and cancels recurring jobs. The reminder service
// depends on this interface so tests can substitute a fake engine.
type Scheduler interface {
	// AddCronJob schedules a task using a 5-field cron expression and
	// returns the entry id used to cancel it.
	AddCronJob(expr string, task func()) (int, error)

	// Remove cancels a previously scheduled job.
	Remove(id int)

	// Start begins dispatching scheduled jobs.
	Start()

	// Stop stops the scheduler and waits for running jobs to finish.
	Stop()
}

// CronScheduler implements Scheduler over a robfig/cron instance.
type CronScheduler struct {
	cron *cron.Cron
}

// compile-time interface check
var _ Scheduler = (*CronScheduler)(nil)

// NewCronScheduler creates a cron scheduler. It does not start dispatching
// until Start is called, so recovery can register jobs first.
func NewCronScheduler() *CronScheduler {
	// Standard 5-field parser (min, hour, dom, month, dow) with panic recovery
	// so one failing job cannot kill the dispatch loop.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &CronScheduler{cron: c}
}

// AddCronJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *CronScheduler) AddCronJob(expr string, task func()) (int, error) {
	id, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return 0, err
	}
	slog.Debug("CronScheduler.AddCronJob: job registered", "expr", expr, "entryID", int(id))
	return int(id), nil
}

// Remove cancels the job with the given entry id.
func (s *CronScheduler) Remove(id int) {
	s.cron.Remove(cron.EntryID(id))
	slog.Debug("CronScheduler.Remove: job removed", "entryID", id)
}

// Start begins dispatching scheduled jobs.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
