package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReminderEnqueuer submits a validation reminder sweep.
type ReminderEnqueuer interface {
	EnqueueValidationReminder(ctx context.Context) error
}

// Scheduler triggers periodic sweeps. Overlapping runs are skipped.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer ReminderEnqueuer
	timeout  time.Duration
}

func NewScheduler(enqueuer ReminderEnqueuer, spec string) (*Scheduler, error) {
	logger := cron.PrintfLogger(log.Default())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		enqueuer: enqueuer,
		timeout:  10 * time.Second,
	}
	if _, err := s.cron.AddFunc(spec, s.RunReminderSweep); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunReminderSweep enqueues one sweep immediately.
func (s *Scheduler) RunReminderSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.enqueuer.EnqueueValidationReminder(ctx); err != nil {
		log.Printf("ERROR scheduling validation reminders: %v", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("Scheduler started.")
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("Warning: scheduler stop interrupted: %v", ctx.Err())
	}
}
