package scheduler

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs the refresh job on a cron schedule. A tick that fires
// while the previous run is still going is skipped, not queued.
type Scheduler struct {
	Cron    *cron.Cron
	running atomic.Bool
}

// NewScheduler creates a Scheduler. Cron specs include a seconds field.
func NewScheduler() *Scheduler {
	return &Scheduler{Cron: cron.New(cron.WithSeconds())}
}

// Register adds the refresh job under the given cron spec.
func (s *Scheduler) Register(spec string, job func()) error {
	if _, err := s.Cron.AddFunc(spec, s.guard(job)); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	return nil
}

func (s *Scheduler) guard(job func()) func() {
	return func() {
		if !s.running.CompareAndSwap(false, true) {
			log.Println("[WARN] previous refresh still running, skipping tick")
			return
		}
		defer s.running.Store(false)
		job()
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}
