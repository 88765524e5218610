// Package housekeeping runs the periodic jobs a live node needs outside
// of message handling: re-announcing liveness on the bus and flushing
// telemetry counters. It generalizes the teacher's engine.Scheduler,
// which drove cron/interval-triggered flow execution, to this node's
// fixed pair of maintenance jobs.
package housekeeping

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of periodic work. Errors are logged, not propagated;
// a single failing tick must not stop the schedule.
type Job func() error

// Scheduler owns a cron instance and the jobs registered against it.
type Scheduler struct {
	log   *zap.Logger
	cron  *cron.Cron
	mu    sync.Mutex
	names map[cron.EntryID]string
}

// New builds a Scheduler. The underlying cron.Cron uses the standard
// five-field parser plus the "@every" descriptor shorthand.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		log:   log,
		cron:  cron.New(),
		names: make(map[cron.EntryID]string),
	}
}

// AddJob registers job under spec (a cron expression or "@every 30s"
// style descriptor) and names it for logging.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		if err := job(); err != nil {
			s.log.Warn("housekeeping: job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("housekeeping: add job %q: %w", name, err)
	}
	s.names[id] = name
	return nil
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
