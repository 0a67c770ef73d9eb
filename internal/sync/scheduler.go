package sync

import (
	"sync/atomic"
	"time"

	"github.com/matheus3301/smsync/internal/jobs"
)

// JobName is the single job every conversation rebuild runs under.
const JobName = "conversation-sync"

// Scheduler folds rebuild requests into the conversation-sync job.
type Scheduler struct {
	runner   *jobs.Runner
	debounce time.Duration
	cycle    jobs.Func
	requests atomic.Int64
}

// NewScheduler creates a scheduler that runs cycle debounce after the
// first of a burst of triggers.
func NewScheduler(runner *jobs.Runner, debounce time.Duration, cycle jobs.Func) *Scheduler {
	return &Scheduler{runner: runner, debounce: debounce, cycle: cycle}
}

// Trigger requests a rebuild. A pending rebuild absorbs the request; one
// in flight gets at most one follow-up.
func (s *Scheduler) Trigger() {
	s.requests.Add(1)
	s.runner.ScheduleOnce(JobName, jobs.Coalesce, s.debounce, "", s.cycle)
}

// Requests returns how many times Trigger was called.
func (s *Scheduler) Requests() int64 {
	return s.requests.Load()
}
