// Package jobs runs named one-shot jobs serially on a single worker.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Policy decides what ScheduleOnce does when a job with the same name
// already exists.
type Policy int

const (
	// KeepExisting ignores the request while a job of that name is
	// pending or running.
	KeepExisting Policy = iota
	// Coalesce ignores the request while a job is pending. While one is
	// running it arranges at most one follow-up run after it.
	Coalesce
	// Replace drops the pending job, cancels the running one, and
	// schedules the new one.
	Replace
)

func (p Policy) String() string {
	switch p {
	case KeepExisting:
		return "keep_existing"
	case Coalesce:
		return "coalesce"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Func is the body of a job. ctx is cancelled when the job is replaced,
// cancelled by tag, or the runner stops.
type Func func(ctx context.Context)

type job struct {
	id     uint64
	name   string
	tag    string
	delay  time.Duration
	fn     Func
	timer  *time.Timer
	cancel context.CancelFunc
}

// Handle identifies one scheduled job.
type Handle struct {
	r  *Runner
	id uint64
}

// Cancel drops the job if it has not finished. It reports whether
// anything was cancelled.
func (h Handle) Cancel() bool {
	if h.r == nil {
		return false
	}
	return h.r.cancelWhere(func(j *job) bool { return j.id == h.id }) > 0
}

// Runner executes jobs one at a time on its own goroutine.
type Runner struct {
	mu       sync.Mutex
	nextID   uint64
	pending  map[string]*job // armed or queued, by name
	followUp map[string]*job // waiting for the running job of that name
	running  *job
	queue    []*job
	wake     chan struct{}
	stopped  bool

	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner. Jobs may be scheduled before Start; they
// run once the worker is started.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		pending:  make(map[string]*job),
		followUp: make(map[string]*job),
		wake:     make(chan struct{}, 1),
		logger:   logger,
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

// Stop cancels every job and waits for the worker to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	for _, j := range r.pending {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
	clear(r.pending)
	clear(r.followUp)
	r.queue = nil
	if r.running != nil && r.running.cancel != nil {
		r.running.cancel()
	}
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// ScheduleOnce schedules fn to run once after delay under name. tag groups
// jobs for Cancel and may be empty.
func (r *Runner) ScheduleOnce(name string, policy Policy, delay time.Duration, tag string, fn Func) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return Handle{}
	}

	if p, ok := r.pending[name]; ok {
		if policy != Replace {
			return Handle{r: r, id: p.id}
		}
		r.dropPending(p)
	}
	if f, ok := r.followUp[name]; ok {
		if policy != Replace {
			return Handle{r: r, id: f.id}
		}
		delete(r.followUp, name)
	}

	j := r.newJob(name, tag, delay, fn)
	if r.running != nil && r.running.name == name {
		switch policy {
		case KeepExisting:
			return Handle{r: r, id: r.running.id}
		case Coalesce:
			r.followUp[name] = j
			r.logger.Debug("job folded into follow-up", zap.String("job", name))
			return Handle{r: r, id: j.id}
		case Replace:
			r.running.cancel()
		}
	}
	r.arm(j)
	return Handle{r: r, id: j.id}
}

// Cancel drops every pending job with tag and cancels a running one. It
// returns how many jobs were affected.
func (r *Runner) Cancel(tag string) int {
	if tag == "" {
		return 0
	}
	return r.cancelWhere(func(j *job) bool { return j.tag == tag })
}

// Pending reports whether a job named name is waiting to run.
func (r *Runner) Pending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, p := r.pending[name]
	_, f := r.followUp[name]
	return p || f
}

// Active reports whether a job named name is waiting or running.
func (r *Runner) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, p := r.pending[name]
	_, f := r.followUp[name]
	return p || f || (r.running != nil && r.running.name == name)
}

func (r *Runner) newJob(name, tag string, delay time.Duration, fn Func) *job {
	r.nextID++
	return &job{id: r.nextID, name: name, tag: tag, delay: max(delay, 0), fn: fn}
}

// arm must be called with r.mu held.
func (r *Runner) arm(j *job) {
	r.pending[j.name] = j
	if j.delay == 0 {
		r.enqueue(j)
		return
	}
	j.timer = time.AfterFunc(j.delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.pending[j.name] == j {
			r.enqueue(j)
		}
	})
}

// enqueue must be called with r.mu held.
func (r *Runner) enqueue(j *job) {
	r.queue = append(r.queue, j)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// dropPending must be called with r.mu held.
func (r *Runner) dropPending(j *job) {
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(r.pending, j.name)
	for i, q := range r.queue {
		if q == j {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
}

func (r *Runner) cancelWhere(match func(*job) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, j := range r.pending {
		if match(j) {
			r.dropPending(j)
			n++
		}
	}
	for name, j := range r.followUp {
		if match(j) {
			delete(r.followUp, name)
			n++
		}
	}
	if r.running != nil && match(r.running) {
		r.running.cancel()
		n++
	}
	return n
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}
		for {
			j, jctx := r.next(ctx)
			if j == nil {
				break
			}
			r.run(jctx, j)
			r.finish(j)
		}
	}
}

func (r *Runner) next(ctx context.Context) (*job, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 || ctx.Err() != nil {
		return nil, nil
	}
	j := r.queue[0]
	r.queue = r.queue[1:]
	delete(r.pending, j.name)
	jctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	r.running = j
	return j, jctx
}

func (r *Runner) run(ctx context.Context, j *job) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", p))
		}
	}()
	start := time.Now()
	j.fn(ctx)
	r.logger.Debug("job finished", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
}

func (r *Runner) finish(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j.cancel()
	r.running = nil
	if f, ok := r.followUp[j.name]; ok {
		delete(r.followUp, j.name)
		if _, taken := r.pending[j.name]; !taken {
			r.arm(f)
		}
	}
}
