// Package sync keeps the conversation cache consistent with the message
// store.
package sync

import (
	"context"
	"errors"
	"strconv"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/cache"
	"github.com/matheus3301/smsync/internal/jobs"
	"github.com/matheus3301/smsync/internal/merge"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/status"
	"github.com/matheus3301/smsync/internal/store"
	"go.uber.org/zap"
)

// LastCycleKey is the checkpoint holding the end time of the last cycle.
const LastCycleKey = "last_cycle_at"

// Merger produces one merged conversation list.
type Merger interface {
	Run(ctx context.Context) (merge.Result, error)
}

// Report describes one finished cycle.
type Report struct {
	At            time.Time
	Generation    int64
	Conversations int
	Failed        []provider.Table
	// Kept is set when the cycle left the previous generation in place.
	Kept bool
	Err  error
}

// Deps are the collaborators of an Engine. Status and Bus may be nil.
type Deps struct {
	Source   provider.Store
	Merger   Merger
	Cache    *cache.Cache
	DB       *store.DB
	Status   *status.Machine
	Bus      *bus.Bus
	Runner   *jobs.Runner
	Debounce time.Duration
	Logger   *zap.Logger
}

// Engine rebuilds the conversation cache whenever the store changes or a
// rebuild is requested.
type Engine struct {
	source    provider.Store
	merger    Merger
	cache     *cache.Cache
	db        *store.DB
	status    *status.Machine
	bus       *bus.Bus
	scheduler *Scheduler
	logger    *zap.Logger

	sub    *provider.Subscription
	cycles atomic.Int64
	mu     gosync.RWMutex
	last   Report
}

// NewEngine creates a sync engine.
func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		source: d.Source,
		merger: d.Merger,
		cache:  d.Cache,
		db:     d.DB,
		status: d.Status,
		bus:    d.Bus,
		logger: logger,
	}
	e.scheduler = NewScheduler(d.Runner, d.Debounce, func(ctx context.Context) { e.RunCycle(ctx) })
	return e
}

// Start subscribes to store changes and schedules the first rebuild.
func (e *Engine) Start() {
	e.sub = e.source.Subscribe(func(c provider.Change) {
		if e.bus != nil {
			e.bus.Emit(bus.KindProviderChanged, c)
		}
		e.Trigger()
	})
	e.Trigger()
}

// Stop drops the store subscription.
func (e *Engine) Stop() {
	e.sub.Close()
}

// Trigger requests a rebuild.
func (e *Engine) Trigger() {
	e.scheduler.Trigger()
}

// Cycles returns how many cycles have run.
func (e *Engine) Cycles() int64 {
	return e.cycles.Load()
}

// LastReport returns the outcome of the most recent cycle.
func (e *Engine) LastReport() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// RunCycle merges a fresh snapshot and replaces the cache with it. A cycle
// where nothing could be read keeps the previous generation.
func (e *Engine) RunCycle(ctx context.Context) Report {
	e.cycles.Add(1)
	start := time.Now()
	rep := e.cycle(ctx)
	rep.At = time.Now()

	fields := []zap.Field{
		zap.Int64("generation", rep.Generation),
		zap.Int("conversations", rep.Conversations),
		zap.Duration("took", rep.At.Sub(start)),
	}
	switch {
	case rep.Err != nil:
		e.logger.Error("sync cycle failed, cache kept", append(fields, zap.Error(rep.Err))...)
	case len(rep.Failed) > 0:
		e.logger.Warn("sync cycle partial", append(fields, zap.Int("failed_tables", len(rep.Failed)))...)
	default:
		e.logger.Info("sync cycle completed", fields...)
	}

	next := status.Ready
	if rep.Err != nil || len(rep.Failed) > 0 {
		next = status.Degraded
	}
	e.settle(next)

	if rep.Err == nil && e.db != nil {
		if err := e.db.SetCheckpoint(ctx, LastCycleKey, strconv.FormatInt(rep.At.UnixMilli(), 10)); err != nil {
			e.logger.Warn("failed to record sync checkpoint", zap.Error(err))
		}
	}

	e.mu.Lock()
	e.last = rep
	e.mu.Unlock()
	if e.bus != nil {
		e.bus.Emit(bus.KindSyncCycleDone, rep)
	}
	return rep
}

func (e *Engine) cycle(ctx context.Context) Report {
	res, err := e.merger.Run(ctx)
	if err != nil {
		return Report{Kept: true, Err: err}
	}
	rep := Report{Failed: res.Failed, Conversations: len(res.Conversations)}
	if res.Unavailable() {
		rep.Kept = true
		rep.Err = provider.ErrSourceUnavailable
		return rep
	}
	gen, err := e.cache.Replace(ctx, res.Conversations)
	if err != nil {
		rep.Kept = true
		rep.Err = err
		return rep
	}
	rep.Generation = gen
	return rep
}

func (e *Engine) settle(to status.State) {
	if e.status == nil {
		return
	}
	var errs []error
	if e.status.Current() == status.Booting {
		errs = append(errs, e.status.Settle(status.Syncing))
	}
	errs = append(errs, e.status.Settle(to))
	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("status not updated", zap.String("want", string(to)), zap.Error(err))
	}
}
