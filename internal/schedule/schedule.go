// Package schedule sends texts at a later time through the outbox.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/jobs"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweep is how often due messages are re-armed.
const DefaultSweep = "@every 1m"

const tagPrefix = "scheduled_sms_"

var (
	// ErrNotFound is returned for unknown scheduled messages.
	ErrNotFound = errors.New("scheduled message not found")
	// ErrNotPending is returned when cancelling a message that already
	// finished.
	ErrNotPending = errors.New("scheduled message is not pending")
	// ErrInvalid is returned for messages without an address or body.
	ErrInvalid = errors.New("scheduled message needs an address and a body")
)

// Tag is the job tag of scheduled message id.
func Tag(id int64) string {
	return tagPrefix + strconv.FormatInt(id, 10)
}

// TextSender sends one text now.
type TextSender interface {
	Send(ctx context.Context, addr, body string) (outbox.Result, error)
}

// Scheduler arms one job per pending message and sweeps for due ones.
type Scheduler struct {
	db     *store.DB
	runner *jobs.Runner
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time

	cron  *cron.Cron
	sweep string
}

// New creates a scheduler. An empty sweep uses DefaultSweep.
func New(db *store.DB, runner *jobs.Runner, sender TextSender, b *bus.Bus, sweep string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweep == "" {
		sweep = DefaultSweep
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", sweep, err)
	}
	return &Scheduler{
		db:     db,
		runner: runner,
		sender: sender,
		bus:    b,
		logger: logger,
		now:    time.Now,
		cron:   cron.New(cron.WithParser(parser)),
		sweep:  sweep,
	}, nil
}

// Start begins the periodic sweep.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.sweep, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("scheduled message sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("add sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("message scheduler started", zap.String("sweep", s.sweep))
	return nil
}

// Stop ends the sweep and waits for a running one.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Schedule stores a pending message for at and arms its job.
func (s *Scheduler) Schedule(ctx context.Context, threadID int64, addr, body string, at time.Time) (store.ScheduledMessage, error) {
	if strings.TrimSpace(addr) == "" || strings.TrimSpace(body) == "" {
		return store.ScheduledMessage{}, ErrInvalid
	}
	m := store.ScheduledMessage{
		ThreadID:    threadID,
		Address:     addr,
		Body:        body,
		ScheduledAt: at.UnixMilli(),
		Status:      store.ScheduledPending,
	}
	id, err := s.db.InsertScheduled(ctx, &m)
	if err != nil {
		return store.ScheduledMessage{}, fmt.Errorf("store scheduled message: %w", err)
	}
	m.ID = id
	s.arm(m)
	s.logger.Info("message scheduled", zap.Int64("id", id), zap.Time("at", at))
	return m, nil
}

// Cancel marks a pending message cancelled and drops its job.
func (s *Scheduler) Cancel(ctx context.Context, id int64) error {
	ok, err := s.db.FinishScheduled(ctx, id, store.ScheduledCancelled, "")
	if err != nil {
		return fmt.Errorf("cancel scheduled message %d: %w", id, err)
	}
	s.runner.Cancel(Tag(id))
	if ok {
		s.logger.Info("scheduled message cancelled", zap.Int64("id", id))
		return nil
	}
	m, err := s.db.GetScheduled(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel scheduled message %d: %w", id, err)
	}
	if m == nil {
		return fmt.Errorf("cancel scheduled message %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("cancel scheduled message %d (%s): %w", id, m.Status, ErrNotPending)
}

// List returns the scheduled messages of a thread, or all when threadID
// is 0.
func (s *Scheduler) List(ctx context.Context, threadID int64) ([]store.ScheduledMessage, error) {
	return s.db.ListScheduled(ctx, threadID)
}

// Restore re-arms every pending message, as after a restart.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	all, err := s.db.ListScheduled(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list scheduled messages: %w", err)
	}
	n := 0
	for _, m := range all {
		if m.Status != store.ScheduledPending {
			continue
		}
		s.arm(m)
		n++
	}
	if n > 0 {
		s.logger.Info("scheduled messages restored", zap.Int("count", n))
	}
	return n, nil
}

// Sweep arms due pending messages that have no job waiting or running.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	due, err := s.db.PendingScheduled(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("list due messages: %w", err)
	}
	n := 0
	for _, m := range due {
		if s.runner.Active(Tag(m.ID)) {
			continue
		}
		s.arm(m)
		n++
	}
	if n > 0 {
		s.logger.Info("due scheduled messages re-armed", zap.Int("count", n))
	}
	return n, nil
}

func (s *Scheduler) arm(m store.ScheduledMessage) {
	delay := time.UnixMilli(m.ScheduledAt).Sub(s.now())
	id := m.ID
	s.runner.ScheduleOnce(Tag(id), jobs.Replace, delay, Tag(id), func(ctx context.Context) {
		s.fire(ctx, id)
	})
}

func (s *Scheduler) fire(ctx context.Context, id int64) {
	m, err := s.db.GetScheduled(ctx, id)
	if err != nil {
		s.logger.Error("failed to load scheduled message", zap.Int64("id", id), zap.Error(err))
		return
	}
	if m == nil || m.Status != store.ScheduledPending {
		s.logger.Debug("skipping scheduled message that is no longer pending", zap.Int64("id", id))
		return
	}

	status, errMsg := store.ScheduledSent, ""
	res, err := s.sender.Send(ctx, m.Address, m.Body)
	if err != nil {
		status, errMsg = store.ScheduledFailed, err.Error()
		s.logger.Warn("scheduled send failed", zap.Int64("id", id), zap.Error(err))
	} else {
		s.logger.Info("scheduled message sent", zap.Int64("id", id), zap.String("token", res.Token))
	}

	// Finishing uses a fresh context so a cancelled job still records the send.
	if _, err := s.db.FinishScheduled(context.WithoutCancel(ctx), id, status, errMsg); err != nil {
		s.logger.Error("failed to record scheduled send", zap.Int64("id", id), zap.Error(err))
	}
	if s.bus != nil {
		m.Status, m.ErrorMessage = status, errMsg
		s.bus.Emit(bus.KindScheduledFinished, *m)
	}
}
