// Package conversation applies whole-thread actions to the message store.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/smsync/internal/provider"
)

// ErrInvalidThread is returned for a zero or negative thread id.
var ErrInvalidThread = errors.New("invalid thread id")

// Trigger schedules a conversation rebuild.
type Trigger interface {
	Trigger()
}

var tables = []provider.Table{provider.TableText, provider.TableMultimedia}

// Actions mutates every row of a thread across both tables.
type Actions struct {
	store   provider.Store
	trigger Trigger
	logger  *zap.Logger
}

// NewActions creates an Actions. trigger may be nil.
func NewActions(s provider.Store, trigger Trigger, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actions{store: s, trigger: trigger, logger: logger}
}

// MarkRead sets the read flag of every row of thread and returns the number
// of rows changed.
func (a *Actions) MarkRead(ctx context.Context, thread int64, read bool) (int64, error) {
	if thread <= 0 {
		return 0, ErrInvalidThread
	}
	sel := provider.Selector{ThreadID: thread}
	var total int64
	for _, t := range tables {
		n, err := a.store.Update(ctx, t, sel, provider.Patch{Read: &read})
		if err != nil {
			return total, fmt.Errorf("mark %s rows of thread %d: %w", t, thread, err)
		}
		total += n
	}
	a.logger.Debug("thread read state changed",
		zap.Int64("thread_id", thread), zap.Bool("read", read), zap.Int64("rows", total))
	a.rebuild()
	return total, nil
}

// Delete removes every row of thread and returns the number removed.
func (a *Actions) Delete(ctx context.Context, thread int64) (int64, error) {
	if thread <= 0 {
		return 0, ErrInvalidThread
	}
	sel := provider.Selector{ThreadID: thread}
	var total int64
	for _, t := range tables {
		n, err := a.store.Delete(ctx, t, sel)
		if err != nil {
			a.rebuild()
			return total, fmt.Errorf("delete %s rows of thread %d: %w", t, thread, err)
		}
		total += n
	}
	a.logger.Info("conversation deleted", zap.Int64("thread_id", thread), zap.Int64("rows", total))
	a.rebuild()
	return total, nil
}

func (a *Actions) rebuild() {
	if a.trigger != nil {
		a.trigger.Trigger()
	}
}
