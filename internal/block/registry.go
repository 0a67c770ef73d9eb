// Package block keeps the set of blocked numbers that hides conversations.
package block

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidNumber is returned for numbers that normalize to nothing.
var ErrInvalidNumber = errors.New("number has no digits")

const importCheckpoint = "block_import_done"

// Trigger schedules a conversation rebuild.
type Trigger interface {
	Trigger()
}

// Set is a snapshot of normalized blocked numbers.
type Set map[string]struct{}

// Contains reports whether n, normalized, is in the set.
func (s Set) Contains(n string) bool {
	k := address.Normalize(n)
	if k == "" {
		return false
	}
	_, ok := s[k]
	return ok
}

// AnyBlocked reports whether any participant of raw is in the set.
func (s Set) AnyBlocked(raw string) bool {
	for _, p := range address.Split(raw) {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// Registry is the persisted block list.
type Registry struct {
	db       *store.DB
	external provider.BlockListReader
	trigger  Trigger
	logger   *zap.Logger
}

// NewRegistry creates a registry. external and trigger may be nil.
func NewRegistry(db *store.DB, external provider.BlockListReader, trigger Trigger, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{db: db, external: external, trigger: trigger, logger: logger}
}

// Block adds n. Blocking an already blocked number is a no-op.
func (r *Registry) Block(ctx context.Context, n string) error {
	k := address.Normalize(n)
	if k == "" {
		return fmt.Errorf("block %q: %w", n, ErrInvalidNumber)
	}
	added, err := r.db.AddBlockedNumber(ctx, k)
	if err != nil {
		return fmt.Errorf("block %q: %w", k, err)
	}
	if added {
		r.logger.Info("number blocked", zap.String("number", k))
		r.changed()
	}
	return nil
}

// Unblock removes n. Unblocking an unknown number is a no-op.
func (r *Registry) Unblock(ctx context.Context, n string) error {
	k := address.Normalize(n)
	if k == "" {
		return fmt.Errorf("unblock %q: %w", n, ErrInvalidNumber)
	}
	removed, err := r.db.RemoveBlockedNumber(ctx, k)
	if err != nil {
		return fmt.Errorf("unblock %q: %w", k, err)
	}
	if removed {
		r.logger.Info("number unblocked", zap.String("number", k))
		r.changed()
	}
	return nil
}

// IsBlocked reports whether n is blocked.
func (r *Registry) IsBlocked(ctx context.Context, n string) (bool, error) {
	k := address.Normalize(n)
	if k == "" {
		return false, nil
	}
	return r.db.IsBlockedNumber(ctx, k)
}

// List returns every blocked number.
func (r *Registry) List(ctx context.Context) ([]store.BlockEntry, error) {
	return r.db.ListBlockedNumbers(ctx)
}

// Snapshot returns the current block set.
func (r *Registry) Snapshot(ctx context.Context) (Set, error) {
	entries, err := r.db.ListBlockedNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("read block list: %w", err)
	}
	s := make(Set, len(entries))
	for _, e := range entries {
		s[e.Number] = struct{}{}
	}
	return s, nil
}

// ImportExternal copies the store's own block list into the registry and
// returns how many numbers were new.
func (r *Registry) ImportExternal(ctx context.Context) (int, error) {
	if r.external == nil {
		return 0, nil
	}
	raw, err := r.external.BlockedNumbers(ctx)
	if err != nil {
		return 0, fmt.Errorf("read external block list: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, n := range raw {
		if k := address.Normalize(n); k != "" {
			keys = append(keys, k)
		}
	}
	added, err := r.db.AddBlockedNumbers(ctx, keys)
	if err != nil {
		return 0, err
	}
	r.logger.Info("external block list imported", zap.Int("seen", len(raw)), zap.Int("added", added))
	if added > 0 {
		r.changed()
	}
	return added, nil
}

// ImportOnce runs ImportExternal the first time it is called for a
// profile and records that it did.
func (r *Registry) ImportOnce(ctx context.Context) (int, error) {
	_, done, err := r.db.Checkpoint(ctx, importCheckpoint)
	if err != nil {
		return 0, fmt.Errorf("read import checkpoint: %w", err)
	}
	if done {
		return 0, nil
	}
	added, err := r.ImportExternal(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.db.SetCheckpoint(ctx, importCheckpoint, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return added, fmt.Errorf("write import checkpoint: %w", err)
	}
	return added, nil
}

func (r *Registry) changed() {
	if r.trigger != nil {
		r.trigger.Trigger()
	}
}
