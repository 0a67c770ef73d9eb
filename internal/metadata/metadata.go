// Package metadata stores the per-thread overlay (pin flag, notification
// sound) that lives outside the message store.
package metadata

import (
	"context"
	"fmt"

	"github.com/matheus3301/smsync/internal/store"
)

// Trigger schedules a conversation rebuild.
type Trigger interface {
	Trigger()
}

// Store is the conversation metadata store.
type Store struct {
	db      *store.DB
	trigger Trigger
}

// New creates a metadata store. trigger may be nil.
func New(db *store.DB, trigger Trigger) *Store {
	return &Store{db: db, trigger: trigger}
}

// SetPinned pins or unpins a thread and schedules a rebuild.
func (s *Store) SetPinned(ctx context.Context, threadID int64, pinned bool) error {
	if err := s.db.SetPinned(ctx, threadID, pinned); err != nil {
		return fmt.Errorf("set pinned %d: %w", threadID, err)
	}
	if s.trigger != nil {
		s.trigger.Trigger()
	}
	return nil
}

// SetCustomSound sets or clears the notification sound of a thread.
func (s *Store) SetCustomSound(ctx context.Context, threadID int64, ref string) error {
	if err := s.db.SetCustomSound(ctx, threadID, ref); err != nil {
		return fmt.Errorf("set custom sound %d: %w", threadID, err)
	}
	return nil
}

// Get returns the overlay of a thread, defaulting to unpinned.
func (s *Store) Get(ctx context.Context, threadID int64) (store.Metadata, error) {
	return s.db.GetMetadata(ctx, threadID)
}

// Pinned returns the set of pinned threads.
func (s *Store) Pinned(ctx context.Context) (map[int64]bool, error) {
	pinned, err := s.db.PinnedThreadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pinned threads: %w", err)
	}
	return pinned, nil
}
