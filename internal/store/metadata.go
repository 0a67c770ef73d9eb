package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetPinned records the pin flag of a thread.
func (db *DB) SetPinned(ctx context.Context, threadID int64, pinned bool) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversation_metadata (thread_id, is_pinned, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			is_pinned = excluded.is_pinned,
			updated_at = excluded.updated_at`,
		threadID, pinned, time.Now().UnixMilli())
	return err
}

// SetCustomSound records the notification sound of a thread. An empty ref
// clears it.
func (db *DB) SetCustomSound(ctx context.Context, threadID int64, ref string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversation_metadata (thread_id, custom_sound, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			custom_sound = excluded.custom_sound,
			updated_at = excluded.updated_at`,
		threadID, ref, time.Now().UnixMilli())
	return err
}

// GetMetadata returns the overlay of a thread. Threads without a row get
// the unpinned default.
func (db *DB) GetMetadata(ctx context.Context, threadID int64) (Metadata, error) {
	m := Metadata{ThreadID: threadID}
	err := db.QueryRowContext(ctx, `SELECT is_pinned, custom_sound FROM conversation_metadata WHERE thread_id = ?`, threadID).
		Scan(&m.IsPinned, &m.CustomSound)
	if errors.Is(err, sql.ErrNoRows) {
		return m, nil
	}
	return m, err
}

// PinnedThreadIDs returns the set of pinned threads.
func (db *DB) PinnedThreadIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT thread_id FROM conversation_metadata WHERE is_pinned = 1`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pinned := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pinned[id] = true
	}
	return pinned, rows.Err()
}
