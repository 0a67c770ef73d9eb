package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// QueueOutbox journals a send that awaits its delivery confirmation.
func (db *DB) QueueOutbox(ctx context.Context, e *OutboxEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO outbox (token, thread_id, address, segments, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		e.Token, e.ThreadID, e.Address, e.Segments, now, now)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (db *DB) MarkOutboxSent(ctx context.Context, token string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `UPDATE outbox SET status = 'sent', updated_at = ? WHERE token = ?`, now, token)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(ctx context.Context, token, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE token = ?`, errMsg, now, token)
	return err
}

// GetOutbox returns the entry for token, or nil if absent.
func (db *DB) GetOutbox(ctx context.Context, token string) (*OutboxEntry, error) {
	var e OutboxEntry
	err := db.QueryRowContext(ctx, `
		SELECT id, token, thread_id, address, segments, status, error_message, created_at
		FROM outbox WHERE token = ?`, token).
		Scan(&e.ID, &e.Token, &e.ThreadID, &e.Address, &e.Segments, &e.Status, &e.ErrorMessage, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox(ctx context.Context) ([]OutboxEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, token, thread_id, address, segments, status, error_message, created_at
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.Token, &e.ThreadID, &e.Address, &e.Segments, &e.Status, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
