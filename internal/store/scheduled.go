package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// InsertScheduled stores m as pending and returns its id.
func (db *DB) InsertScheduled(ctx context.Context, m *ScheduledMessage) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO scheduled_messages (thread_id, address, body, scheduled_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		m.ThreadID, m.Address, m.Body, m.ScheduledAt, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetScheduled returns a scheduled message by id, or nil if absent.
func (db *DB) GetScheduled(ctx context.Context, id int64) (*ScheduledMessage, error) {
	var m ScheduledMessage
	err := db.QueryRowContext(ctx, `
		SELECT id, thread_id, address, body, scheduled_at, status, error_message
		FROM scheduled_messages WHERE id = ?`, id).
		Scan(&m.ID, &m.ThreadID, &m.Address, &m.Body, &m.ScheduledAt, &m.Status, &m.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListScheduled returns the scheduled messages of a thread, or of all
// threads when threadID is 0, earliest first.
func (db *DB) ListScheduled(ctx context.Context, threadID int64) ([]ScheduledMessage, error) {
	return db.queryScheduled(ctx, `
		SELECT id, thread_id, address, body, scheduled_at, status, error_message
		FROM scheduled_messages WHERE (? = 0 OR thread_id = ?)
		ORDER BY scheduled_at ASC, id ASC`, threadID, threadID)
}

// PendingScheduled returns pending messages due at or before dueBy (ms).
func (db *DB) PendingScheduled(ctx context.Context, dueBy int64) ([]ScheduledMessage, error) {
	return db.queryScheduled(ctx, `
		SELECT id, thread_id, address, body, scheduled_at, status, error_message
		FROM scheduled_messages WHERE status = 'pending' AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC`, dueBy)
}

// FinishScheduled moves a pending message to status and reports whether it
// was still pending.
func (db *DB) FinishScheduled(ctx context.Context, id int64, status ScheduledStatus, errMsg string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE scheduled_messages SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), errMsg, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) queryScheduled(ctx context.Context, query string, args ...any) ([]ScheduledMessage, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ScheduledMessage
	for rows.Next() {
		var m ScheduledMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Address, &m.Body, &m.ScheduledAt, &m.Status, &m.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
