package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const generationKey = "cache_generation"

// ReplaceConversations swaps the whole cached list in one transaction and
// returns the new generation. Readers see either the old or the new list.
func (db *DB) ReplaceConversations(ctx context.Context, convs []Conversation) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (position, thread_id, raw_address, display_name, photo_ref, snippet, last_activity_at, is_read, is_pinned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range convs {
		if _, err := stmt.ExecContext(ctx, i, c.ThreadID, c.RawAddress, c.DisplayName, c.PhotoRef, c.Snippet, c.LastActivityAt, c.IsRead, c.IsPinned); err != nil {
			return 0, fmt.Errorf("insert conversation %d: %w", c.ThreadID, err)
		}
	}

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, '1', ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(sync_state.value AS INTEGER) + 1 AS TEXT),
			updated_at = excluded.updated_at`,
		generationKey, now); err != nil {
		return 0, fmt.Errorf("bump generation: %w", err)
	}
	gen, err := readGeneration(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit conversations: %w", err)
	}
	return gen, nil
}

// ListConversations returns the cached list in merge order together with
// its generation, read from one snapshot.
func (db *DB) ListConversations(ctx context.Context) ([]Conversation, int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT thread_id, raw_address, display_name, photo_ref, snippet, last_activity_at, is_read, is_pinned
		FROM conversations ORDER BY position ASC`)
	if err != nil {
		return nil, 0, err
	}
	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ThreadID, &c.RawAddress, &c.DisplayName, &c.PhotoRef, &c.Snippet, &c.LastActivityAt, &c.IsRead, &c.IsPinned); err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, err
	}
	_ = rows.Close()

	gen, err := readGeneration(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	return convs, gen, nil
}

// GetConversation returns one cached conversation, or nil if absent.
func (db *DB) GetConversation(ctx context.Context, threadID int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRowContext(ctx, `
		SELECT thread_id, raw_address, display_name, photo_ref, snippet, last_activity_at, is_read, is_pinned
		FROM conversations WHERE thread_id = ?`, threadID).
		Scan(&c.ThreadID, &c.RawAddress, &c.DisplayName, &c.PhotoRef, &c.Snippet, &c.LastActivityAt, &c.IsRead, &c.IsPinned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConversationCount returns the number of cached conversations.
func (db *DB) ConversationCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

func readGeneration(ctx context.Context, tx *sql.Tx) (int64, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, generationKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", raw, err)
	}
	return gen, nil
}
