package store

import (
	"context"
	"fmt"
	"time"
)

// AddBlockedNumber stores n and reports whether it was new.
func (db *DB) AddBlockedNumber(ctx context.Context, n string) (bool, error) {
	res, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO blocked_numbers (number, created_at) VALUES (?, ?)`, n, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	added, _ := res.RowsAffected()
	return added > 0, nil
}

// AddBlockedNumbers stores every number in one transaction and returns how
// many were new.
func (db *DB) AddBlockedNumbers(ctx context.Context, numbers []string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	added := 0
	for _, n := range numbers {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO blocked_numbers (number, created_at) VALUES (?, ?)`, n, now)
		if err != nil {
			return 0, fmt.Errorf("insert blocked number: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit blocked numbers: %w", err)
	}
	return added, nil
}

// RemoveBlockedNumber deletes n and reports whether it was present.
func (db *DB) RemoveBlockedNumber(ctx context.Context, n string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM blocked_numbers WHERE number = ?`, n)
	if err != nil {
		return false, err
	}
	removed, _ := res.RowsAffected()
	return removed > 0, nil
}

// IsBlockedNumber reports whether n is stored.
func (db *DB) IsBlockedNumber(ctx context.Context, n string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_numbers WHERE number = ?`, n).Scan(&one)
	return one > 0, err
}

// ListBlockedNumbers returns every blocked number, oldest first.
func (db *DB) ListBlockedNumbers(ctx context.Context) ([]BlockEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT number, created_at FROM blocked_numbers ORDER BY created_at, number`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []BlockEntry
	for rows.Next() {
		var e BlockEntry
		if err := rows.Scan(&e.Number, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
