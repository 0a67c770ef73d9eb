package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertContact inserts or updates a contact. Blank fields keep the stored value.
func (db *DB) UpsertContact(ctx context.Context, c *Contact) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO contacts (address, name, photo_ref, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			photo_ref = CASE WHEN excluded.photo_ref != '' THEN excluded.photo_ref ELSE contacts.photo_ref END,
			updated_at = excluded.updated_at`,
		c.Address, c.Name, c.PhotoRef, now)
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(ctx context.Context, contacts []Contact) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (address, name, photo_ref, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
				photo_ref = CASE WHEN excluded.photo_ref != '' THEN excluded.photo_ref ELSE contacts.photo_ref END,
				updated_at = excluded.updated_at`,
			c.Address, c.Name, c.PhotoRef, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.Address, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact by normalized address, or nil if unknown.
func (db *DB) GetContact(ctx context.Context, addr string) (*Contact, error) {
	var c Contact
	err := db.QueryRowContext(ctx, `SELECT address, name, photo_ref FROM contacts WHERE address = ?`, addr).
		Scan(&c.Address, &c.Name, &c.PhotoRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns all contacts ordered by name.
func (db *DB) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := db.QueryContext(ctx, `SELECT address, name, photo_ref FROM contacts ORDER BY name, address`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Address, &c.Name, &c.PhotoRef); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
