// Package sqlprovider implements the message store on a SQLite file laid out
// like the platform SMS/MMS provider tables.
package sqlprovider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/provider/sqlprovider/migrations"
	"github.com/matheus3301/smsync/internal/store"
)

// PDU address header codes.
const (
	addrFrom = 137
	addrTo   = 151
)

var (
	_ provider.Store           = (*Store)(nil)
	_ provider.PartReader      = (*Store)(nil)
	_ provider.BlockListReader = (*Store)(nil)
)

// Store is the SQLite message store. Every successful write notifies
// subscribers after commit.
type Store struct {
	provider.Notifier

	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the store at path and applies its schema.
func Open(path string) (*Store, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := store.RunMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Query returns the rows of one table matching q.
func (s *Store) Query(ctx context.Context, q provider.Query) ([]provider.Row, error) {
	var base, prefix, orderExpr string
	switch q.Table {
	case provider.TableText:
		base = `SELECT _id, thread_id, address, body, date, read, direction, delivery_state FROM sms WHERE 1 = 1`
		orderExpr = "COALESCE(date, 0)"
	case provider.TableMultimedia:
		base = `
			SELECT m._id, m.thread_id,
				(SELECT group_concat(a.address, ';') FROM mms_addr a
				 WHERE a.mms_id = m._id AND a.address IS NOT NULL AND a.address != 'insert-address-token'),
				m.subject, m.date, m.read, m.direction, m.delivery_state
			FROM mms m WHERE 1 = 1`
		prefix = "m."
		orderExpr = "(CASE WHEN COALESCE(m.date, 0) < 10000000000 THEN COALESCE(m.date, 0) * 1000 ELSE m.date END)"
	default:
		return nil, fmt.Errorf("query: unknown table %v", q.Table)
	}

	var sb strings.Builder
	sb.WriteString(base)
	var args []any
	if q.ThreadID != 0 {
		sb.WriteString(" AND " + prefix + "thread_id = ?")
		args = append(args, q.ThreadID)
	}
	if q.ID != 0 {
		sb.WriteString(" AND " + prefix + "_id = ?")
		args = append(args, q.ID)
	}
	if q.State != "" {
		sb.WriteString(" AND " + prefix + "delivery_state = ?")
		args = append(args, string(q.State))
	}
	dir := "DESC"
	if q.Order == provider.OldestFirst {
		dir = "ASC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, %s_id %s LIMIT ? OFFSET ?", orderExpr, dir, prefix, dir)
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, provider.Unavailable("query "+q.Table.String(), err)
	}
	defer func() { _ = rows.Close() }()

	var out []provider.Row
	for rows.Next() {
		r, err := scanRow(rows, q.Table)
		if err != nil {
			return nil, provider.Unavailable("scan "+q.Table.String(), err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, provider.Unavailable("query "+q.Table.String(), err)
	}
	return out, nil
}

// scanRow maps NULL columns to safe defaults instead of failing the row.
func scanRow(rows *sql.Rows, t provider.Table) (provider.Row, error) {
	var (
		r                      provider.Row
		addr, body, dir, state sql.NullString
		date, read             sql.NullInt64
	)
	if err := rows.Scan(&r.ID, &r.ThreadID, &addr, &body, &date, &read, &dir, &state); err != nil {
		return r, err
	}
	r.Table = t
	r.Address = addr.String
	r.Body = body.String
	r.Date = date.Int64
	r.Read = read.Int64 != 0
	r.Direction = provider.Direction(dir.String)
	if r.Direction != provider.Outbound {
		r.Direction = provider.Inbound
	}
	r.State = provider.DeliveryState(state.String)
	if !r.State.Valid() {
		r.State = defaultState(r.Direction)
	}
	return r, nil
}

func defaultState(d provider.Direction) provider.DeliveryState {
	if d == provider.Outbound {
		return provider.Sent
	}
	return provider.Received
}

// Insert adds a record and returns its id. Multimedia addresses and parts
// are written in the same transaction.
func (s *Store) Insert(ctx context.Context, t provider.Table, f provider.Fields) (int64, error) {
	table, err := tableName(t)
	if err != nil {
		return 0, err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, provider.Unavailable("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	threadID := f.ThreadID
	if threadID == 0 {
		threadID, err = threadFor(ctx, tx, f.Addresses, now.UnixMilli())
		if err != nil {
			return 0, provider.Unavailable("assign thread", err)
		}
	}
	date := f.Date
	if date == 0 {
		date = now.UnixMilli()
	}
	dir := f.Direction
	if dir == "" {
		dir = provider.Inbound
	}
	state := f.State
	if state == "" {
		state = provider.Received
		if dir == provider.Outbound {
			state = provider.Queued
		}
	}

	var res sql.Result
	switch t {
	case provider.TableText:
		var addr string
		if len(f.Addresses) > 0 {
			addr = f.Addresses[0]
		}
		res, err = tx.ExecContext(ctx, `
			INSERT INTO sms (thread_id, address, body, date, read, direction, delivery_state)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			threadID, addr, f.Body, date, boolInt(f.Read), string(dir), string(state))
	case provider.TableMultimedia:
		res, err = tx.ExecContext(ctx, `
			INSERT INTO mms (thread_id, subject, date, read, direction, delivery_state)
			VALUES (?, ?, ?, ?, ?, ?)`,
			threadID, f.Body, date, boolInt(f.Read), string(dir), string(state))
	}
	if err != nil {
		return 0, provider.Unavailable("insert "+table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, provider.Unavailable("insert "+table, err)
	}

	if t == provider.TableMultimedia {
		addrType := addrFrom
		if dir == provider.Outbound {
			addrType = addrTo
		}
		for _, a := range f.Addresses {
			if _, err := tx.ExecContext(ctx, `INSERT INTO mms_addr (mms_id, address, type) VALUES (?, ?, ?)`, id, a, addrType); err != nil {
				return 0, provider.Unavailable("insert mms_addr", err)
			}
		}
		for _, p := range f.Parts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mms_part (mms_id, content_type, charset, name, text, data)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, p.ContentType, p.Charset, p.Name, p.Text, p.Data); err != nil {
				return 0, provider.Unavailable("insert mms_part", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, provider.Unavailable("commit insert", err)
	}
	s.Notify(provider.Change{Table: t, ThreadID: threadID})
	return id, nil
}

// Update applies p to the selected rows and returns how many changed.
func (s *Store) Update(ctx context.Context, t provider.Table, sel provider.Selector, p provider.Patch) (int64, error) {
	table, err := tableName(t)
	if err != nil {
		return 0, err
	}
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	var sets []string
	var args []any
	if p.State != nil {
		sets = append(sets, "delivery_state = ?")
		args = append(args, string(*p.State))
	}
	if p.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, boolInt(*p.Read))
	}
	if len(sets) == 0 {
		return 0, nil
	}

	threadID := s.threadOf(ctx, table, sel)
	where, whereArgs := selectorClause(sel)
	res, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE "+where, append(args, whereArgs...)...)
	if err != nil {
		return 0, provider.Unavailable("update "+table, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.Notify(provider.Change{Table: t, ThreadID: threadID})
	}
	return n, nil
}

// Delete removes the selected rows. Deleting multimedia rows also removes
// their addresses and parts.
func (s *Store) Delete(ctx context.Context, t provider.Table, sel provider.Selector) (int64, error) {
	table, err := tableName(t)
	if err != nil {
		return 0, err
	}
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	threadID := s.threadOf(ctx, table, sel)
	where, whereArgs := selectorClause(sel)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, provider.Unavailable("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if t == provider.TableMultimedia {
		for _, child := range []string{"mms_part", "mms_addr"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+child+" WHERE mms_id IN (SELECT _id FROM mms WHERE "+where+")", whereArgs...); err != nil {
				return 0, provider.Unavailable("delete "+child, err)
			}
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+where, whereArgs...)
	if err != nil {
		return 0, provider.Unavailable("delete "+table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, provider.Unavailable("commit delete", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.Notify(provider.Change{Table: t, ThreadID: threadID})
	}
	return n, nil
}

// Parts returns the parts of multimedia record id in storage order.
func (s *Store) Parts(ctx context.Context, id int64) ([]provider.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT _id, content_type, charset, name, text,
			CASE WHEN content_type IS NULL OR content_type = '' OR content_type = 'application/octet-stream'
				THEN data END
		FROM mms_part WHERE mms_id = ? ORDER BY _id`, id)
	if err != nil {
		return nil, provider.Unavailable("query mms_part", err)
	}
	defer func() { _ = rows.Close() }()

	var parts []provider.Part
	for rows.Next() {
		var (
			p                       provider.Part
			ct, charset, name, text sql.NullString
		)
		if err := rows.Scan(&p.ID, &ct, &charset, &name, &text, &p.Data); err != nil {
			return nil, provider.Unavailable("scan mms_part", err)
		}
		p.ContentType = ct.String
		p.Charset = charset.String
		p.Name = name.String
		p.Text = text.String
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// ThreadFor returns the thread of a participant set, creating it if needed.
func (s *Store) ThreadFor(ctx context.Context, addrs []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, provider.Unavailable("begin thread lookup", err)
	}
	defer func() { _ = tx.Rollback() }()
	id, err := threadFor(ctx, tx, addrs, s.now().UnixMilli())
	if err != nil {
		return 0, provider.Unavailable("assign thread", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, provider.Unavailable("commit thread lookup", err)
	}
	return id, nil
}

// BlockedNumbers returns the store's own block list as entered.
func (s *Store) BlockedNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT original_number FROM blocked_numbers ORDER BY _id`)
	if err != nil {
		return nil, provider.Unavailable("query blocked_numbers", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, provider.Unavailable("scan blocked_numbers", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AddBlockedNumber records n in the store's own block list.
func (s *Store) AddBlockedNumber(ctx context.Context, n string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO blocked_numbers (original_number) VALUES (?)`, n); err != nil {
		return provider.Unavailable("insert blocked_numbers", err)
	}
	return nil
}

func threadFor(ctx context.Context, tx *sql.Tx, addrs []string, now int64) (int64, error) {
	key := address.Canonical(addrs)
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM threads WHERE recipients = ?`, key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO threads (recipients, created_at) VALUES (?, ?)`, key, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) threadOf(ctx context.Context, table string, sel provider.Selector) int64 {
	if sel.ThreadID != 0 {
		return sel.ThreadID
	}
	var id int64
	_ = s.db.QueryRowContext(ctx, "SELECT thread_id FROM "+table+" WHERE _id = ?", sel.ID).Scan(&id)
	return id
}

func selectorClause(sel provider.Selector) (string, []any) {
	if sel.ID != 0 {
		return "_id = ?", []any{sel.ID}
	}
	return "thread_id = ?", []any{sel.ThreadID}
}

func tableName(t provider.Table) (string, error) {
	switch t {
	case provider.TableText:
		return "sms", nil
	case provider.TableMultimedia:
		return "mms", nil
	}
	return "", fmt.Errorf("unknown table %v", t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
