// Package providertest holds fixtures for tests that need a message store.
package providertest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/provider/sqlprovider"
)

// Open returns an empty SQLite message store closed at test end.
func Open(t testing.TB) *sqlprovider.Store {
	t.Helper()
	s, err := sqlprovider.Open(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Insert writes f into table and returns the new id.
func Insert(t testing.TB, s provider.Store, table provider.Table, f provider.Fields) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), table, f)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// Text inserts an inbound text row with a millisecond date.
func Text(t testing.TB, s provider.Store, addr, body string, dateMs int64) int64 {
	t.Helper()
	return Insert(t, s, provider.TableText, provider.Fields{
		Addresses: []string{addr},
		Body:      body,
		Date:      dateMs,
	})
}

// Multimedia inserts an inbound multimedia row with a date in seconds.
func Multimedia(t testing.TB, s provider.Store, addrs []string, subject string, dateSec int64, parts ...provider.Part) int64 {
	t.Helper()
	return Insert(t, s, provider.TableMultimedia, provider.Fields{
		Addresses: addrs,
		Body:      subject,
		Date:      dateSec,
		Parts:     parts,
	})
}

// Get returns the row id of table, failing the test when it is missing.
func Get(t testing.TB, s provider.Store, table provider.Table, id int64) provider.Row {
	t.Helper()
	rows, err := s.Query(context.Background(), provider.Query{Table: table, ID: id})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("%s row %d: got %d rows", table, id, len(rows))
	}
	return rows[0]
}

// ErrInjected is returned by Failing for its failing table.
var ErrInjected = errors.New("injected failure")

// Failing wraps a store and fails every query of one table.
type Failing struct {
	provider.Store
	Table provider.Table
}

// Query fails for f.Table and delegates otherwise.
func (f *Failing) Query(ctx context.Context, q provider.Query) ([]provider.Row, error) {
	if f.Table == 0 || q.Table == f.Table {
		return nil, provider.Unavailable("query "+q.Table.String(), ErrInjected)
	}
	return f.Store.Query(ctx, q)
}
