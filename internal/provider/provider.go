// Package provider defines the shared, externally owned message store: its
// two tables, the row shape both tables are read into, and the change
// subscription every writer fires.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSourceUnavailable is returned when a store call cannot be served.
var ErrSourceUnavailable = errors.New("message store unavailable")

// Unavailable wraps err so that errors.Is(err, ErrSourceUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSourceUnavailable, err)
}

// Table selects one of the two record tables.
type Table int

const (
	TableText Table = iota + 1
	TableMultimedia
)

func (t Table) String() string {
	switch t {
	case TableText:
		return "text"
	case TableMultimedia:
		return "multimedia"
	default:
		return "table(" + strconv.Itoa(int(t)) + ")"
	}
}

// Direction tells inbound rows from outbound ones.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Order of a query result. The zero value is newest first.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// secondsThreshold separates second-resolution timestamps from millisecond ones.
const secondsThreshold = 10_000_000_000

// NormalizeTimestamp converts a multimedia timestamp to milliseconds.
// Values below 10,000,000,000 are taken to be seconds.
func NormalizeTimestamp(v int64) int64 {
	if v < secondsThreshold {
		return v * 1000
	}
	return v
}

// Row is one record of either table.
type Row struct {
	Table    Table
	ID       int64
	ThreadID int64
	// Address is the counterpart of a text row, or the participants of a
	// multimedia row joined by ';'.
	Address string
	// Body is the text of a text row, or the subject of a multimedia row.
	Body      string
	Date      int64 // as stored
	Read      bool
	Direction Direction
	State     DeliveryState
}

// TimestampMs returns the row time in milliseconds.
func (r Row) TimestampMs() int64 {
	if r.Table == TableMultimedia {
		return NormalizeTimestamp(r.Date)
	}
	return r.Date
}

// Token is the row's own external identifier, used to correlate delivery
// confirmations.
func (r Row) Token() string {
	return Token(r.Table, r.ID)
}

// Token formats the identifier of row id in table t.
func Token(t Table, id int64) string {
	return t.String() + ":" + strconv.FormatInt(id, 10)
}

// ParseToken is the inverse of Token.
func ParseToken(tok string) (Table, int64, error) {
	kind, rawID, ok := strings.Cut(tok, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed token %q", tok)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed token %q: %w", tok, err)
	}
	switch kind {
	case TableText.String():
		return TableText, id, nil
	case TableMultimedia.String():
		return TableMultimedia, id, nil
	}
	return 0, 0, fmt.Errorf("unknown table in token %q", tok)
}

// Query filters a table read. Zero-valued filters match everything and a
// non-positive Limit means no limit.
type Query struct {
	Table    Table
	ThreadID int64
	ID       int64
	State    DeliveryState
	Order    Order
	Limit    int
	Offset   int
}

// Part is one component of a multimedia record.
type Part struct {
	ID          int64
	ContentType string
	Charset     string
	Name        string
	Text        string
	// Data holds the payload only when the content type is missing or generic.
	Data []byte
}

// Fields describes a record to insert. A zero ThreadID lets the store
// assign the thread from the participant set.
type Fields struct {
	ThreadID  int64
	Addresses []string
	Body      string
	Date      int64
	Read      bool
	Direction Direction
	State     DeliveryState
	Parts     []Part
}

// Selector picks rows by id or by thread. Exactly one must be set.
type Selector struct {
	ID       int64
	ThreadID int64
}

// Validate reports a selector that would match nothing or everything.
func (s Selector) Validate() error {
	if (s.ID == 0) == (s.ThreadID == 0) {
		return errors.New("selector needs exactly one of id or thread id")
	}
	return nil
}

// Patch lists the columns an update changes. Nil fields are left alone.
type Patch struct {
	State *DeliveryState
	Read  *bool
}

// Change describes a write. Zero Table or ThreadID means unknown, as for
// writes made by other processes.
type Change struct {
	Table    Table
	ThreadID int64
	External bool
}

// Store is the external message store.
type Store interface {
	Query(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, t Table, f Fields) (int64, error)
	Update(ctx context.Context, t Table, sel Selector, p Patch) (int64, error)
	Delete(ctx context.Context, t Table, sel Selector) (int64, error)
	Subscribe(fn func(Change)) *Subscription
}

// PartReader reads the parts of a multimedia record.
type PartReader interface {
	Parts(ctx context.Context, id int64) ([]Part, error)
}

// BlockListReader exposes the store's own list of blocked numbers.
type BlockListReader interface {
	BlockedNumbers(ctx context.Context) ([]string, error)
}
