// Package paging reads one thread's messages from the store in windows,
// newest first.
package paging

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/smsync/internal/parts"
	"github.com/matheus3301/smsync/internal/provider"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the window used when a caller asks for none.
const DefaultPageSize = 50

// ErrInvalidated is returned by Load once the store has changed under the
// source. Open a new source to continue.
var ErrInvalidated = errors.New("paging source invalidated")

// Message is one row of a thread as displayed.
type Message struct {
	ID          int64                  `json:"id"`
	Multimedia  bool                   `json:"multimedia"`
	ThreadID    int64                  `json:"thread_id"`
	Address     string                 `json:"address"`
	Body        string                 `json:"body"`
	TimestampMs int64                  `json:"timestamp_ms"`
	Direction   provider.Direction     `json:"direction"`
	State       provider.DeliveryState `json:"state"`
	ImageRef    string                 `json:"image_ref,omitempty"`
	Read        bool                   `json:"read"`
}

// Key identifies the message across both tables.
func (m Message) Key() string {
	return provider.Token(m.table(), m.ID)
}

func (m Message) table() provider.Table {
	if m.Multimedia {
		return provider.TableMultimedia
	}
	return provider.TableText
}

// Page is one window of a thread. PrevKey and NextKey are the offsets of
// the neighbouring windows, nil at either end.
type Page struct {
	Items   []Message
	PrevKey *int
	NextKey *int
}

// ContentSource resolves the content of a multimedia record.
type ContentSource interface {
	Resolve(ctx context.Context, id int64) parts.Content
}

// Source pages one thread. It is valid until the thread changes.
type Source struct {
	store    provider.Store
	content  ContentSource
	threadID int64

	once    sync.Once
	invalid chan struct{}
	release func()
}

func newSource(s provider.Store, content ContentSource, threadID int64) *Source {
	return &Source{store: s, content: content, threadID: threadID, invalid: make(chan struct{})}
}

// ThreadID returns the thread being paged.
func (s *Source) ThreadID() int64 {
	return s.threadID
}

// Invalidated is closed when the source stops being valid.
func (s *Source) Invalidated() <-chan struct{} {
	return s.invalid
}

// Invalidate marks the source stale.
func (s *Source) Invalidate() {
	s.once.Do(func() { close(s.invalid) })
}

// Close invalidates the source and forgets it.
func (s *Source) Close() {
	s.Invalidate()
	if s.release != nil {
		s.release()
	}
}

func (s *Source) valid() bool {
	select {
	case <-s.invalid:
		return false
	default:
		return true
	}
}

// Load returns the messages at [offset, offset+limit) of the thread,
// newest first. Ties in time order text before multimedia, then higher
// id first.
func (s *Source) Load(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, fmt.Errorf("load page: negative offset %d", offset)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if !s.valid() {
		return Page{}, ErrInvalidated
	}

	// The merged window can draw up to offset+limit rows from either table.
	want := offset + limit
	var text, mms []provider.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.store.Query(gctx, provider.Query{Table: provider.TableText, ThreadID: s.threadID, Limit: want})
		return err
	})
	g.Go(func() error {
		var err error
		mms, err = s.store.Query(gctx, provider.Query{Table: provider.TableMultimedia, ThreadID: s.threadID, Limit: want})
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, fmt.Errorf("load thread %d: %w", s.threadID, err)
	}
	if !s.valid() {
		return Page{}, ErrInvalidated
	}

	rows := append(text, mms...)
	slices.SortStableFunc(rows, compareRows)
	start := min(offset, len(rows))
	end := min(want, len(rows))
	window := rows[start:end]

	items := make([]Message, 0, len(window))
	for _, r := range window {
		items = append(items, s.message(ctx, r))
	}

	p := Page{Items: items}
	if offset > 0 {
		prev := max(offset-limit, 0)
		p.PrevKey = &prev
	}
	if len(items) > 0 {
		next := offset + limit
		p.NextKey = &next
	}
	return p, nil
}

func compareRows(a, b provider.Row) int {
	if c := cmp.Compare(b.TimestampMs(), a.TimestampMs()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Table, b.Table); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (s *Source) message(ctx context.Context, r provider.Row) Message {
	m := Message{
		ID:          r.ID,
		Multimedia:  r.Table == provider.TableMultimedia,
		ThreadID:    r.ThreadID,
		Address:     r.Address,
		Body:        r.Body,
		TimestampMs: r.TimestampMs(),
		Direction:   r.Direction,
		State:       r.State,
		Read:        r.Read,
	}
	if !m.Multimedia {
		return m
	}
	content := parts.Content{Text: parts.NoContent}
	if s.content != nil {
		content = s.content.Resolve(ctx, r.ID)
	}
	m.ImageRef = content.ImageRef
	switch {
	case strings.TrimSpace(content.Text) != "" && content.Text != parts.NoContent:
		m.Body = content.Text
	case strings.TrimSpace(r.Body) != "":
		m.Body = r.Body
	default:
		m.Body = content.Text
	}
	return m
}
