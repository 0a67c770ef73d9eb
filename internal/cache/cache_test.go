package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/store"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, bus.New(), nil)
}

func convs(ids ...int64) []store.Conversation {
	out := make([]store.Conversation, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.Conversation{ThreadID: id, RawAddress: "555", DisplayName: "555", Snippet: "hi", LastActivityAt: id * 10})
	}
	return out
}

func TestReplaceAndReadAll(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	empty, err := c.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Number != 0 || len(empty.Conversations) != 0 {
		t.Errorf("initial generation = %+v, want empty 0", empty)
	}

	// Merge order is kept even when it is not recency order.
	want := convs(2, 9, 5)
	gen, err := c.Replace(ctx, want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != gen {
		t.Errorf("generation = %d, want %d", got.Number, gen)
	}
	if diff := cmp.Diff(want, got.Conversations); diff != "" {
		t.Errorf("ReadAll mismatch (-want +got):\n%s", diff)
	}

	gen2, err := c.Replace(ctx, convs(1))
	if err != nil {
		t.Fatal(err)
	}
	if gen2 != gen+1 {
		t.Errorf("second generation = %d, want %d", gen2, gen+1)
	}
	got, _ = c.ReadAll(ctx)
	if len(got.Conversations) != 1 || got.Conversations[0].ThreadID != 1 {
		t.Errorf("after replace got %+v, want only thread 1", got.Conversations)
	}
}

func TestGet(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	if _, err := c.Replace(ctx, convs(4)); err != nil {
		t.Fatal(err)
	}
	conv, err := c.Get(ctx, 4)
	if err != nil || conv == nil {
		t.Fatalf("Get(4) = %v, %v", conv, err)
	}
	conv, err = c.Get(ctx, 99)
	if err != nil || conv != nil {
		t.Errorf("Get(99) = %v, %v, want nil", conv, err)
	}
}

func TestStreamDeliversCurrentThenNewer(t *testing.T) {
	c := testCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := c.Replace(ctx, convs(1)); err != nil {
		t.Fatal(err)
	}
	ch, err := c.Stream(ctx)
	if err != nil {
		t.Fatal(err)
	}

	first := receive(t, ch)
	if len(first.Conversations) != 1 {
		t.Fatalf("first generation = %+v", first)
	}

	gen, err := c.Replace(ctx, convs(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	next := receive(t, ch)
	if next.Number != gen || len(next.Conversations) != 2 {
		t.Errorf("next generation = %+v, want %d with 2 conversations", next, gen)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// A generation may race the cancel; the channel must still close.
			if _, ok := <-ch; ok {
				t.Error("stream still open after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestStreamSkipsToLatestForSlowReader(t *testing.T) {
	c := testCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.Stream(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var last int64
	for i := range 5 {
		if last, err = c.Replace(ctx, convs(int64(i+1))); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(time.Second)
	prev := int64(-1)
	for {
		select {
		case g := <-ch:
			if g.Number <= prev {
				t.Fatalf("generation %d delivered after %d", g.Number, prev)
			}
			prev = g.Number
			if g.Number == last {
				return
			}
		case <-deadline:
			t.Fatalf("latest generation %d never delivered, last seen %d", last, prev)
		}
	}
}

func receive(t *testing.T, ch <-chan Generation) Generation {
	t.Helper()
	select {
	case g := <-ch:
		return g
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for generation")
		return Generation{}
	}
}
