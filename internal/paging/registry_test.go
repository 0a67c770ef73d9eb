package paging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/provider/providertest"
)

func invalidated(src *Source) bool {
	select {
	case <-src.Invalidated():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func TestStoreWriteInvalidatesOnlyThatThread(t *testing.T) {
	s := providertest.Open(t)
	ctx := context.Background()
	a, _ := s.ThreadFor(ctx, []string{"555"})
	b, _ := s.ThreadFor(ctx, []string{"777"})
	r := newRegistry(t, s)

	srcA := r.Open(a)
	srcB := r.Open(b)
	defer srcB.Close()

	providertest.Text(t, s, "555", "new", 1)

	if !invalidated(srcA) {
		t.Fatal("source of the written thread still valid")
	}
	if invalidated(srcB) {
		t.Fatal("source of another thread invalidated")
	}
	if _, err := srcA.Load(ctx, 0, 10); !errors.Is(err, ErrInvalidated) {
		t.Errorf("Load after invalidation = %v, want ErrInvalidated", err)
	}

	// A fresh source sees the new row.
	fresh := r.Open(a)
	defer fresh.Close()
	p, err := fresh.Load(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Items) != 1 {
		t.Errorf("fresh source has %d items, want 1", len(p.Items))
	}
}

func TestUnattributedChangeInvalidatesAll(t *testing.T) {
	s := providertest.Open(t)
	r := newRegistry(t, s)
	one, two := r.Open(1), r.Open(2)

	s.Notify(provider.Change{External: true})

	if !invalidated(one) || !invalidated(two) {
		t.Error("external change left sources valid")
	}
	if n := r.OpenCount(); n != 0 {
		t.Errorf("OpenCount = %d, want 0", n)
	}
}

func TestCloseForgetsSource(t *testing.T) {
	s := providertest.Open(t)
	r := newRegistry(t, s)
	src := r.Open(1)
	if r.OpenCount() != 1 {
		t.Fatalf("OpenCount = %d, want 1", r.OpenCount())
	}
	src.Close()
	src.Close()
	if r.OpenCount() != 0 {
		t.Errorf("OpenCount after Close = %d, want 0", r.OpenCount())
	}
}
