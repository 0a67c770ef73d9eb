package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/smsync/internal/store"
)

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

func TestPinTriggersRebuild(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	trig := &countingTrigger{}
	s := New(db, trig)
	ctx := context.Background()

	if err := s.SetPinned(ctx, 4, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCustomSound(ctx, 4, "chime"); err != nil {
		t.Fatal(err)
	}
	if trig.n != 1 {
		t.Errorf("triggers = %d, want 1", trig.n)
	}

	m, err := s.Get(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsPinned || m.CustomSound != "chime" {
		t.Errorf("metadata = %+v", m)
	}
	pinned, err := s.Pinned(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !pinned[4] || len(pinned) != 1 {
		t.Errorf("pinned = %v", pinned)
	}

	absent, err := s.Get(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if absent.IsPinned || absent.CustomSound != "" {
		t.Errorf("absent metadata = %+v, want defaults", absent)
	}
}
