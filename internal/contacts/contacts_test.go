package contacts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/smsync/internal/store"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewDirectory(db)
}

func TestDirectoryResolve(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()
	if err := d.Set(ctx, "+1 (555) 010-0000", "Ann", "ann.png"); err != nil {
		t.Fatal(err)
	}

	info, err := d.Resolve(ctx, "+15550100000")
	if err != nil {
		t.Fatal(err)
	}
	if info.DisplayName != "Ann" || info.PhotoRef != "ann.png" {
		t.Errorf("Resolve = %+v", info)
	}

	info, err = d.Resolve(ctx, "999")
	if err != nil {
		t.Fatal(err)
	}
	if info.DisplayName != "999" {
		t.Errorf("unknown DisplayName = %q, want the address", info.DisplayName)
	}

	if err := d.Set(ctx, "no digits", "X", ""); err == nil {
		t.Error("Set with empty key succeeded")
	}
}

func TestResolveParticipants(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()
	if err := d.Set(ctx, "555", "Ann", "ann.png"); err != nil {
		t.Fatal(err)
	}
	if err := d.Set(ctx, "666", "Bob", "bob.png"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		raw  string
		want Recipient
	}{
		{"single keeps photo", "555", Recipient{RawAddress: "555", DisplayName: "Ann", PhotoRef: "ann.png"}},
		{"group drops photo", "555;666;777", Recipient{RawAddress: "555;666;777", DisplayName: "Ann, Bob, 777"}},
		{"empty", "", Recipient{DisplayName: "Unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveParticipants(ctx, d, tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ResolveParticipants(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (Info, error) {
	return Info{}, errors.New("contacts offline")
}

func TestResolveParticipantsFallsBackOnError(t *testing.T) {
	got, err := ResolveParticipants(context.Background(), failingResolver{}, "555")
	if err == nil {
		t.Error("expected joined error")
	}
	if got.DisplayName != "555" {
		t.Errorf("DisplayName = %q, want address fallback", got.DisplayName)
	}
}
