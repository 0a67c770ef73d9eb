package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestReplaceConversationsKeepsOrderAndBumpsGeneration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := []Conversation{
		{ThreadID: 3, RawAddress: "555", DisplayName: "Ann", Snippet: "hi", LastActivityAt: 10, IsPinned: true},
		{ThreadID: 1, RawAddress: "666", DisplayName: "666", Snippet: "yo", LastActivityAt: 30},
	}
	gen, err := db.ReplaceConversations(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if gen != 1 {
		t.Errorf("generation = %d, want 1", gen)
	}

	got, gotGen, err := db.ListConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if gotGen != 1 {
		t.Errorf("listed generation = %d, want 1", gotGen)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("conversations mismatch (-want +got):\n%s", diff)
	}

	gen, err = db.ReplaceConversations(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gen != 2 {
		t.Errorf("generation = %d, want 2", gen)
	}
	got, _, err = db.ListConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Conversation{}, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("want empty list after replace, got:\n%s", diff)
	}
}

func TestGetConversation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.ReplaceConversations(ctx, []Conversation{{ThreadID: 7, Snippet: "s"}}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation(ctx, 7)
	if err != nil || c == nil || c.Snippet != "s" {
		t.Fatalf("GetConversation = %+v, %v", c, err)
	}
	c, err = db.GetConversation(ctx, 8)
	if err != nil || c != nil {
		t.Errorf("GetConversation(missing) = %+v, %v", c, err)
	}
	n, err := db.ConversationCount(ctx)
	if err != nil || n != 1 {
		t.Errorf("ConversationCount = %d, %v", n, err)
	}
}

func TestBlockedNumbers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	added, err := db.AddBlockedNumber(ctx, "+1555")
	if err != nil || !added {
		t.Fatalf("AddBlockedNumber = %v, %v", added, err)
	}
	added, err = db.AddBlockedNumber(ctx, "+1555")
	if err != nil || added {
		t.Fatalf("duplicate AddBlockedNumber = %v, %v", added, err)
	}
	n, err := db.AddBlockedNumbers(ctx, []string{"+1555", "666", "777"})
	if err != nil || n != 2 {
		t.Fatalf("AddBlockedNumbers = %d, %v", n, err)
	}

	blocked, err := db.IsBlockedNumber(ctx, "666")
	if err != nil || !blocked {
		t.Errorf("IsBlockedNumber(666) = %v, %v", blocked, err)
	}
	removed, err := db.RemoveBlockedNumber(ctx, "666")
	if err != nil || !removed {
		t.Errorf("RemoveBlockedNumber = %v, %v", removed, err)
	}
	list, err := db.ListBlockedNumbers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("got %d blocked numbers, want 2", len(list))
	}
}

func TestMetadataDefaultsAndPins(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m, err := db.GetMetadata(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Metadata{ThreadID: 5}, m); diff != "" {
		t.Errorf("default metadata mismatch:\n%s", diff)
	}

	if err := db.SetCustomSound(ctx, 5, "bell.ogg"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetPinned(ctx, 5, true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetPinned(ctx, 6, true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetPinned(ctx, 6, false); err != nil {
		t.Fatal(err)
	}

	m, err = db.GetMetadata(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Metadata{ThreadID: 5, IsPinned: true, CustomSound: "bell.ogg"}, m); diff != "" {
		t.Errorf("metadata mismatch:\n%s", diff)
	}
	pinned, err := db.PinnedThreadIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[int64]bool{5: true}, pinned); diff != "" {
		t.Errorf("pinned mismatch:\n%s", diff)
	}
}

func TestScheduledLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	early, err := db.InsertScheduled(ctx, &ScheduledMessage{ThreadID: 1, Address: "555", Body: "a", ScheduledAt: 100})
	if err != nil {
		t.Fatal(err)
	}
	late, err := db.InsertScheduled(ctx, &ScheduledMessage{ThreadID: 2, Address: "666", Body: "b", ScheduledAt: 900})
	if err != nil {
		t.Fatal(err)
	}

	due, err := db.PendingScheduled(ctx, 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != early {
		t.Fatalf("PendingScheduled = %+v", due)
	}

	ok, err := db.FinishScheduled(ctx, early, ScheduledSent, "")
	if err != nil || !ok {
		t.Fatalf("FinishScheduled = %v, %v", ok, err)
	}
	ok, err = db.FinishScheduled(ctx, early, ScheduledCancelled, "")
	if err != nil || ok {
		t.Errorf("finishing a non-pending message = %v, %v", ok, err)
	}

	m, err := db.GetScheduled(ctx, early)
	if err != nil || m == nil || m.Status != ScheduledSent {
		t.Errorf("GetScheduled = %+v, %v", m, err)
	}
	all, err := db.ListScheduled(ctx, 0)
	if err != nil || len(all) != 2 {
		t.Errorf("ListScheduled(0) = %d, %v", len(all), err)
	}
	byThread, err := db.ListScheduled(ctx, 2)
	if err != nil || len(byThread) != 1 || byThread[0].ID != late {
		t.Errorf("ListScheduled(2) = %+v, %v", byThread, err)
	}
}

func TestOutboxJournal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, tok := range []string{"text:1", "text:2"} {
		if err := db.QueueOutbox(ctx, &OutboxEntry{Token: tok, ThreadID: 1, Address: "555", Segments: 2}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.MarkOutboxSent(ctx, "text:1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed(ctx, "text:2", "no signal"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0", len(pending))
	}
	e, err := db.GetOutbox(ctx, "text:2")
	if err != nil || e == nil {
		t.Fatalf("GetOutbox = %+v, %v", e, err)
	}
	if e.Status != "failed" || e.ErrorMessage != "no signal" || e.Segments != 2 {
		t.Errorf("entry = %+v", e)
	}
}

func TestContacts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.BulkUpsertContacts(ctx, []Contact{{Address: "555", Name: "Ann"}, {Address: "666", Name: "Bob"}}); err != nil {
		t.Fatal(err)
	}
	// Blank name keeps the stored one.
	if err := db.UpsertContact(ctx, &Contact{Address: "555", PhotoRef: "ann.png"}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetContact(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&Contact{Address: "555", Name: "Ann", PhotoRef: "ann.png"}, c); diff != "" {
		t.Errorf("contact mismatch:\n%s", diff)
	}
	missing, err := db.GetContact(ctx, "000")
	if err != nil || missing != nil {
		t.Errorf("GetContact(missing) = %+v, %v", missing, err)
	}
	all, err := db.ListContacts(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("ListContacts = %d, %v", len(all), err)
	}
}

func TestCheckpoints(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, ok, err := db.Checkpoint(ctx, "k")
	if err != nil || ok {
		t.Fatalf("Checkpoint(unset) = %v, %v", ok, err)
	}
	if err := db.SetCheckpoint(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Checkpoint(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Errorf("Checkpoint = %q, %v, %v", v, ok, err)
	}
}
