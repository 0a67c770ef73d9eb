package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/smsync/internal/jobs"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	calls int
}

func (f *fakeSender) Send(_ context.Context, addr, body string) (outbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return outbox.Result{}, f.fail
	}
	f.sent = append(f.sent, addr+":"+body)
	return outbox.Result{Token: "text:1"}, nil
}

func (f *fakeSender) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newScheduler(t *testing.T, sender TextSender) (*Scheduler, *store.DB, *jobs.Runner) {
	t.Helper()
	db := testDB(t)
	r := jobs.NewRunner(nil)
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	s, err := New(db, r, sender, nil, "", nil)
	require.NoError(t, err)
	return s, db, r
}

func statusOf(t *testing.T, db *store.DB, id int64) store.ScheduledStatus {
	t.Helper()
	m, err := db.GetScheduled(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m.Status
}

func TestDueMessageIsSent(t *testing.T) {
	sender := &fakeSender{}
	s, db, _ := newScheduler(t, sender)

	m, err := s.Schedule(context.Background(), 3, "555", "wake up", time.Now().Add(-time.Second))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return statusOf(t, db, m.ID) == store.ScheduledSent
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"555:wake up"}, sender.sentMessages())
}

func TestFailedSendIsRecorded(t *testing.T) {
	sender := &fakeSender{fail: outbox.ErrInvalidAddress}
	s, db, _ := newScheduler(t, sender)

	m, err := s.Schedule(context.Background(), 3, "nowhere", "hi", time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return statusOf(t, db, m.ID) == store.ScheduledFailed
	}, 2*time.Second, 10*time.Millisecond)
	got, err := db.GetScheduled(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Contains(t, got.ErrorMessage, "invalid destination")
}

func TestCancelDropsJob(t *testing.T) {
	sender := &fakeSender{}
	s, db, r := newScheduler(t, sender)
	ctx := context.Background()

	m, err := s.Schedule(ctx, 3, "555", "later", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, r.Pending(Tag(m.ID)))

	require.NoError(t, s.Cancel(ctx, m.ID))
	assert.False(t, r.Pending(Tag(m.ID)))
	assert.Equal(t, store.ScheduledCancelled, statusOf(t, db, m.ID))

	assert.ErrorIs(t, s.Cancel(ctx, m.ID), ErrNotPending)
	assert.ErrorIs(t, s.Cancel(ctx, 404), ErrNotFound)
	assert.Zero(t, sender.count())
}

func TestScheduleValidates(t *testing.T) {
	s, _, _ := newScheduler(t, &fakeSender{})
	_, err := s.Schedule(context.Background(), 1, "", "x", time.Now())
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Schedule(context.Background(), 1, "555", " ", time.Now())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRestoreRearmsPending(t *testing.T) {
	sender := &fakeSender{}
	s, db, r := newScheduler(t, sender)
	ctx := context.Background()

	due, err := db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "due", ScheduledAt: time.Now().Add(-time.Minute).UnixMilli()})
	require.NoError(t, err)
	future, err := db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "future", ScheduledAt: time.Now().Add(time.Hour).UnixMilli()})
	require.NoError(t, err)
	done, err := db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "done", ScheduledAt: 1})
	require.NoError(t, err)
	_, err = db.FinishScheduled(ctx, done, store.ScheduledSent, "")
	require.NoError(t, err)

	n, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Eventually(t, func() bool { return statusOf(t, db, due) == store.ScheduledSent }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, r.Pending(Tag(future)))
	assert.Equal(t, 1, sender.count())
}

func TestSweepArmsOnlyUnarmedDueMessages(t *testing.T) {
	sender := &fakeSender{}
	s, db, _ := newScheduler(t, sender)
	ctx := context.Background()

	id, err := db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "missed", ScheduledAt: time.Now().Add(-time.Hour).UnixMilli()})
	require.NoError(t, err)
	_, err = db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "not yet", ScheduledAt: time.Now().Add(time.Hour).UnixMilli()})
	require.NoError(t, err)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return statusOf(t, db, id) == store.ScheduledSent }, 2*time.Second, 10*time.Millisecond)
}

// blockingSender holds every send until release is closed.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingSender) Send(ctx context.Context, _, _ string) (outbox.Result, error) {
	close(b.started)
	select {
	case <-b.release:
		b.ctxErr <- ctx.Err()
		return outbox.Result{Token: "text:1"}, nil
	case <-ctx.Done():
		b.ctxErr <- ctx.Err()
		return outbox.Result{}, ctx.Err()
	}
}

func TestSweepLeavesSendInFlightAlone(t *testing.T) {
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	s, db, _ := newScheduler(t, sender)
	ctx := context.Background()

	m, err := s.Schedule(ctx, 1, "555", "slow", time.Now().Add(-time.Second))
	require.NoError(t, err)
	select {
	case <-sender.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled send never started")
	}

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	close(sender.release)
	select {
	case err := <-sender.ctxErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not finish")
	}
	require.Eventually(t, func() bool { return statusOf(t, db, m.ID) == store.ScheduledSent }, 2*time.Second, 10*time.Millisecond)
}

func TestFireSkipsFinishedMessages(t *testing.T) {
	sender := &fakeSender{}
	s, db, _ := newScheduler(t, sender)
	ctx := context.Background()

	id, err := db.InsertScheduled(ctx, &store.ScheduledMessage{ThreadID: 1, Address: "555", Body: "x", ScheduledAt: 1})
	require.NoError(t, err)
	_, err = db.FinishScheduled(ctx, id, store.ScheduledCancelled, "")
	require.NoError(t, err)

	s.fire(ctx, id)
	s.fire(ctx, 999)
	assert.Zero(t, sender.count())
}

func TestNewRejectsBadSweep(t *testing.T) {
	_, err := New(nil, nil, nil, nil, "every now and then", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
}

func TestStartStop(t *testing.T) {
	s, _, _ := newScheduler(t, &fakeSender{})
	require.NoError(t, s.Start())
	s.Stop()
}
