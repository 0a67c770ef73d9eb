package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/provider/providertest"
	"github.com/matheus3301/smsync/internal/provider/sqlprovider"
	"github.com/matheus3301/smsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

type fixture struct {
	msgs      *sqlprovider.Store
	db        *store.DB
	bus       *bus.Bus
	trigger   *countingTrigger
	transport *MockTransport
	sender    *Sender
	delivered []Delivery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		msgs:      providertest.Open(t),
		db:        testDB(t),
		bus:       bus.New(),
		trigger:   &countingTrigger{},
		transport: NewMockTransport(ctrl),
	}
	f.transport.EXPECT().Bind(gomock.Any())
	f.transport.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d Delivery) error {
		f.delivered = append(f.delivered, d)
		return nil
	}).AnyTimes()
	f.sender = NewSender(f.msgs, f.db, f.transport, f.bus, f.trigger, nil)
	return f
}

func (f *fixture) state(t *testing.T, table provider.Table, id int64) provider.DeliveryState {
	t.Helper()
	return providertest.Get(t, f.msgs, table, id).State
}

func TestSendQueuesThenConfirms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events, unsub := f.bus.Subscribe("outbox.", 8)
	defer unsub()

	res, err := f.sender.Send(ctx, "+1 (555) 010-2000", "hello")
	require.NoError(t, err)
	assert.Equal(t, provider.Token(provider.TableText, res.ID), res.Token)
	assert.NotZero(t, res.ThreadID)

	require.Len(t, f.delivered, 1)
	assert.Equal(t, Delivery{Token: res.Token, Address: "+15550102000", Segments: []string{"hello"}}, f.delivered[0])

	row := providertest.Get(t, f.msgs, provider.TableText, res.ID)
	assert.Equal(t, provider.Queued, row.State)
	assert.Equal(t, provider.Outbound, row.Direction)
	assert.Equal(t, 1, f.sender.InFlight())

	f.sender.Confirm(res.Token, 0, nil)
	assert.Equal(t, provider.Sent, f.state(t, provider.TableText, res.ID))
	assert.Zero(t, f.sender.InFlight())

	entry, err := f.db.GetOutbox(ctx, res.Token)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "sent", entry.Status)

	assert.Equal(t, bus.KindOutboxQueued, (<-events).Kind)
	evt := <-events
	assert.Equal(t, bus.KindOutboxDelivered, evt.Kind)
	assert.Equal(t, Outcome{Token: res.Token, State: provider.Sent}, evt.Payload)
	assert.GreaterOrEqual(t, f.trigger.n, 2)
}

func TestGatewayAddressIsNotNormalized(t *testing.T) {
	f := newFixture(t)
	_, err := f.sender.Send(context.Background(), "Alerts@Example.com", "hi")
	require.NoError(t, err)
	require.Len(t, f.delivered, 1)
	assert.Equal(t, "Alerts@Example.com", f.delivered[0].Address)
}

func TestSendRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.sender.Send(context.Background(), "call me", "hi")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = f.sender.Send(context.Background(), "555", "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, f.delivered)
}

func TestMultipartSendSettlesOnce(t *testing.T) {
	f := newFixture(t)
	res, err := f.sender.Send(context.Background(), "555", strings.Repeat("a", 200))
	require.NoError(t, err)
	require.Len(t, f.delivered[0].Segments, 2)
	assert.Equal(t, 2, res.Segments)

	f.sender.Confirm(res.Token, 0, nil)
	assert.Equal(t, provider.Queued, f.state(t, provider.TableText, res.ID), "settled before the last segment")

	f.sender.Confirm(res.Token, 1, nil)
	assert.Equal(t, provider.Sent, f.state(t, provider.TableText, res.ID))

	// A late duplicate report changes nothing.
	f.sender.Confirm(res.Token, 1, errors.New("late"))
	assert.Equal(t, provider.Sent, f.state(t, provider.TableText, res.ID))
}

func TestFailedSegmentFailsWholeSend(t *testing.T) {
	f := newFixture(t)
	events, unsub := f.bus.Subscribe(bus.KindOutboxFailed, 4)
	defer unsub()

	res, err := f.sender.Send(context.Background(), "555", strings.Repeat("b", 400))
	require.NoError(t, err)
	require.Len(t, f.delivered[0].Segments, 3)

	f.sender.Confirm(res.Token, 1, errors.New("radio off"))
	assert.Equal(t, provider.Failed, f.state(t, provider.TableText, res.ID))
	f.sender.Confirm(res.Token, 0, nil)
	f.sender.Confirm(res.Token, 2, nil)
	assert.Equal(t, provider.Failed, f.state(t, provider.TableText, res.ID))

	out := (<-events).Payload.(Outcome)
	assert.Equal(t, provider.Failed, out.State)
	assert.Contains(t, out.Err, "radio off")
	assert.Empty(t, events, "failure published more than once")
}

func TestSendFailResendSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sender.Send(ctx, "555", "are you there")
	require.NoError(t, err)
	f.sender.Confirm(first.Token, 0, errors.New("no service"))
	require.Equal(t, provider.Failed, f.state(t, provider.TableText, first.ID))

	second, err := f.sender.Resend(ctx, first.ID, "555", "are you there")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	f.sender.Confirm(second.Token, 0, nil)

	rows, err := f.msgs.Query(ctx, provider.Query{Table: provider.TableText, ThreadID: first.ThreadID})
	require.NoError(t, err)
	require.Len(t, rows, 1, "failed row not removed")
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, provider.Sent, rows[0].State)
}

func TestResendRequiresFailedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.sender.Send(ctx, "555", "pending")
	require.NoError(t, err)
	_, err = f.sender.Resend(ctx, res.ID, "555", "pending")
	assert.ErrorIs(t, err, ErrNotFailed)

	_, err = f.sender.Resend(ctx, 9999, "555", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, provider.Queued, f.state(t, provider.TableText, res.ID))
}

func TestRejectedResendKeepsFailedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sender.Send(ctx, "555", "hello")
	require.NoError(t, err)
	f.sender.Confirm(first.Token, 0, errors.New("no service"))

	_, err = f.sender.Resend(ctx, first.ID, "no digits here", "hello")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = f.sender.Resend(ctx, first.ID, "555", "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	rows, err := f.msgs.Query(ctx, provider.Query{Table: provider.TableText})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, provider.Failed, rows[0].State)
	assert.Len(t, f.delivered, 1)
}

func TestUnjournaledSendIsWithdrawn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Close())

	_, err := f.sender.Send(ctx, "555", "hello")
	require.Error(t, err)

	rows, err := f.msgs.Query(ctx, provider.Query{Table: provider.TableText})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.delivered)
	assert.Zero(t, f.sender.InFlight())
}

func TestRejectedSubmissionFailsRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	tr.EXPECT().Bind(gomock.Any())
	tr.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("gateway down"))
	msgs := providertest.Open(t)
	s := NewSender(msgs, testDB(t), tr, nil, nil, nil)

	res, err := s.Send(context.Background(), "555", "hi")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, provider.Failed, providertest.Get(t, msgs, provider.TableText, res.ID).State)
	assert.Zero(t, s.InFlight())
}

// multimediaTransport combines the two generated mocks.
type multimediaTransport struct {
	*MockTransport
	*MockMultimediaTransport
}

func TestSendWithAttachment(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := multimediaTransport{NewMockTransport(ctrl), NewMockMultimediaTransport(ctrl)}
	tr.MockTransport.EXPECT().Bind(gomock.Any())
	var got MultimediaDelivery
	tr.MockMultimediaTransport.EXPECT().DeliverMultimedia(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d MultimediaDelivery) error {
		got = d
		return nil
	})
	msgs := providertest.Open(t)
	s := NewSender(msgs, testDB(t), tr, nil, nil, nil)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	res, err := s.SendWithAttachment(context.Background(), "555", "look", Attachment{Name: "dot.png", Data: png})
	require.NoError(t, err)
	assert.Equal(t, provider.Token(provider.TableMultimedia, res.ID), got.Token)
	assert.Equal(t, "image/png", got.Attachment.ContentType)

	ps, err := msgs.Parts(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "image/png", ps[0].ContentType)
	assert.Equal(t, "look", ps[1].Text)

	s.Confirm(res.Token, 0, nil)
	assert.Equal(t, provider.Sent, providertest.Get(t, msgs, provider.TableMultimedia, res.ID).State)
}

func TestSendWithAttachmentNeedsCapability(t *testing.T) {
	f := newFixture(t)
	_, err := f.sender.SendWithAttachment(context.Background(), "555", "x", Attachment{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrNoMultimedia)
}

func TestRecoverFailsUnconfirmedSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lost, err := f.sender.Send(ctx, "555", "never confirmed")
	require.NoError(t, err)
	done, err := f.sender.Send(ctx, "555", "confirmed")
	require.NoError(t, err)
	f.sender.Confirm(done.Token, 0, nil)

	// A restarted daemon has no confirmation slots.
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)
	tr.EXPECT().Bind(gomock.Any())
	restarted := NewSender(f.msgs, f.db, tr, nil, nil, nil)

	n, err := restarted.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, provider.Failed, f.state(t, provider.TableText, lost.ID))
	assert.Equal(t, provider.Sent, f.state(t, provider.TableText, done.ID))

	n, err = restarted.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
