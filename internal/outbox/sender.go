// Package outbox sends messages optimistically: the row is written as
// queued first and settled to sent or failed when the transport reports.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrDeliveryFailed is recorded when the transport reports a failure.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrInvalidAddress is returned for destinations without digits.
	ErrInvalidAddress = errors.New("invalid destination address")
	// ErrEmptyMessage is returned for sends with nothing to send.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNotFound is returned by Resend for unknown messages.
	ErrNotFound = errors.New("message not found")
	// ErrNotFailed is returned by Resend for messages that have not failed.
	ErrNotFailed = errors.New("message has not failed")
	// ErrNoMultimedia is returned when the transport cannot send attachments.
	ErrNoMultimedia = errors.New("transport cannot send attachments")
)

// Trigger schedules a conversation rebuild.
type Trigger interface {
	Trigger()
}

// Result is the outcome of one send.
type Result struct {
	Token    string
	ID       int64
	ThreadID int64
	Segments int
}

// Outcome is published on the bus when a send settles.
type Outcome struct {
	Token string
	State provider.DeliveryState
	Err   string
}

// slot collects the confirmations of one logical send.
type slot struct {
	table     provider.Table
	id        int64
	remaining int
}

// Sender drives sends through queued, sent and failed.
type Sender struct {
	store     provider.Store
	db        *store.DB
	transport Transport
	bus       *bus.Bus
	trigger   Trigger
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

// NewSender creates a sender and binds it to t for confirmations. b and
// trigger may be nil.
func NewSender(s provider.Store, db *store.DB, t Transport, b *bus.Bus, trigger Trigger, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	snd := &Sender{
		store:     s,
		db:        db,
		transport: t,
		bus:       b,
		trigger:   trigger,
		logger:    logger,
		now:       time.Now,
		slots:     make(map[string]*slot),
	}
	t.Bind(snd)
	return snd
}

// Send writes a queued text row and hands it to the transport. It returns
// without waiting for delivery.
func (s *Sender) Send(ctx context.Context, addr, body string) (Result, error) {
	dest, err := checkText(addr, body)
	if err != nil {
		return Result{}, err
	}
	res, segments, err := s.queueText(ctx, dest, body)
	if err != nil {
		return Result{}, err
	}
	return s.deliverText(ctx, res, dest, segments)
}

// checkText validates a text send and returns its destination.
func checkText(addr, body string) (string, error) {
	dest := address.Destination(addr)
	if dest == "" {
		return "", fmt.Errorf("send to %q: %w", addr, ErrInvalidAddress)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("send to %q: %w", dest, ErrEmptyMessage)
	}
	return dest, nil
}

func (s *Sender) queueText(ctx context.Context, dest, body string) (Result, []string, error) {
	segments := Segment(body)
	res, err := s.queue(ctx, provider.TableText, dest, provider.Fields{
		Addresses: []string{dest},
		Body:      body,
		Date:      s.now().UnixMilli(),
		Read:      true,
		Direction: provider.Outbound,
		State:     provider.Queued,
	}, len(segments))
	if err != nil {
		return Result{}, nil, err
	}
	s.logger.Info("text queued",
		zap.String("token", res.Token),
		zap.Int("segments", len(segments)),
		zap.String("encoding", EncodingOf(body).String()))
	return res, segments, nil
}

func (s *Sender) deliverText(ctx context.Context, res Result, dest string, segments []string) (Result, error) {
	if err := s.transport.Deliver(ctx, Delivery{Token: res.Token, Address: dest, Segments: segments}); err != nil {
		s.settle(res.Token, fmt.Errorf("submit: %w", err))
		return res, fmt.Errorf("send %s: %w: %w", res.Token, ErrDeliveryFailed, err)
	}
	return res, nil
}

// SendWithAttachment writes a queued multimedia row and hands it to the
// transport's multimedia capability.
func (s *Sender) SendWithAttachment(ctx context.Context, addr, body string, att Attachment) (Result, error) {
	mt, ok := s.transport.(MultimediaTransport)
	if !ok {
		return Result{}, ErrNoMultimedia
	}
	dest := address.Destination(addr)
	if dest == "" {
		return Result{}, fmt.Errorf("send to %q: %w", addr, ErrInvalidAddress)
	}
	if len(att.Data) == 0 && strings.TrimSpace(body) == "" {
		return Result{}, fmt.Errorf("send to %q: %w", dest, ErrEmptyMessage)
	}
	if len(att.Data) > 0 && (att.ContentType == "" || att.ContentType == "application/octet-stream") {
		att.ContentType = mimetype.Detect(att.Data).String()
	}

	var ps []provider.Part
	if len(att.Data) > 0 {
		ps = append(ps, provider.Part{ContentType: att.ContentType, Name: att.Name, Data: att.Data})
	}
	if strings.TrimSpace(body) != "" {
		ps = append(ps, provider.Part{ContentType: "text/plain", Charset: "utf-8", Text: body})
	}

	// Multimedia dates are stored in seconds.
	res, err := s.queue(ctx, provider.TableMultimedia, dest, provider.Fields{
		Addresses: []string{dest},
		Date:      s.now().Unix(),
		Read:      true,
		Direction: provider.Outbound,
		State:     provider.Queued,
		Parts:     ps,
	}, 1)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("multimedia queued", zap.String("token", res.Token), zap.String("content_type", att.ContentType))
	if err := mt.DeliverMultimedia(ctx, MultimediaDelivery{Token: res.Token, Address: dest, Body: body, Attachment: att}); err != nil {
		s.settle(res.Token, fmt.Errorf("submit: %w", err))
		return res, fmt.Errorf("send %s: %w: %w", res.Token, ErrDeliveryFailed, err)
	}
	return res, nil
}

// Resend queues body to addr as a new row, discards the failed text row
// id, and hands the new row to the transport. The failed row stays when
// the new one cannot be queued.
func (s *Sender) Resend(ctx context.Context, id int64, addr, body string) (Result, error) {
	rows, err := s.store.Query(ctx, provider.Query{Table: provider.TableText, ID: id})
	if err != nil {
		return Result{}, fmt.Errorf("resend %d: %w", id, err)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("resend %d: %w", id, ErrNotFound)
	}
	if rows[0].State != provider.Failed {
		return Result{}, fmt.Errorf("resend %d in state %s: %w", id, rows[0].State, ErrNotFailed)
	}
	dest, err := checkText(addr, body)
	if err != nil {
		return Result{}, fmt.Errorf("resend %d: %w", id, err)
	}
	res, segments, err := s.queueText(ctx, dest, body)
	if err != nil {
		return Result{}, fmt.Errorf("resend %d: %w", id, err)
	}
	if _, err := s.store.Delete(ctx, provider.TableText, provider.Selector{ID: id}); err != nil {
		s.logger.Warn("failed text kept after resend", zap.Int64("id", id), zap.Error(err))
	} else {
		s.logger.Info("failed text discarded for resend", zap.Int64("id", id), zap.String("token", res.Token))
	}
	return s.deliverText(ctx, res, dest, segments)
}

// Confirm records the report for one segment of token. The send settles
// on its first failure or once every segment is delivered; later reports
// are ignored.
func (s *Sender) Confirm(token string, segment int, err error) {
	s.mu.Lock()
	sl, ok := s.slots[token]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("confirmation for unknown or settled send", zap.String("token", token), zap.Int("segment", segment))
		return
	}
	sl.remaining--
	done := err != nil || sl.remaining <= 0
	s.mu.Unlock()

	if done {
		s.settle(token, err)
	}
}

// InFlight returns how many sends await confirmation.
func (s *Sender) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Recover fails every journaled send still queued, since their
// confirmations cannot arrive after a restart. It returns how many were
// failed.
func (s *Sender) Recover(ctx context.Context) (int, error) {
	entries, err := s.db.PendingOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}
	const reason = "confirmation lost on restart"
	n := 0
	for _, e := range entries {
		table, id, err := provider.ParseToken(e.Token)
		if err != nil {
			s.logger.Warn("skipping malformed outbox token", zap.String("token", e.Token), zap.Error(err))
			continue
		}
		if err := s.setState(ctx, table, id, provider.Failed); err != nil {
			s.logger.Warn("failed to fail recovered send", zap.String("token", e.Token), zap.Error(err))
		}
		if err := s.db.MarkOutboxFailed(ctx, e.Token, reason); err != nil {
			return n, fmt.Errorf("mark %s failed: %w", e.Token, err)
		}
		n++
	}
	if n > 0 {
		s.logger.Warn("unconfirmed sends failed after restart", zap.Int("count", n))
		s.changed()
	}
	return n, nil
}

func (s *Sender) queue(ctx context.Context, t provider.Table, dest string, f provider.Fields, segments int) (Result, error) {
	id, err := s.store.Insert(ctx, t, f)
	if err != nil {
		return Result{}, fmt.Errorf("queue %s to %s: %w", t, dest, err)
	}
	res := Result{Token: provider.Token(t, id), ID: id, Segments: segments}

	rows, err := s.store.Query(ctx, provider.Query{Table: t, ID: id})
	if err == nil && len(rows) == 1 {
		res.ThreadID = rows[0].ThreadID
	}
	// A row that cannot be journaled is withdrawn.
	if err := s.db.QueueOutbox(ctx, &store.OutboxEntry{Token: res.Token, ThreadID: res.ThreadID, Address: dest, Segments: segments}); err != nil {
		if _, delErr := s.store.Delete(context.WithoutCancel(ctx), t, provider.Selector{ID: id}); delErr != nil {
			s.logger.Error("failed to withdraw unjournaled row", zap.String("token", res.Token), zap.Error(delErr))
		}
		return Result{}, fmt.Errorf("journal %s: %w", res.Token, err)
	}

	s.mu.Lock()
	s.slots[res.Token] = &slot{table: t, id: id, remaining: segments}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit(bus.KindOutboxQueued, res)
	}
	s.changed()
	return res, nil
}

// settle applies the final state of token exactly once.
func (s *Sender) settle(token string, deliveryErr error) {
	s.mu.Lock()
	sl, ok := s.slots[token]
	delete(s.slots, token)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	out := Outcome{Token: token, State: provider.Sent}
	if deliveryErr != nil {
		out.State = provider.Failed
		out.Err = deliveryErr.Error()
	}

	if err := s.setState(ctx, sl.table, sl.id, out.State); err != nil {
		s.logger.Error("failed to settle message state", zap.String("token", token), zap.Error(err))
	}
	var journalErr error
	if deliveryErr != nil {
		journalErr = s.db.MarkOutboxFailed(ctx, token, out.Err)
		s.logger.Warn("send failed", zap.String("token", token), zap.Error(fmt.Errorf("%w: %w", ErrDeliveryFailed, deliveryErr)))
	} else {
		journalErr = s.db.MarkOutboxSent(ctx, token)
		s.logger.Info("send delivered", zap.String("token", token))
	}
	if journalErr != nil {
		s.logger.Warn("failed to update send journal", zap.String("token", token), zap.Error(journalErr))
	}

	if s.bus != nil {
		kind := bus.KindOutboxDelivered
		if deliveryErr != nil {
			kind = bus.KindOutboxFailed
		}
		s.bus.Emit(kind, out)
	}
	s.changed()
}

// setState moves a row forward, refusing transitions out of terminal
// states.
func (s *Sender) setState(ctx context.Context, t provider.Table, id int64, to provider.DeliveryState) error {
	rows, err := s.store.Query(ctx, provider.Query{Table: t, ID: id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	if !provider.CanTransition(rows[0].State, to) {
		return fmt.Errorf("%s %d: cannot move from %s to %s", t, id, rows[0].State, to)
	}
	_, err = s.store.Update(ctx, t, provider.Selector{ID: id}, provider.Patch{State: &to})
	return err
}

func (s *Sender) changed() {
	if s.trigger != nil {
		s.trigger.Trigger()
	}
}
