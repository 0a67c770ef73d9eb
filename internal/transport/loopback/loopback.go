// Package loopback is an outbox transport that confirms deliveries
// locally. The daemon uses it when no gateway is configured.
package loopback

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/outbox"
	"go.uber.org/zap"
)

// ErrRejected is reported for destinations marked with Reject.
var ErrRejected = errors.New("destination rejected")

// Transport confirms every segment on its own goroutine.
type Transport struct {
	logger *zap.Logger

	mu        sync.Mutex
	confirmer outbox.Confirmer
	rejected  map[string]bool
	wg        sync.WaitGroup
}

// New creates a loopback transport.
func New(logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{logger: logger, rejected: make(map[string]bool)}
}

// Bind sets where confirmations go.
func (t *Transport) Bind(c outbox.Confirmer) {
	t.mu.Lock()
	t.confirmer = c
	t.mu.Unlock()
}

// Reject makes every later delivery to addr fail.
func (t *Transport) Reject(addr string) {
	t.mu.Lock()
	t.rejected[address.Destination(addr)] = true
	t.mu.Unlock()
}

// Deliver confirms each segment asynchronously.
func (t *Transport) Deliver(_ context.Context, d outbox.Delivery) error {
	t.confirm(d.Token, d.Address, len(d.Segments))
	return nil
}

// DeliverMultimedia confirms the message asynchronously.
func (t *Transport) DeliverMultimedia(_ context.Context, d outbox.MultimediaDelivery) error {
	t.confirm(d.Token, d.Address, 1)
	return nil
}

// Wait blocks until every pending confirmation was delivered.
func (t *Transport) Wait() {
	t.wg.Wait()
}

func (t *Transport) confirm(token, addr string, segments int) {
	t.mu.Lock()
	c := t.confirmer
	var err error
	if t.rejected[address.Destination(addr)] {
		err = ErrRejected
	}
	t.mu.Unlock()
	if c == nil {
		t.logger.Warn("loopback delivery without confirmer", zap.String("token", token))
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for i := range segments {
			c.Confirm(token, i, err)
		}
	}()
}
