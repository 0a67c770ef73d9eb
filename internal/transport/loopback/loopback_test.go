package loopback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matheus3301/smsync/internal/outbox"
)

type recorder struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (r *recorder) Confirm(token string, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs == nil {
		r.errs = make(map[string][]error)
	}
	r.errs[token] = append(r.errs[token], err)
}

func TestDeliverConfirmsEverySegment(t *testing.T) {
	tr := New(nil)
	rec := &recorder{}
	tr.Bind(rec)
	tr.Reject("+1 (555) 000-0000")

	ctx := context.Background()
	_ = tr.Deliver(ctx, outbox.Delivery{Token: "text:1", Address: "555", Segments: []string{"a", "b", "c"}})
	_ = tr.Deliver(ctx, outbox.Delivery{Token: "text:2", Address: "+15550000000", Segments: []string{"a"}})
	_ = tr.DeliverMultimedia(ctx, outbox.MultimediaDelivery{Token: "multimedia:1", Address: "555"})
	tr.Wait()

	if got := rec.errs["text:1"]; len(got) != 3 || got[0] != nil {
		t.Errorf("text:1 confirmations = %v, want 3 successes", got)
	}
	if got := rec.errs["text:2"]; len(got) != 1 || !errors.Is(got[0], ErrRejected) {
		t.Errorf("text:2 confirmations = %v, want rejection", got)
	}
	if got := rec.errs["multimedia:1"]; len(got) != 1 || got[0] != nil {
		t.Errorf("multimedia:1 confirmations = %v", got)
	}
}
