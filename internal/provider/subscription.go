package provider

import "sync"

// Notifier fans store changes out to subscribers. The zero value is ready
// to use.
type Notifier struct {
	mu   sync.RWMutex
	subs map[int]func(Change)
	next int
}

// Subscribe registers fn for every change until the returned handle is
// closed. fn runs on the writer's goroutine and must not block.
func (n *Notifier) Subscribe(fn func(Change)) *Subscription {
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[int]func(Change))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}}
}

// Notify delivers c to every subscriber.
func (n *Notifier) Notify(c Change) {
	n.mu.RLock()
	fns := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Subscription is the handle returned by Subscribe. Its owner must Close it.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close stops delivery. Safe to call more than once and on nil.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
