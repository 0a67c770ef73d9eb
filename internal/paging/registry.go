package paging

import (
	"sync"

	"github.com/matheus3301/smsync/internal/provider"
	"go.uber.org/zap"
)

// Registry hands out sources and invalidates them when the store changes.
type Registry struct {
	store   provider.Store
	content ContentSource
	logger  *zap.Logger

	mu   sync.Mutex
	open map[*Source]struct{}
	sub  *provider.Subscription
}

// NewRegistry creates a registry over s.
func NewRegistry(s provider.Store, content ContentSource, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: s, content: content, logger: logger, open: make(map[*Source]struct{})}
}

// Start subscribes to store changes.
func (r *Registry) Start() {
	r.sub = r.store.Subscribe(r.Invalidate)
}

// Stop unsubscribes and invalidates every open source.
func (r *Registry) Stop() {
	r.sub.Close()
	r.Invalidate(provider.Change{})
}

// Open returns a new source for threadID. The caller closes it.
func (r *Registry) Open(threadID int64) *Source {
	src := newSource(r.store, r.content, threadID)
	r.mu.Lock()
	r.open[src] = struct{}{}
	r.mu.Unlock()
	src.release = func() {
		r.mu.Lock()
		delete(r.open, src)
		r.mu.Unlock()
	}
	return src
}

// Invalidate drops every source of the changed thread, or every source
// when the change does not name one.
func (r *Registry) Invalidate(c provider.Change) {
	r.mu.Lock()
	var hit []*Source
	for src := range r.open {
		if c.ThreadID == 0 || src.threadID == c.ThreadID {
			hit = append(hit, src)
			delete(r.open, src)
		}
	}
	r.mu.Unlock()

	for _, src := range hit {
		src.Invalidate()
	}
	if len(hit) > 0 {
		r.logger.Debug("paging sources invalidated", zap.Int64("thread_id", c.ThreadID), zap.Int("sources", len(hit)))
	}
}

// OpenCount returns how many sources are live.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
