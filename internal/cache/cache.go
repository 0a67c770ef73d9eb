// Package cache holds the materialized conversation list read by clients.
package cache

import (
	"context"
	"fmt"
	"slices"

	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/store"
	"go.uber.org/zap"
)

// Generation is one complete conversation list. Number increases with
// every Replace.
type Generation struct {
	Number        int64
	Conversations []store.Conversation
}

// Cache is the conversation list stored in the app database.
type Cache struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a cache over db. Replacements are announced on b when it is
// not nil.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{db: db, bus: b, logger: logger}
}

// Replace swaps in convs as the new generation.
func (c *Cache) Replace(ctx context.Context, convs []store.Conversation) (int64, error) {
	gen, err := c.db.ReplaceConversations(ctx, convs)
	if err != nil {
		return 0, fmt.Errorf("replace conversation cache: %w", err)
	}
	c.logger.Debug("conversation cache replaced", zap.Int64("generation", gen), zap.Int("conversations", len(convs)))
	if c.bus != nil {
		c.bus.Emit(bus.KindCacheReplaced, Generation{Number: gen, Conversations: slices.Clone(convs)})
	}
	return gen, nil
}

// ReadAll returns the current generation.
func (c *Cache) ReadAll(ctx context.Context) (Generation, error) {
	convs, gen, err := c.db.ListConversations(ctx)
	if err != nil {
		return Generation{}, fmt.Errorf("read conversation cache: %w", err)
	}
	return Generation{Number: gen, Conversations: convs}, nil
}

// Get returns the cached conversation of threadID, or nil.
func (c *Cache) Get(ctx context.Context, threadID int64) (*store.Conversation, error) {
	return c.db.GetConversation(ctx, threadID)
}

// Stream delivers the current generation and then every newer one until
// ctx ends. A slow reader only ever receives the latest generation it
// missed.
func (c *Cache) Stream(ctx context.Context) (<-chan Generation, error) {
	if c.bus == nil {
		return nil, fmt.Errorf("stream conversation cache: no event bus")
	}
	events, unsub := c.bus.Subscribe(bus.KindCacheReplaced, 16)
	first, err := c.ReadAll(ctx)
	if err != nil {
		unsub()
		return nil, err
	}

	out := make(chan Generation)
	go func() {
		defer close(out)
		defer unsub()

		pending := &first
		sent := int64(-1)
		for {
			var send chan<- Generation
			var next Generation
			if pending != nil {
				send = out
				next = *pending
			}
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				g, ok := evt.Payload.(Generation)
				if !ok || g.Number <= sent || (pending != nil && g.Number <= pending.Number) {
					continue
				}
				pending = &g
			case send <- next:
				sent = next.Number
				pending = nil
			}
		}
	}()
	return out, nil
}
