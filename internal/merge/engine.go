package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/block"
	"github.com/matheus3301/smsync/internal/contacts"
	"github.com/matheus3301/smsync/internal/parts"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRecencyCap is how many recent rows of each table a merge reads.
const DefaultRecencyCap = 100

// BlockSource supplies the block set of a cycle.
type BlockSource interface {
	Snapshot(ctx context.Context) (block.Set, error)
}

// PinSource supplies the pinned threads of a cycle.
type PinSource interface {
	Pinned(ctx context.Context) (map[int64]bool, error)
}

// ContentSource resolves the displayable content of a multimedia record.
type ContentSource interface {
	Resolve(ctx context.Context, id int64) parts.Content
}

// Result is the outcome of one merge.
type Result struct {
	Conversations []store.Conversation
	// Failed lists the tables whose query failed and contributed nothing.
	Failed []provider.Table
}

// Partial reports whether some table was missing from the merge.
func (r Result) Partial() bool {
	return len(r.Failed) > 0
}

// Unavailable reports whether every table was missing.
func (r Result) Unavailable() bool {
	return len(r.Failed) == 2
}

// Engine reads one snapshot of the store and overlays and merges it.
type Engine struct {
	store      provider.Store
	blocks     BlockSource
	pins       PinSource
	content    ContentSource
	resolver   contacts.Resolver
	recencyCap int
	logger     *zap.Logger
}

// NewEngine creates a merge engine. A non-positive recencyCap uses
// DefaultRecencyCap.
func NewEngine(s provider.Store, blocks BlockSource, pins PinSource, content ContentSource, resolver contacts.Resolver, recencyCap int, logger *zap.Logger) *Engine {
	if recencyCap <= 0 {
		recencyCap = DefaultRecencyCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      s,
		blocks:     blocks,
		pins:       pins,
		content:    content,
		resolver:   resolver,
		recencyCap: recencyCap,
		logger:     logger,
	}
}

// Run performs one merge. A failing table degrades to empty and is listed
// in Result.Failed. Errors reading the overlays abort the merge.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var (
		blocked           block.Set
		pinned            map[int64]bool
		textRows, mmsRows []provider.Row
		textErr, mmsErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocked, err = e.blocks.Snapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pinned, err = e.pins.Pinned(gctx)
		return err
	})
	g.Go(func() error {
		textRows, textErr = e.store.Query(gctx, provider.Query{Table: provider.TableText, Limit: e.recencyCap})
		return nil
	})
	g.Go(func() error {
		mmsRows, mmsErr = e.store.Query(gctx, provider.Query{Table: provider.TableMultimedia, Limit: e.recencyCap})
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("merge: %w", err)
	}

	var res Result
	if textErr != nil {
		e.logger.Error("text table unavailable, merging without it", zap.Error(textErr))
		res.Failed = append(res.Failed, provider.TableText)
		textRows = nil
	}
	if mmsErr != nil {
		e.logger.Error("multimedia table unavailable, merging without it", zap.Error(mmsErr))
		res.Failed = append(res.Failed, provider.TableMultimedia)
		mmsRows = nil
	}

	res.Conversations = Merge(Input{
		Text:       e.candidates(ctx, FirstPerThread(textRows)),
		Multimedia: e.candidates(ctx, FirstPerThread(mmsRows)),
		Pinned:     pinned,
		Blocked:    blocked,
	})
	return res, nil
}

func (e *Engine) candidates(ctx context.Context, rows []provider.Row) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		c := Candidate{Row: r, Snippet: r.Body}
		if r.Table == provider.TableMultimedia {
			if strings.TrimSpace(r.Body) == "" && e.content != nil {
				c.Snippet = e.content.Resolve(ctx, r.ID).Snippet()
			}
			if len(address.Split(r.Address)) == 0 {
				c.Recipient = contacts.Recipient{RawAddress: address.PlaceholderAddress, DisplayName: address.PlaceholderName}
				out = append(out, c)
				continue
			}
		}
		rec, err := contacts.ResolveParticipants(ctx, e.resolver, r.Address)
		if err != nil {
			e.logger.Debug("contact lookup failed", zap.Int64("thread_id", r.ThreadID), zap.Error(err))
		}
		c.Recipient = rec
		out = append(out, c)
	}
	return out
}
