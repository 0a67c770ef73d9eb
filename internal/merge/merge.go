// Package merge folds the text and multimedia tables into one list of
// conversations, one per thread.
package merge

import (
	"cmp"
	"slices"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/block"
	"github.com/matheus3301/smsync/internal/contacts"
	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/store"
)

// Candidate is a row that may represent its thread, with its preview text
// and resolved identity.
type Candidate struct {
	Row       provider.Row
	Snippet   string
	Recipient contacts.Recipient
}

// Input is everything one merge reads. Text and Multimedia are newest first.
type Input struct {
	Text       []Candidate
	Multimedia []Candidate
	Pinned     map[int64]bool
	Blocked    block.Set
}

// FirstPerThread keeps the first row of each thread. With newest-first
// input that is the most recent one.
func FirstPerThread(rows []provider.Row) []provider.Row {
	seen := make(map[int64]bool, len(rows))
	out := make([]provider.Row, 0, len(rows))
	for _, r := range rows {
		if seen[r.ThreadID] {
			continue
		}
		seen[r.ThreadID] = true
		out = append(out, r)
	}
	return out
}

func firstCandidates(cs []Candidate) []Candidate {
	seen := make(map[int64]bool, len(cs))
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if seen[c.Row.ThreadID] {
			continue
		}
		seen[c.Row.ThreadID] = true
		out = append(out, c)
	}
	return out
}

// Merge builds the conversation list: one entry per thread, preview and
// time from the newest row of either table, identity from the first row
// with a usable address, blocked threads dropped, pinned threads first and
// then most recent first.
func Merge(in Input) []store.Conversation {
	all := append(firstCandidates(in.Text), firstCandidates(in.Multimedia)...)

	groups := make(map[int64][]Candidate)
	var order []int64
	for _, c := range all {
		id := c.Row.ThreadID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], c)
	}

	convs := make([]store.Conversation, 0, len(order))
	for _, id := range order {
		group := groups[id]

		latest := group[0]
		for _, c := range group[1:] {
			if c.Row.TimestampMs() > latest.Row.TimestampMs() {
				latest = c
			}
		}

		ident := latest.Recipient
		for _, c := range group {
			if !address.IsPlaceholder(c.Recipient.RawAddress) {
				ident = c.Recipient
				break
			}
		}

		if in.Blocked.AnyBlocked(ident.RawAddress) {
			continue
		}

		convs = append(convs, store.Conversation{
			ThreadID:       id,
			RawAddress:     ident.RawAddress,
			DisplayName:    ident.DisplayName,
			PhotoRef:       ident.PhotoRef,
			Snippet:        latest.Snippet,
			LastActivityAt: latest.Row.TimestampMs(),
			IsRead:         latest.Row.Read,
			IsPinned:       in.Pinned[id],
		})
	}

	slices.SortStableFunc(convs, func(a, b store.Conversation) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.LastActivityAt, a.LastActivityAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ThreadID, a.ThreadID)
	})
	return convs
}
