package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/smsync/internal/cache"
	"github.com/matheus3301/smsync/internal/conversation"
	"github.com/matheus3301/smsync/internal/metadata"
)

// ConversationService serves the conversation list from the cache and
// applies thread-level actions.
type ConversationService struct {
	cache       *cache.Cache
	meta        *metadata.Store
	actions     *conversation.Actions
	profileName string
}

// NewConversationService creates a conversation service.
func NewConversationService(c *cache.Cache, meta *metadata.Store, actions *conversation.Actions, profileName string) *ConversationService {
	return &ConversationService{cache: c, meta: meta, actions: actions, profileName: profileName}
}

func (s *ConversationService) Desc() Desc {
	return Desc{
		Name: "ConversationService",
		Unary: map[string]UnaryFunc{
			"ListConversations":  unary(s.ListConversations),
			"SetPinned":          unary(s.SetPinned),
			"SetSound":           unary(s.SetSound),
			"MarkRead":           unary(s.MarkRead),
			"DeleteConversation": unary(s.DeleteConversation),
		},
		Streams: map[string]StreamFunc{
			"WatchConversations": stream(s.WatchConversations),
		},
	}
}

func (s *ConversationService) ListConversations(ctx context.Context, req ListConversationsRequest) (ListConversationsResponse, error) {
	gen, err := s.cache.ReadAll(ctx)
	if err != nil {
		return ListConversationsResponse{}, err
	}
	convs := gen.Conversations
	start := min(max(req.Offset, 0), len(convs))
	end := len(convs)
	if req.Limit > 0 {
		end = min(start+req.Limit, end)
	}
	return ListConversationsResponse{
		Generation:    gen.Number,
		Total:         len(convs),
		Conversations: convs[start:end],
	}, nil
}

func (s *ConversationService) WatchConversations(ctx context.Context, _ Empty, send func(ConversationsEvent) error) error {
	gens, err := s.cache.Stream(ctx)
	if err != nil {
		return err
	}
	for gen := range gens {
		if err := send(ConversationsEvent{
			EventID:          uuid.New().String(),
			Profile:          s.profileName,
			OccurredAtUnixMs: time.Now().UnixMilli(),
			Generation:       gen.Number,
			Conversations:    gen.Conversations,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConversationService) SetPinned(ctx context.Context, req SetPinnedRequest) (Empty, error) {
	if req.ThreadID <= 0 {
		return Empty{}, conversation.ErrInvalidThread
	}
	return Empty{}, s.meta.SetPinned(ctx, req.ThreadID, req.Pinned)
}

func (s *ConversationService) SetSound(ctx context.Context, req SetSoundRequest) (Empty, error) {
	if req.ThreadID <= 0 {
		return Empty{}, conversation.ErrInvalidThread
	}
	return Empty{}, s.meta.SetCustomSound(ctx, req.ThreadID, req.Sound)
}

func (s *ConversationService) MarkRead(ctx context.Context, req MarkReadRequest) (RowsResponse, error) {
	read := req.Read == nil || *req.Read
	n, err := s.actions.MarkRead(ctx, req.ThreadID, read)
	return RowsResponse{Rows: n}, err
}

func (s *ConversationService) DeleteConversation(ctx context.Context, req ThreadRequest) (RowsResponse, error) {
	n, err := s.actions.Delete(ctx, req.ThreadID)
	return RowsResponse{Rows: n}, err
}
