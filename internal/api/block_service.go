package api

import (
	"context"

	"github.com/matheus3301/smsync/internal/block"
)

// BlockService manages the block registry.
type BlockService struct {
	registry *block.Registry
}

// NewBlockService creates a block service.
func NewBlockService(r *block.Registry) *BlockService {
	return &BlockService{registry: r}
}

func (s *BlockService) Desc() Desc {
	return Desc{
		Name: "BlockService",
		Unary: map[string]UnaryFunc{
			"Block":         unary(s.Block),
			"Unblock":       unary(s.Unblock),
			"ListBlocked":   unary(s.ListBlocked),
			"ImportBlocked": unary(s.ImportBlocked),
		},
	}
}

func (s *BlockService) Block(ctx context.Context, req NumberRequest) (Empty, error) {
	return Empty{}, s.registry.Block(ctx, req.Number)
}

func (s *BlockService) Unblock(ctx context.Context, req NumberRequest) (Empty, error) {
	return Empty{}, s.registry.Unblock(ctx, req.Number)
}

func (s *BlockService) ListBlocked(ctx context.Context, _ Empty) (ListBlockedResponse, error) {
	entries, err := s.registry.List(ctx)
	return ListBlockedResponse{Numbers: entries}, err
}

func (s *BlockService) ImportBlocked(ctx context.Context, _ Empty) (ImportBlockedResponse, error) {
	n, err := s.registry.ImportExternal(ctx)
	return ImportBlockedResponse{Added: n}, err
}
