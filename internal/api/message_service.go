package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/smsync/internal/conversation"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/paging"
	"github.com/matheus3301/smsync/internal/schedule"
)

// loadAttempts bounds how often ListMessages reopens a thread that keeps
// changing under it.
const loadAttempts = 3

// MessageService pages threads straight from the message store and drives
// outbound sends.
type MessageService struct {
	pages     *paging.Registry
	sender    *outbox.Sender
	scheduler *schedule.Scheduler
	pageSize  int
}

// NewMessageService creates a message service. pageSize applies when a
// request names no limit.
func NewMessageService(pages *paging.Registry, sender *outbox.Sender, scheduler *schedule.Scheduler, pageSize int) *MessageService {
	if pageSize <= 0 {
		pageSize = paging.DefaultPageSize
	}
	return &MessageService{pages: pages, sender: sender, scheduler: scheduler, pageSize: pageSize}
}

func (s *MessageService) Desc() Desc {
	return Desc{
		Name: "MessageService",
		Unary: map[string]UnaryFunc{
			"ListMessages":    unary(s.ListMessages),
			"SendText":        unary(s.SendText),
			"SendAttachment":  unary(s.SendAttachment),
			"Resend":          unary(s.Resend),
			"ScheduleMessage": unary(s.ScheduleMessage),
			"CancelScheduled": unary(s.CancelScheduled),
			"ListScheduled":   unary(s.ListScheduled),
		},
		Streams: map[string]StreamFunc{
			"WatchThread": stream(s.WatchThread),
		},
	}
}

func (s *MessageService) ListMessages(ctx context.Context, req ListMessagesRequest) (ListMessagesResponse, error) {
	if req.ThreadID <= 0 {
		return ListMessagesResponse{}, conversation.ErrInvalidThread
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	var err error
	for range loadAttempts {
		var page paging.Page
		page, err = s.load(ctx, req.ThreadID, req.Offset, limit)
		if errors.Is(err, paging.ErrInvalidated) {
			continue
		}
		if err != nil {
			return ListMessagesResponse{}, err
		}
		return ListMessagesResponse{Messages: page.Items, PrevKey: page.PrevKey, NextKey: page.NextKey}, nil
	}
	return ListMessagesResponse{}, err
}

func (s *MessageService) load(ctx context.Context, threadID int64, offset, limit int) (paging.Page, error) {
	src := s.pages.Open(threadID)
	defer src.Close()
	return src.Load(ctx, offset, limit)
}

func (s *MessageService) WatchThread(ctx context.Context, req ThreadRequest, send func(ThreadEvent) error) error {
	if req.ThreadID <= 0 {
		return conversation.ErrInvalidThread
	}
	src := s.pages.Open(req.ThreadID)
	defer func() { src.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-src.Invalidated():
		}
		// The next source is open before the event goes out so changes
		// made while sending are reported too.
		src.Close()
		src = s.pages.Open(req.ThreadID)
		if err := send(ThreadEvent{
			EventID:          uuid.New().String(),
			OccurredAtUnixMs: time.Now().UnixMilli(),
			ThreadID:         req.ThreadID,
			Kind:             "invalidated",
		}); err != nil {
			return err
		}
	}
}

func (s *MessageService) SendText(ctx context.Context, req SendTextRequest) (SendResponse, error) {
	res, err := s.sender.Send(ctx, req.Address, req.Body)
	return sendResponse(res), err
}

func (s *MessageService) SendAttachment(ctx context.Context, req SendAttachmentRequest) (SendResponse, error) {
	res, err := s.sender.SendWithAttachment(ctx, req.Address, req.Body, outbox.Attachment{
		Name:        req.Name,
		ContentType: req.ContentType,
		Data:        req.Data,
	})
	return sendResponse(res), err
}

func (s *MessageService) Resend(ctx context.Context, req ResendRequest) (SendResponse, error) {
	res, err := s.sender.Resend(ctx, req.ID, req.Address, req.Body)
	return sendResponse(res), err
}

func (s *MessageService) ScheduleMessage(ctx context.Context, req ScheduleMessageRequest) (ScheduledResponse, error) {
	m, err := s.scheduler.Schedule(ctx, req.ThreadID, req.Address, req.Body, time.UnixMilli(req.AtUnixMs))
	return ScheduledResponse{Message: m}, err
}

func (s *MessageService) CancelScheduled(ctx context.Context, req IDRequest) (Empty, error) {
	return Empty{}, s.scheduler.Cancel(ctx, req.ID)
}

func (s *MessageService) ListScheduled(ctx context.Context, req ListScheduledRequest) (ListScheduledResponse, error) {
	msgs, err := s.scheduler.List(ctx, req.ThreadID)
	return ListScheduledResponse{Messages: msgs}, err
}

func sendResponse(r outbox.Result) SendResponse {
	return SendResponse{Token: r.Token, ID: r.ID, ThreadID: r.ThreadID, Segments: r.Segments}
}
