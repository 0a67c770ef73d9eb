package client

import (
	"context"

	"github.com/matheus3301/smsync/internal/api"
)

func (c *Client) ListConversations(ctx context.Context, offset, limit int) (api.ListConversationsResponse, error) {
	var resp api.ListConversationsResponse
	err := c.Call(ctx, "ConversationService", "ListConversations", api.ListConversationsRequest{Offset: offset, Limit: limit}, &resp)
	return resp, err
}

func (c *Client) WatchConversations(ctx context.Context, fn func(api.ConversationsEvent) error) error {
	return Watch(ctx, c, "ConversationService", "WatchConversations", api.Empty{}, fn)
}

func (c *Client) SetPinned(ctx context.Context, threadID int64, pinned bool) error {
	return c.Call(ctx, "ConversationService", "SetPinned", api.SetPinnedRequest{ThreadID: threadID, Pinned: pinned}, nil)
}

func (c *Client) SetSound(ctx context.Context, threadID int64, sound string) error {
	return c.Call(ctx, "ConversationService", "SetSound", api.SetSoundRequest{ThreadID: threadID, Sound: sound}, nil)
}

func (c *Client) MarkRead(ctx context.Context, threadID int64, read bool) (int64, error) {
	var resp api.RowsResponse
	err := c.Call(ctx, "ConversationService", "MarkRead", api.MarkReadRequest{ThreadID: threadID, Read: &read}, &resp)
	return resp.Rows, err
}

func (c *Client) DeleteConversation(ctx context.Context, threadID int64) (int64, error) {
	var resp api.RowsResponse
	err := c.Call(ctx, "ConversationService", "DeleteConversation", api.ThreadRequest{ThreadID: threadID}, &resp)
	return resp.Rows, err
}

func (c *Client) ListMessages(ctx context.Context, threadID int64, offset, limit int) (api.ListMessagesResponse, error) {
	var resp api.ListMessagesResponse
	err := c.Call(ctx, "MessageService", "ListMessages", api.ListMessagesRequest{ThreadID: threadID, Offset: offset, Limit: limit}, &resp)
	return resp, err
}

func (c *Client) WatchThread(ctx context.Context, threadID int64, fn func(api.ThreadEvent) error) error {
	return Watch(ctx, c, "MessageService", "WatchThread", api.ThreadRequest{ThreadID: threadID}, fn)
}

func (c *Client) SendText(ctx context.Context, addr, body string) (api.SendResponse, error) {
	var resp api.SendResponse
	err := c.Call(ctx, "MessageService", "SendText", api.SendTextRequest{Address: addr, Body: body}, &resp)
	return resp, err
}

func (c *Client) SendAttachment(ctx context.Context, req api.SendAttachmentRequest) (api.SendResponse, error) {
	var resp api.SendResponse
	err := c.Call(ctx, "MessageService", "SendAttachment", req, &resp)
	return resp, err
}

func (c *Client) Resend(ctx context.Context, id int64, addr, body string) (api.SendResponse, error) {
	var resp api.SendResponse
	err := c.Call(ctx, "MessageService", "Resend", api.ResendRequest{ID: id, Address: addr, Body: body}, &resp)
	return resp, err
}

func (c *Client) ScheduleMessage(ctx context.Context, req api.ScheduleMessageRequest) (api.ScheduledResponse, error) {
	var resp api.ScheduledResponse
	err := c.Call(ctx, "MessageService", "ScheduleMessage", req, &resp)
	return resp, err
}

func (c *Client) CancelScheduled(ctx context.Context, id int64) error {
	return c.Call(ctx, "MessageService", "CancelScheduled", api.IDRequest{ID: id}, nil)
}

func (c *Client) ListScheduled(ctx context.Context, threadID int64) (api.ListScheduledResponse, error) {
	var resp api.ListScheduledResponse
	err := c.Call(ctx, "MessageService", "ListScheduled", api.ListScheduledRequest{ThreadID: threadID}, &resp)
	return resp, err
}

func (c *Client) Block(ctx context.Context, number string) error {
	return c.Call(ctx, "BlockService", "Block", api.NumberRequest{Number: number}, nil)
}

func (c *Client) Unblock(ctx context.Context, number string) error {
	return c.Call(ctx, "BlockService", "Unblock", api.NumberRequest{Number: number}, nil)
}

func (c *Client) ListBlocked(ctx context.Context) (api.ListBlockedResponse, error) {
	var resp api.ListBlockedResponse
	err := c.Call(ctx, "BlockService", "ListBlocked", api.Empty{}, &resp)
	return resp, err
}

func (c *Client) ImportBlocked(ctx context.Context) (int, error) {
	var resp api.ImportBlockedResponse
	err := c.Call(ctx, "BlockService", "ImportBlocked", api.Empty{}, &resp)
	return resp.Added, err
}

func (c *Client) SetContact(ctx context.Context, addr, name, photoRef string) error {
	return c.Call(ctx, "ContactService", "SetContact", api.SetContactRequest{Address: addr, Name: name, PhotoRef: photoRef}, nil)
}

func (c *Client) ListContacts(ctx context.Context) (api.ListContactsResponse, error) {
	var resp api.ListContactsResponse
	err := c.Call(ctx, "ContactService", "ListContacts", api.Empty{}, &resp)
	return resp, err
}

func (c *Client) TriggerSync(ctx context.Context) (api.TriggerSyncResponse, error) {
	var resp api.TriggerSyncResponse
	err := c.Call(ctx, "SyncService", "TriggerSync", api.Empty{}, &resp)
	return resp, err
}

func (c *Client) GetSyncStatus(ctx context.Context) (api.SyncStatusResponse, error) {
	var resp api.SyncStatusResponse
	err := c.Call(ctx, "SyncService", "GetSyncStatus", api.Empty{}, &resp)
	return resp, err
}
