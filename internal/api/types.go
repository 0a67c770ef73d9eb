package api

import (
	"github.com/matheus3301/smsync/internal/paging"
	"github.com/matheus3301/smsync/internal/store"
)

// Empty is the request or response of calls without fields.
type Empty struct{}

type ListConversationsRequest struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

type ListConversationsResponse struct {
	Generation    int64                `json:"generation"`
	Total         int                  `json:"total"`
	Conversations []store.Conversation `json:"conversations"`
}

// ConversationsEvent carries one cache generation.
type ConversationsEvent struct {
	EventID          string               `json:"event_id"`
	Profile          string               `json:"profile"`
	OccurredAtUnixMs int64                `json:"occurred_at_unix_ms"`
	Generation       int64                `json:"generation"`
	Conversations    []store.Conversation `json:"conversations"`
}

type ThreadRequest struct {
	ThreadID int64 `json:"thread_id"`
}

type SetPinnedRequest struct {
	ThreadID int64 `json:"thread_id"`
	Pinned   bool  `json:"pinned"`
}

type SetSoundRequest struct {
	ThreadID int64  `json:"thread_id"`
	Sound    string `json:"sound"`
}

// MarkReadRequest marks a thread read unless Read is false.
type MarkReadRequest struct {
	ThreadID int64 `json:"thread_id"`
	Read     *bool `json:"read,omitempty"`
}

type RowsResponse struct {
	Rows int64 `json:"rows"`
}

type ListMessagesRequest struct {
	ThreadID int64 `json:"thread_id"`
	Offset   int   `json:"offset,omitempty"`
	Limit    int   `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []paging.Message `json:"messages"`
	PrevKey  *int             `json:"prev_key,omitempty"`
	NextKey  *int             `json:"next_key,omitempty"`
}

// ThreadEvent tells a watcher its thread changed and should be reloaded.
type ThreadEvent struct {
	EventID          string `json:"event_id"`
	OccurredAtUnixMs int64  `json:"occurred_at_unix_ms"`
	ThreadID         int64  `json:"thread_id"`
	Kind             string `json:"kind"`
}

type SendTextRequest struct {
	Address string `json:"address"`
	Body    string `json:"body"`
}

type SendAttachmentRequest struct {
	Address     string `json:"address"`
	Body        string `json:"body,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

type ResendRequest struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	Body    string `json:"body"`
}

type SendResponse struct {
	Token    string `json:"token"`
	ID       int64  `json:"id"`
	ThreadID int64  `json:"thread_id"`
	Segments int    `json:"segments"`
}

type ScheduleMessageRequest struct {
	ThreadID int64  `json:"thread_id,omitempty"`
	Address  string `json:"address"`
	Body     string `json:"body"`
	AtUnixMs int64  `json:"at_unix_ms"`
}

type IDRequest struct {
	ID int64 `json:"id"`
}

type ScheduledResponse struct {
	Message store.ScheduledMessage `json:"message"`
}

type ListScheduledRequest struct {
	ThreadID int64 `json:"thread_id,omitempty"`
}

type ListScheduledResponse struct {
	Messages []store.ScheduledMessage `json:"messages"`
}

type NumberRequest struct {
	Number string `json:"number"`
}

type ListBlockedResponse struct {
	Numbers []store.BlockEntry `json:"numbers"`
}

type ImportBlockedResponse struct {
	Added int `json:"added"`
}

type SetContactRequest struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

type ListContactsResponse struct {
	Contacts []store.Contact `json:"contacts"`
}

type TriggerSyncResponse struct {
	Accepted bool  `json:"accepted"`
	Cycles   int64 `json:"cycles"`
}

type SyncStatusResponse struct {
	Profile           string   `json:"profile"`
	Status            string   `json:"status"`
	StatusSinceUnixMs int64    `json:"status_since_unix_ms"`
	UptimeMs          int64    `json:"uptime_ms"`
	Cycles            int64    `json:"cycles"`
	LastCycleAtUnixMs int64    `json:"last_cycle_at_unix_ms,omitempty"`
	Generation        int64    `json:"generation"`
	Conversations     int      `json:"conversations"`
	FailedTables      []string `json:"failed_tables,omitempty"`
	Kept              bool     `json:"kept,omitempty"`
	LastError         string   `json:"last_error,omitempty"`
	InFlightSends     int      `json:"in_flight_sends"`
	OpenThreads       int      `json:"open_threads"`
}
