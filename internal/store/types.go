package store

// Conversation is one thread of the merged conversation list.
type Conversation struct {
	ThreadID       int64  `json:"thread_id"`
	RawAddress     string `json:"raw_address"`
	DisplayName    string `json:"display_name"`
	PhotoRef       string `json:"photo_ref,omitempty"`
	Snippet        string `json:"snippet"`
	LastActivityAt int64  `json:"last_activity_at"`
	IsRead         bool   `json:"is_read"`
	IsPinned       bool   `json:"is_pinned"`
}

// Contact maps a normalized address to a display identity.
type Contact struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// BlockEntry is one blocked number in normalized form.
type BlockEntry struct {
	Number    string `json:"number"`
	CreatedAt int64  `json:"created_at"`
}

// Metadata is the per-thread overlay kept outside the message store.
type Metadata struct {
	ThreadID    int64  `json:"thread_id"`
	IsPinned    bool   `json:"is_pinned"`
	CustomSound string `json:"custom_sound,omitempty"`
}

// ScheduledStatus is the lifecycle of a scheduled message.
type ScheduledStatus string

const (
	ScheduledPending   ScheduledStatus = "pending"
	ScheduledSent      ScheduledStatus = "sent"
	ScheduledFailed    ScheduledStatus = "failed"
	ScheduledCancelled ScheduledStatus = "cancelled"
)

// ScheduledMessage is a text to be sent at ScheduledAt (ms).
type ScheduledMessage struct {
	ID           int64           `json:"id"`
	ThreadID     int64           `json:"thread_id"`
	Address      string          `json:"address"`
	Body         string          `json:"body"`
	ScheduledAt  int64           `json:"scheduled_at"`
	Status       ScheduledStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// OutboxEntry journals a send awaiting its delivery confirmation.
type OutboxEntry struct {
	ID           int64
	Token        string
	ThreadID     int64
	Address      string
	Segments     int
	Status       string // queued, sent, failed
	ErrorMessage string
	CreatedAt    int64
}
