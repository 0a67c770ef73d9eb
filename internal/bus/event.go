package bus

import "time"

// Event kinds published inside the daemon.
const (
	KindProviderChanged   = "provider.changed"
	KindCacheReplaced     = "cache.replaced"
	KindSyncCycleDone     = "sync.cycle_completed"
	KindStatusChanged     = "daemon.status_changed"
	KindOutboxQueued      = "outbox.queued"
	KindOutboxDelivered   = "outbox.delivered"
	KindOutboxFailed      = "outbox.failed"
	KindScheduledFinished = "schedule.finished"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
