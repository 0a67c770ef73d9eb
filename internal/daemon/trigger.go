package daemon

import (
	"sync/atomic"

	intsync "github.com/matheus3301/smsync/internal/sync"
)

// rebuildTrigger forwards rebuild requests to the sync engine once it
// exists. Components built before the engine hold this instead of it.
type rebuildTrigger struct {
	engine atomic.Pointer[intsync.Engine]
}

func (t *rebuildTrigger) bind(e *intsync.Engine) {
	t.engine.Store(e)
}

// Trigger requests a rebuild. It is a no-op until an engine is bound.
func (t *rebuildTrigger) Trigger() {
	if e := t.engine.Load(); e != nil {
		e.Trigger()
	}
}
