package sqlprovider

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/matheus3301/smsync/internal/provider"
	"go.uber.org/zap"
)

// Watcher turns writes made to the store file by other processes into
// change notifications. Bursts are debounced into one notification.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	logger   *zap.Logger

	fsw *fsnotify.Watcher
	wg  sync.WaitGroup

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	watching map[string]bool
}

// NewWatcher creates a watcher for the database file at path.
func NewWatcher(s *Store, path string, debounce time.Duration, logger *zap.Logger) *Watcher {
	base := filepath.Base(path)
	return &Watcher{
		store:    s,
		path:     path,
		debounce: debounce,
		logger:   logger,
		watching: map[string]bool{
			base:          true,
			base + "-wal": true,
			base + "-shm": false,
		},
	}
}

// Start begins watching the directory holding the database.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching message store", zap.String("path", w.path))
	return nil
}

// Stop closes the watcher and drops any pending notification.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.watching[filepath.Base(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("message store watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		w.store.Notify(provider.Change{External: true})
	})
}
