package attachment

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MightyPrytanis/roundtable/internal/log"
)

// Watcher monitors an attachment directory and invalidates the cached
// entry for any file that changes. Long-running workflows otherwise risk
// serving stale attachment content for the cache TTL.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cache     *CachedStore
	root      string
	debounce  time.Duration
	done      chan struct{}
}

// WatcherConfig holds watcher configuration options.
type WatcherConfig struct {
	Root        string
	DebounceDur time.Duration
}

// DefaultWatcherConfig returns sensible defaults for the watcher.
func DefaultWatcherConfig(root string) WatcherConfig {
	return WatcherConfig{
		Root:        root,
		DebounceDur: time.Second,
	}
}

// NewWatcher creates a watcher that invalidates cache entries under root.
func NewWatcher(cfg WatcherConfig, cache *CachedStore) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		cache:     cache,
		root:      cfg.Root,
		debounce:  cfg.DebounceDur,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the attachment directory.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.root); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.root, err)
	}
	log.SafeGo("attachment.Watcher", w.loop)
	return nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing. Invalidation is
// per-file so an active workflow only refetches what actually changed.
func (w *Watcher) loop() {
	pending := make(map[string]struct{})
	var timer *time.Timer

	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			pending[filepath.Base(event.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC():
			for id := range pending {
				w.cache.Invalidate(id)
				log.Debug(log.CatCache, "invalidated changed attachment", "id", id)
			}
			pending = make(map[string]struct{})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatAttach, "watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger invalidation.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	return event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) ||
		event.Op.Has(fsnotify.Rename)
}
