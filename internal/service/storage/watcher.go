package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Phill981/PrevexRaspiBackend/internal/logger"
)

// goneQueueSize bounds the keys waiting for the onGone callback. Keys arriving
// while the queue is full are dropped and logged; a later cleanup reconciles them.
const goneQueueSize = 256

// Watcher reports blobs that disappear from the store directory, whether
// deleted by the store itself or removed out-of-band.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	logger  *logger.Logger
	gone    chan string

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the store's directory.
func NewWatcher(store *BlobStore, log *logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(store.Dir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", store.Dir(), err)
	}

	return &Watcher{
		watcher: w,
		dir:     store.Dir(),
		logger:  log.WithComponent("blob-watcher"),
		gone:    make(chan string, goneQueueSize),
	}, nil
}

// Watch blocks until ctx is cancelled, calling onGone with the key of every
// blob removed from or renamed out of the directory. onGone runs on a separate
// goroutine so a slow callback does not stall reading fsnotify events; keys
// already queued are delivered before Watch returns.
func (w *Watcher) Watch(ctx context.Context, onGone func(key string)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer w.watcher.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for key := range w.gone {
			onGone(key)
		}
	}()
	defer func() {
		close(w.gone)
		wg.Wait()
	}()

	w.logger.Info("Watching blob directory %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Blob watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key := filepath.Base(event.Name)
			if ValidateKey(key) != nil {
				continue
			}
			w.logger.Debug("Blob gone: %s (%s)", key, event.Op)
			select {
			case w.gone <- key:
			default:
				w.logger.Warning("Blob gone queue full, dropping %s", key)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warning("Blob watcher error: %v", err)
		}
	}
}
