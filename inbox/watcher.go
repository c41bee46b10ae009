package inbox

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reports raster files created in a directory. Paths seen within
// the debounce window are handed to the callback as one batch.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	onBatch  func(paths []string)
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	log      *zap.Logger
}

func NewWatcher(dir string, debounce time.Duration, onBatch func(paths []string), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		debounce: debounce,
		onBatch:  onBatch,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      logger.Named("inbox.watcher"),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.running = true
	go w.run(ctx)
	w.log.Info("watching inbox", zap.String("dir", w.dir))
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Error("failed to close watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !media.IsRasterImage(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush hands paths that have been quiet for the debounce window to the callback.
func (w *Watcher) flush() {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	sort.Strings(ready)
	w.log.Debug("new photos in inbox", zap.Int("count", len(ready)))
	w.onBatch(ready)
}
