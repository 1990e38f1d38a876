package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a Config current against its backing file. Edits to the file
// are debounced, re-loaded through the same defaults/env/validation pipeline
// as Load, and fanned out to subscribers. A reload that fails validation is
// logged and the previous config stays in effect.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu          sync.RWMutex
	current     *Config
	subscribers []chan Config
}

// NewWatcher loads the file once and starts watching it for changes.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	cfg, err := Load(absPath)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save and
	// the original inode stops emitting events.
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    absPath,
		logger:  logger,
		watcher: fsw,
		cancel:  cancel,
		current: cfg,
	}

	go w.watchLoop(ctx)

	return w, nil
}

// Current returns the most recently loaded valid configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return *w.current
}

// Subscribe returns a channel that receives configuration updates. The
// current state is delivered immediately; slow consumers miss intermediate
// updates rather than blocking the watcher.
func (w *Watcher) Subscribe() <-chan Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Config, 1)
	w.subscribers = append(w.subscribers, ch)
	ch <- *w.current
	return ch
}

// Close stops the watcher and cleans up resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	subscribers := make([]chan Config, len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", "path", w.path)

	for _, ch := range subscribers {
		select {
		case ch <- *cfg:
		default:
		}
	}
}
