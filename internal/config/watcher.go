package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/geox/judge/internal/logging"
)

// ChangeCallback receives the watched path after a debounced change. Errors
// are logged and the watcher keeps running.
type ChangeCallback func(path string) error

// FileWatcherConfig holds configuration for a FileWatcher.
type FileWatcherConfig struct {
	FilePath string

	// DebounceMillis coalesces bursts of events (editor saves, atomic
	// renames). Default: 500ms
	DebounceMillis int
}

// FileWatcher notifies a callback when one file changes. It does not read
// or cache the file; callers decide what a change means.
type FileWatcher struct {
	config   FileWatcherConfig
	callback ChangeCallback
	logger   *logging.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}
	mu      sync.Mutex

	debounceTimer *time.Timer
}

// NewFileWatcher creates a watcher for config.FilePath.
func NewFileWatcher(config FileWatcherConfig, callback ChangeCallback) (*FileWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}
	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}
	return &FileWatcher{
		config:   config,
		callback: callback,
		logger:   logging.GetLogger("config.watcher").WithField("file", config.FilePath),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Name implements lifecycle.Component.
func (w *FileWatcher) Name() string {
	return "file-watcher"
}

// Start begins watching and returns once the fsnotify watch is in place.
func (w *FileWatcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-time.After(5 * time.Second):
		cancel()
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}
}

func (w *FileWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *FileWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.ErrorWithErr("failed to create file watcher", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.ErrorWithErr("failed to watch file", err)
		return
	}
	w.logger.Info("watching for changes (debounce: %dms)", w.config.DebounceMillis)
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			w.stopDebounce()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Atomic replaces unlink the watched inode; watch the new one.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(w.config.FilePath); err != nil {
					w.logger.Warn("failed to re-add watch after %s: %v", event.Op, err)
				}
			}
			w.scheduleCallback()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

func (w *FileWatcher) scheduleCallback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(time.Duration(w.config.DebounceMillis)*time.Millisecond, func() {
		if err := w.callback(w.config.FilePath); err != nil {
			w.logger.Warn("change callback failed (continuing to watch): %v", err)
		}
	})
}

func (w *FileWatcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}

// Stop ends the watch loop, waiting up to ctx's deadline or 5 seconds.
func (w *FileWatcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	} else {
		return nil
	}
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
}
