// Package watcher reports debounced changes to circuit files.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/pubsub"
)

// Watcher watches a fixed set of files and publishes one event per file per quiet
// period: UpdatedEvent when the file exists after the burst, DeletedEvent when it
// does not. Payloads are the paths as given to New.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]string // cleaned absolute path -> caller's path
	debounce  time.Duration
	broker    *pubsub.Broker[string]
}

// Config holds watcher options.
type Config struct {
	Paths    []string
	Debounce time.Duration
}

// DefaultConfig watches paths with a 200ms debounce.
func DefaultConfig(paths ...string) Config {
	return Config{Paths: paths, Debounce: 200 * time.Millisecond}
}

// New creates a watcher. The parent directory of every path is watched so that
// editors which replace files by rename are seen.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("watcher: no paths")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		files:     make(map[string]string, len(cfg.Paths)),
		debounce:  cfg.Debounce,
		broker:    pubsub.NewBroker[string](),
	}
	dirs := make(map[string]bool)
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.files[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	return w, nil
}

// Subscribe returns a channel of change events that closes with ctx or when Run
// returns.
func (w *Watcher) Subscribe(ctx context.Context) <-chan pubsub.Event[string] {
	return w.broker.Subscribe(ctx)
}

// Run processes file system events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.broker.Close()
	defer func() { _ = w.fsWatcher.Close() }()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			path, relevant := w.relevant(event)
			if !relevant {
				continue
			}
			pending[path] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.flush(pending)
			clear(pending)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.ErrorErr(log.CatWatcher, "Watch error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return "", false
	}
	_, ok := w.files[abs]
	return abs, ok
}

func (w *Watcher) flush(pending map[string]bool) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, abs := range paths {
		eventType := pubsub.UpdatedEvent
		if _, err := os.Stat(abs); err != nil {
			eventType = pubsub.DeletedEvent
		}
		n := w.broker.Publish(eventType, w.files[abs])
		log.Debug(log.CatWatcher, "File changed", "path", w.files[abs], "event", eventType, "subscribers", n)
	}
}
