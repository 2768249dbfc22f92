package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is invoked when the env files for the watched mode change.
// cfg is the newly resolved config (nil when loading failed).
type ReloadCallback func(cfg *ResolvedConfig, err error)

// Watcher monitors the env files of one mode and re-resolves the
// configuration when they change.
type Watcher struct {
	dir          string
	mode         string
	environ      []string
	callback     ReloadCallback
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration. Default is 1 second.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithPolling makes the watcher stat the env files every interval instead
// of subscribing to filesystem notifications.
func WithPolling(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = interval
	}
}

// NewWatcher creates a watcher for the env files of mode in dir. environ is
// layered over the files on every reload, as in LoadEnv.
func NewWatcher(dir, mode string, environ []string, callback ReloadCallback, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &Watcher{
		dir:      dir,
		mode:     mode,
		environ:  environ,
		callback: callback,
		logger:   logger,
		debounce: time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled, then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	if w.pollInterval > 0 {
		return w.poll(ctx)
	}
	return w.notify(ctx)
}

func (w *Watcher) reload() {
	vars, err := LoadEnv(w.dir, w.mode, w.environ)
	if err != nil {
		w.callback(nil, err)
		return
	}
	cfg := Resolve(w.mode, vars)
	w.callback(&cfg, nil)
}

// notify watches the directory rather than the files so that files created
// later and editors that save by rename are both seen.
func (w *Watcher) notify(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	targets := make(map[string]struct{})
	for _, p := range EnvFiles(w.dir, w.mode) {
		targets[filepath.Base(p)] = struct{}{}
	}

	reloadCh := make(chan struct{}, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if _, watched := targets[filepath.Base(event.Name)]; !watched {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (w *Watcher) snapshot() map[string]fileStamp {
	stamps := make(map[string]fileStamp)
	for _, p := range EnvFiles(w.dir, w.mode) {
		info, err := os.Stat(p)
		if err != nil {
			stamps[p] = fileStamp{}
			continue
		}
		stamps[p] = fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
	}
	return stamps
}

func (w *Watcher) poll(ctx context.Context) error {
	last := w.snapshot()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := w.snapshot()
			changed := false
			for p, stamp := range current {
				if last[p] != stamp {
					changed = true
					break
				}
			}
			last = current
			if changed {
				w.reload()
			}
		}
	}
}
