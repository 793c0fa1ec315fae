package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/logger"
)

// Snapshot is an atomically-swappable, read-only view of the current
// routes, handed out to every accept loop.
type Snapshot struct {
	Routes []domain.Route
}

// Watcher polls path's mtime every DefaultPollInterval and reloads on
// change; fsnotify, when available, only shortens the wait for the
// next poll tick rather than replacing the stat-based check, so a
// filesystem that can't deliver events (network mounts, some
// containers) still reloads correctly.
type Watcher struct {
	path     string
	current  atomic.Pointer[Snapshot]
	lastMod  time.Time
	logger   *logger.StyledLogger
	onChange func(*Snapshot)
}

// New loads path once and returns a Watcher primed with the initial
// snapshot.
func New(path string, onChange func(*Snapshot), log *logger.StyledLogger) (*Watcher, error) {
	w := &Watcher{path: path, logger: log, onChange: onChange}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Current returns the latest loaded snapshot.
func (w *Watcher) Current() *Snapshot {
	return w.current.Load()
}

func (w *Watcher) reload() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}

	_, routes, err := Load(w.path)
	if err != nil {
		return err
	}

	snap := &Snapshot{Routes: routes}
	w.current.Store(snap)
	w.lastMod = info.ModTime()
	if w.onChange != nil {
		w.onChange(snap)
	}
	return nil
}

// checkAndReload reloads only if the file's mtime advanced since the
// last successful load; a failed reload logs and keeps serving the
// previous snapshot rather than tearing down the process.
func (w *Watcher) checkAndReload() {
	info, err := os.Stat(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config: stat failed during poll", "path", w.path, "error", err)
		}
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	if err := w.reload(); err != nil {
		if w.logger != nil {
			w.logger.Warn("config: reload failed, keeping previous snapshot", "path", w.path, "error", err)
		}
	}
}

// Run blocks, polling every DefaultPollInterval until ctx is
// cancelled. If an fsnotify watch on path can be established, a file
// event wakes the next check early instead of waiting out the tick.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	if fw, err := fsnotify.NewWatcher(); err == nil {
		defer fw.Close()
		if err := fw.Add(w.path); err == nil {
			events = fw.Events
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkAndReload()
		case <-events:
			w.checkAndReload()
		}
	}
}
