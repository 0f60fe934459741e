// Package watch reloads filter lists when the user's filter directory changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
)

// DefaultDebounce collapses bursts of writes (editors saving via temp files)
// into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Dir      string
	Debounce time.Duration
	Logger   logpkg.Logger
	// Reload is called once per settled burst of changes.
	Reload func() error
}

// Watcher observes a directory and triggers Reload on change.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher
}

// New creates the directory if needed and starts watching it.
func New(opts Options) (*Watcher, error) {
	if opts.Reload == nil {
		return nil, fmt.Errorf("watch: reload func is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: create %s: %w", opts.Dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fsw.Add(opts.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", opts.Dir, err)
	}
	return &Watcher{opts: opts, fsw: fsw}, nil
}

// Run delivers reloads until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			w.opts.Logger.Debug(map[string]any{"path": ev.Name, "op": ev.Op.String()}, "filter_dir_changed")
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.opts.Debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn(map[string]any{"dir": w.opts.Dir, "error": err}, "filter_watch_error")
		case <-timer.C:
			pending = false
			if err := w.opts.Reload(); err != nil {
				w.opts.Logger.Warn(map[string]any{"dir": w.opts.Dir, "error": err}, "filter_reload_partial")
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
