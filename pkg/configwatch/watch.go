// Package configwatch reloads a configuration file whenever it changes on disk.
package configwatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// reloader holds the state of one watched file between events.
type reloader[T any] struct {
	path     string
	load     func(string) (T, error)
	onChange func(T)
	last     []byte // contents that produced the active config
}

// Watch calls load whenever the file at path changes and passes a successful
// result to onChange. A failed load leaves the active config in place. It
// blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so editors that save
// by writing a temp file and renaming it over path are picked up too.
func Watch[T any](ctx context.Context, path string, load func(string) (T, error), onChange func(T)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("configwatch: %w", err)
	}
	initial, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("configwatch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("configwatch: watch %s: %w", filepath.Dir(abs), err)
	}

	r := &reloader[T]{path: abs, load: load, onChange: onChange, last: initial}
	slog.Info("configwatch: watching", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == abs && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				r.reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("configwatch: watcher error", "err", err)
		}
	}
}

// reload re-reads the file and applies it if the bytes differ from the last
// applied version. Editors often emit several events per save.
func (r *reloader[T]) reload() {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		// Mid-rename; the Create that follows retries.
		slog.Debug("configwatch: file not readable yet", "path", r.path, "err", err)
		return
	}
	if bytes.Equal(raw, r.last) {
		return
	}
	cfg, err := r.load(r.path)
	if err != nil {
		slog.Error("configwatch: reload rejected, previous config still active", "path", r.path, "err", err)
		return
	}
	r.last = raw
	slog.Info("configwatch: reloaded", "path", r.path)
	r.onChange(cfg)
}
