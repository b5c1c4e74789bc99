// Package watch reports changes to a single file on disk.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Event is a change to the watched file.
type Event struct {
	Path    string
	Op      fsnotify.Op
	Time    time.Time
	Removed bool
}

// Watch calls fn for every write, create, rename or remove of path until
// ctx is cancelled. The parent directory is watched, so editors that save
// through a temp file and rename are still seen. Events arriving within
// debounce of each other are coalesced into the last one.
func Watch(ctx context.Context, path string, debounce time.Duration, log zerolog.Logger, fn func(Event)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		pending *Event
		timer   = time.NewTimer(time.Hour)
	)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			ev := Event{
				Path:    abs,
				Op:      event.Op,
				Time:    time.Now(),
				Removed: event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename),
			}
			if debounce <= 0 {
				fn(ev)
				continue
			}
			pending = &ev
			timer.Reset(debounce)

		case <-timer.C:
			if pending != nil {
				fn(*pending)
				pending = nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
			log.Warn().Err(err).Str("file", abs).Msg("watch error")
		}
	}
}
