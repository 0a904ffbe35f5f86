// Package watcher re-runs a callback every time a file is written.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher tracks a single file. The parent directory is watched so that
// the file can be replaced or created after the watch started.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(path string)
	logger   *log.Entry
}

func New(path string, onChange func(path string)) *Watcher {
	return &Watcher{
		Path:     filepath.Clean(path),
		Debounce: DefaultDebounce,
		OnChange: onChange,
		logger:   log.WithField("file", path),
	}
}

// Run calls OnChange once, then again after every burst of writes to the
// file, until ctx is done. Calls are never concurrent.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.Path)

	if err = fsw.Add(dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", dir, err)
	}

	w.logger.Infof("watching %s", w.Path)

	w.OnChange(w.Path)

	// stopped until the first relevant event
	debounce := time.NewTimer(w.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.Path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Tracef("event %s", event.Op)
			debounce.Reset(w.Debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Errorf("watcher error: %s", err)
		case <-debounce.C:
			w.OnChange(w.Path)
		}
	}
}

// Watch is a shortcut for New(path, onChange).Run(ctx).
func Watch(ctx context.Context, path string, onChange func(path string)) error {
	return New(path, onChange).Run(ctx)
}
