package qwenoauth

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the on-disk credential file whenever it changes,
// keeping a Refresher's in-memory view in sync with refreshes performed
// by another process (or another instance sharing the same file).
type Watcher struct {
	path      string
	refresher *Refresher
	watcher   *fsnotify.Watcher
	closed    atomic.Bool
	done      chan struct{}
}

// NewWatcher starts watching path's parent directory (fsnotify watches
// directories, not files, so atomic renames into place are observed) and
// feeds successful reloads into refresher.
func NewWatcher(path string, refresher *Refresher) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:      path,
		refresher: refresher,
		watcher:   fw,
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !matchesPath(event.Name, w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(100 * time.Millisecond)
			}

		case <-debounce.C:
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("qwenoauth: credential watcher error")
		}
	}
}

func (w *Watcher) reload() {
	creds, err := LoadCredentials(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("qwenoauth: failed to reload credentials")
		return
	}
	if errs := Validate(creds, time.Now()); len(errs) > 0 {
		log.Warn().Str("path", w.path).Interface("errors", errs).Msg("qwenoauth: reloaded credentials failed validation")
		return
	}
	w.refresher.SetCurrent(creds)
	log.Info().Str("path", w.path).Msg("qwenoauth: reloaded credentials from disk")
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// watch.
func (w *Watcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func matchesPath(eventName, path string) bool {
	return eventName == path || filepath.Base(eventName) == filepath.Base(path)
}
