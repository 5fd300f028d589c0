package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// RevisionSource reports the stored document revision and the last revision
// this process wrote itself.
type RevisionSource interface {
	Revision() int64
}

// Reloader replaces in-memory analytics state from the store.
type Reloader interface {
	Reload()
	LastRevision() int64
}

const debounceInterval = 200 * time.Millisecond

// Watcher reconciles concurrent writers. It watches the storage files for
// modifications, and when the stored revision differs from the one this
// process last wrote, reloads the document and notifies dashboards. Writes
// remain last-writer-wins; the watcher only mitigates staleness.
type Watcher struct {
	path     string
	store    RevisionSource
	reloader Reloader
	hub      *Hub
	log      zerolog.Logger
}

func New(path string, store RevisionSource, reloader Reloader, hub *Hub, log zerolog.Logger) *Watcher {
	return &Watcher{path: path, store: store, reloader: reloader, hub: hub, log: log}
}

func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: SQLite writes land in the main file, the WAL,
	// or journal siblings, all sharing the database basename.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}

	base := filepath.Base(w.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("storage watch error")

		case <-fire:
			w.reconcile()
		}
	}
}

func (w *Watcher) reconcile() {
	stored := w.store.Revision()
	if stored == 0 || stored == w.reloader.LastRevision() {
		return
	}

	w.log.Debug().Int64("revision", stored).Msg("external write detected, reloading")
	w.reloader.Reload()
	w.hub.Broadcast(Message{Type: "analytics_updated", Payload: map[string]any{"revision": stored}})
}
