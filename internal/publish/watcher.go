package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// Watcher republishes a service when one of its normalized country tables
// changes. Events are debounced so a transform rewriting a file, or several
// countries updated together, lead to a single run.
type Watcher struct {
	runner   *Runner
	debounce time.Duration
	watcher  *fsnotify.Watcher
	dirs     map[string]schema.Service // watched country folder -> service

	mu      sync.Mutex
	pending map[schema.Service]*time.Timer
}

// NewWatcher watches the country folders of every runner service. Folders
// that do not exist yet are skipped with a warning.
func NewWatcher(runner *Runner, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		runner:   runner,
		debounce: debounce,
		watcher:  fw,
		dirs:     make(map[string]schema.Service),
		pending:  make(map[schema.Service]*time.Timer),
	}

	for _, svc := range runner.Services() {
		p, _ := runner.Pipeline(svc)
		for _, cc := range p.opts.Countries {
			dir := p.layout.CountryDir(cc)
			if _, err := os.Stat(dir); err != nil {
				slog.Warn("country folder not watched", "service", svc, "country", cc, "error", err)
				continue
			}
			if err := fw.Add(dir); err != nil {
				fw.Close()
				return nil, fmt.Errorf("watch %s: %w", dir, err)
			}
			w.dirs[filepath.Clean(dir)] = svc
		}
	}
	return w, nil
}

// Run dispatches events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	slog.Info("source watcher started", "folders", len(w.dirs), "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			slog.Info("source watcher stopped")
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if svc, ok := w.relevant(ev); ok {
				w.schedule(ctx, svc)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether ev touches the <CC>.csv of a watched folder.
func (w *Watcher) relevant(ev fsnotify.Event) (schema.Service, bool) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return "", false
	}
	dir := filepath.Dir(filepath.Clean(ev.Name))
	svc, ok := w.dirs[dir]
	if !ok {
		return "", false
	}
	cc := filepath.Base(dir)
	if !strings.EqualFold(filepath.Base(ev.Name), cc+".csv") {
		return "", false
	}
	return svc, true
}

func (w *Watcher) schedule(ctx context.Context, svc schema.Service) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[svc]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[svc] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, svc)
		w.mu.Unlock()

		res, err := w.runner.Run(ctx, svc, "watch")
		switch {
		case errors.Is(err, ErrRunInProgress):
			slog.Info("change detected during a run, left to the next trigger", "service", svc)
		case err != nil:
			slog.Error("triggered run failed", "service", svc, "error", err)
		default:
			slog.Info("triggered run completed", "service", svc, "changed", res.Changed)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for svc, t := range w.pending {
		t.Stop()
		delete(w.pending, svc)
	}
}
