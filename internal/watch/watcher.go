// Package watch triggers pipeline runs when the fetch stage drops new raw files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hotprices/internal/logger"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 2 * time.Second

// Handler is called with the stores whose raw files changed, sorted.
// Stores it fails are retried together with the next change; a *StoresError
// narrows the retry to the stores it names.
type Handler func(ctx context.Context, stores []string) error

// StoresError reports which stores of a triggered run failed.
type StoresError struct {
	Stores []string
	Err    error
}

func (e *StoresError) Error() string {
	return fmt.Sprintf("stores %s failed: %v", strings.Join(e.Stores, ", "), e.Err)
}

func (e *StoresError) Unwrap() error {
	return e.Err
}

// Watcher watches an output directory laid out as <store>/<raw files>.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *logger.Logger
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a watcher for dir.
func New(dir string, debounce time.Duration, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		log:      log,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
	}, nil
}

// Run watches until ctx is done, calling handle once per quiet period that follows changes.
// Handler errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.fsw.Close()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	if err := w.addRecursive(w.dir); err != nil {
		return err
	}

	w.log.Info("Watching for raw data", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if w.handleEvent(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.log.Error("Watcher error", "error", err)

		case <-timer.C:
			w.trigger(ctx, handle)
		}
	}
}

// trigger hands the pending stores to handle and queues failed ones again.
func (w *Watcher) trigger(ctx context.Context, handle Handler) {
	stores := w.takePending()
	if len(stores) == 0 {
		return
	}

	w.log.Info("Raw data changed", "stores", stores)

	err := handle(ctx, stores)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	failed := stores

	var storesErr *StoresError
	if errors.As(err, &storesErr) {
		failed = storesErr.Stores
	}

	w.requeue(failed)
	w.log.Error("Triggered run failed", "stores", failed, "error", err)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if base := d.Name(); strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("Failed to watch directory", "path", path, "error", err)
		}

		return nil
	})
}

// handleEvent records the store of a raw file event and reports whether it did.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}

			return false
		}
	}

	store, ok := w.storeOf(event.Name)
	if !ok {
		return false
	}

	w.pendingMu.Lock()
	w.pending[store] = struct{}{}
	w.pendingMu.Unlock()

	w.log.Debug("Raw file change detected", "store", store, "path", event.Name, "op", event.Op.String())

	return true
}

// storeOf maps a raw file path to its store directory. Files directly in the
// watched dir (the snapshot itself), hidden files and non-JSON files are ignored.
func (w *Watcher) storeOf(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", false
	}

	base := parts[len(parts)-1]
	if strings.HasPrefix(base, ".") || !strings.Contains(base, ".json") {
		return "", false
	}

	return parts[0], true
}

func (w *Watcher) requeue(stores []string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for _, s := range stores {
		w.pending[s] = struct{}{}
	}
}

func (w *Watcher) takePending() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	stores := make([]string, 0, len(w.pending))
	for s := range w.pending {
		stores = append(stores, s)
	}

	w.pending = make(map[string]struct{})

	sort.Strings(stores)

	return stores
}
