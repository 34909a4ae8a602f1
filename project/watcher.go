package project

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/semdraft/notify"
)

// WatcherConfig configures the drift watcher.
type WatcherConfig struct {
	// Manager owns the project store being watched.
	Manager *Manager

	// Hub receives drift notifications (optional).
	Hub *notify.Hub

	// DebounceDelay is how long to wait for more changes before re-verifying.
	DebounceDelay time.Duration

	// Logger for logging events.
	Logger *slog.Logger
}

// DriftEvent reports the result of re-verifying a changed project document.
type DriftEvent struct {
	// Slug is the project whose document changed.
	Slug string

	// Path is the changed file relative to the state root.
	Path string

	// Err is the verification failure (nil when the document is intact).
	Err error
}

// projectFileGlob matches project documents relative to the state root.
const projectFileGlob = "*/" + ProjectFile

// Watcher re-verifies outline integrity whenever a project document
// changes on disk. Edits that break a locked outline's hash are surfaced
// as drift events and pipeline_halted notifications.
type Watcher struct {
	config  WatcherConfig
	manager *Manager
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Debouncing: collect changes before re-verifying
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	// Output channel
	events chan DriftEvent
}

// NewWatcher creates a drift watcher over the manager's state root.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Manager == nil {
		return nil, errors.New("watcher requires a project manager")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := config.DebounceDelay
	if debounce == 0 {
		debounce = 250 * time.Millisecond
	}
	config.DebounceDelay = debounce

	return &Watcher{
		config:  config,
		manager: config.Manager,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		events:  make(chan DriftEvent, 100),
	}, nil
}

// Events returns the channel of drift events.
func (w *Watcher) Events() <-chan DriftEvent {
	return w.events
}

// Start begins watching the state root for document changes.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.manager.EnsureDirectories(); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.manager.RootPath()); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Drift watcher started",
		"root", w.manager.RootPath(),
		"debounce", w.config.DebounceDelay)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addWatchesRecursive adds watches to the state root and its project
// directories. The root itself is a dot directory, so the hidden-dir skip
// applies only below it.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}

		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events) // Close events channel when goroutine exits
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent processes a single fsnotify event.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	rel, err := filepath.Rel(w.manager.RootPath(), path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	matched, _ := doublestar.Match(projectFileGlob, rel)
	if !matched {
		// New project directories need their own watch.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Project document changed",
		"path", rel,
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created project directory.
func (w *Watcher) handleNewDirectory(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			"path", path,
			"error", err)
	} else {
		w.logger.Debug("Added watch for new directory", "path", path)
	}
}

// flushPending re-verifies every project touched since the last tick.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	toProcess := make(map[string]fsnotify.Op)
	for k, v := range w.pending {
		toProcess[k] = v
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Deleted documents are not drift; the project is simply gone.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		slug := filepath.Base(filepath.Dir(path))
		rel, _ := filepath.Rel(w.manager.RootPath(), path)
		w.verify(ctx, slug, filepath.ToSlash(rel))
	}
}

// verify reloads a project document and checks its locked outline hash.
func (w *Watcher) verify(ctx context.Context, slug, rel string) {
	p, err := w.manager.Load(ctx, slug)
	if err != nil {
		w.logger.Error("Drift check could not load project",
			"slug", slug,
			"error", err)
		w.sendEvent(DriftEvent{Slug: slug, Path: rel, Err: err})
		return
	}

	if !p.Locked() {
		w.sendEvent(DriftEvent{Slug: slug, Path: rel})
		return
	}

	if err := VerifyOutline(p); err != nil {
		w.logger.Error("integrity_drift",
			"slug", slug,
			"path", rel,
			"error", err)
		if w.config.Hub != nil {
			w.config.Hub.Publish(notify.Event{
				Type:   notify.EventPipelineHalted,
				Slug:   slug,
				Phase:  string(p.Phase),
				Reason: "outline drift: " + err.Error(),
			})
		}
		w.sendEvent(DriftEvent{Slug: slug, Path: rel, Err: err})
		return
	}

	w.sendEvent(DriftEvent{Slug: slug, Path: rel})
}

// sendEvent sends an event to the output channel.
func (w *Watcher) sendEvent(event DriftEvent) {
	select {
	case w.events <- event:
	default:
		w.logger.Warn("Drift event channel full, dropping event",
			"slug", event.Slug)
	}
}
