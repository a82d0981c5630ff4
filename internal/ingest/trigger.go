package ingest

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Trigger is a single-slot notification channel: it carries no payload
// and collapses any burst of events into "at least one trigger was seen".
type Trigger chan struct{}

// NewTrigger creates an empty trigger.
func NewTrigger() Trigger {
	return make(Trigger, 1)
}

// Fire records a trigger without blocking; a pending trigger absorbs it.
func (t Trigger) Fire() {
	select {
	case t <- struct{}{}:
	default:
	}
}

// Drain clears any pending trigger, so events that arrived during the
// debounce window do not schedule a redundant pass.
func (t Trigger) Drain() {
	select {
	case <-t:
	default:
	}
}

// Watcher raises a trigger whenever an image file is created or moved
// into the watched tree. fsnotify watches are per-directory, so the
// watcher tracks the root, every existing subdirectory, and any directory
// created later. Events inside the archive subtree are ignored.
type Watcher struct {
	logger     *slog.Logger
	fsw        *fsnotify.Watcher
	trigger    Trigger
	archiveDir string
	done       chan struct{}
}

// NewWatcher creates and starts a watcher over root, firing trigger.
func NewWatcher(root, archiveDir string, trigger Trigger, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if trigger == nil {
		return nil, errors.New("trigger cannot be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	archiveAbs, err := filepath.Abs(archiveDir)
	if err != nil {
		archiveAbs = archiveDir
	}

	w := &Watcher{
		logger:     logger,
		fsw:        fsw,
		trigger:    trigger,
		archiveDir: archiveAbs,
		done:       make(chan struct{}),
	}

	if err := w.watchTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// watchTree registers root and all current subdirectories, skipping the
// archive subtree.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.underArchive(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) underArchive(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.archiveDir || strings.HasPrefix(abs, w.archiveDir+string(filepath.Separator))
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// handleEvent reacts to creates and moves. Moves into a watched directory
// surface as Create events; moves out surface as Rename and need no action.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	if w.underArchive(event.Name) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		// A new subdirectory (camera sync folders arrive whole); watch it
		// and everything already inside.
		if err := w.watchTree(event.Name); err != nil {
			w.logger.Error("failed to watch new directory", "dir", event.Name, "error", err)
		}
		w.trigger.Fire()
		return
	}

	if isImageFile(event.Name) {
		w.logger.Info("new file detected", "file", filepath.Base(event.Name))
		w.trigger.Fire()
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

// WatchConsole fires the trigger for every line read from in (a manual
// operator trigger: pressing enter on the attached console). It returns
// when in reaches EOF or closes.
func WatchConsole(in io.Reader, trigger Trigger, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		logger.Info("manual trigger received")
		trigger.Fire()
	}
}
