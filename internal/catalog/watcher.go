package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a file system change
type ChangeKind int

const (
	Modified ChangeKind = iota // Contents rewritten in place
	Created                    // A new file appeared
	Removed                    // Deleted or renamed away
)

func (k ChangeKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Created:
		return "created"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is a file event for an image under the catalog root
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher reports changes to image files under a root
type Watcher struct {
	fw     *fsnotify.Watcher
	exts   map[string]bool
	logger *slog.Logger

	changes chan Change
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher starts watching root (and its subdirectories when recursive)
func NewWatcher(root string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		fw:      fw,
		exts:    make(map[string]bool, len(opts.Extensions)),
		logger:  logger,
		changes: make(chan Change, 64),
		done:    make(chan struct{}),
	}
	for _, e := range opts.Extensions {
		w.exts[strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}

	if err := w.addTree(root, opts.Recursive); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop(opts.Recursive)
	return w, nil
}

// Changes delivers file changes. It is closed by Close.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Close stops watching. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
		close(w.changes)
	})
	return err
}

func (w *Watcher) addTree(root string, recursive bool) error {
	if !recursive {
		if err := w.fw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(recursive bool) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) && recursive && isDir(ev.Name) {
				if err := w.addTree(ev.Name, true); err != nil {
					w.logger.Warn("watch new directory failed", "path", ev.Name, "error", err)
				}
				continue
			}
			change, ok := w.classify(ev)
			if !ok {
				continue
			}
			select {
			case w.changes <- change:
			case <-w.done:
				return
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) classify(ev fsnotify.Event) (Change, bool) {
	base := filepath.Base(ev.Name)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	if strings.HasPrefix(base, ".") || !w.exts[ext] {
		return Change{}, false
	}
	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return Change{Path: ev.Name, Kind: Removed}, true
	case ev.Op.Has(fsnotify.Create):
		return Change{Path: ev.Name, Kind: Created}, true
	case ev.Op.Has(fsnotify.Write):
		return Change{Path: ev.Name, Kind: Modified}, true
	default:
		// Chmod
		return Change{}, false
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
