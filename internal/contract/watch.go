package contract

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change represents a detected change in a watched contract directory.
type Change struct {
	RuleID string // derived from the file name
	File   string // absolute path
}

// Watcher monitors contract source directories for rule file changes
// using fsnotify. Edits to a rule file surface on Changes after a short
// debounce so that editors writing in multiple syscalls produce one
// notification.
type Watcher struct {
	Dirs    []string
	Changes <-chan Change

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given contract directories.
// Missing directories are skipped at Start.
func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Dirs:    dirs,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start begins watching the contract directories for changes. A missing
// directory is skipped; it may not exist until the first rule is saved.
func (w *Watcher) Start() error {
	for _, dir := range w.Dirs {
		if err := w.watcher.Add(dir); err != nil {
			continue
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			if !isRuleFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
		}
	}
}

// isRuleFile filters to contract YAML files, skipping the atomic-write
// temp siblings and editor dotfiles.
func isRuleFile(name string) bool {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".yaml") {
		return false
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	return true
}

func (w *Watcher) emitChange(file string) {
	w.changes <- Change{
		RuleID: strings.TrimSuffix(filepath.Base(file), ".yaml"),
		File:   file,
	}
}
