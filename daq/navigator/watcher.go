package navigator

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ndx-io/NDX/errors"
)

// ChangeCallback receives the directory names of epochs that changed since
// the last flush.
type ChangeCallback func(epochDirs []string)

// defaultDebounce batches the burst of events a recording device produces
// while writing an epoch.
const defaultDebounce = 500 * time.Millisecond

// Watcher watches a navigator's root for epoch directory changes and
// reports them, debounced, through registered callbacks. The session uses
// this to invalidate sync graph nodes when epochs appear, change, or
// disappear.
type Watcher struct {
	nav     *Navigator
	watcher *fsnotify.Watcher

	mu             sync.Mutex
	callbacks      []ChangeCallback
	pending        map[string]struct{}
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	started        bool

	done chan struct{}
}

// NewWatcher starts watching the navigator's root and every existing epoch
// directory. Call Start to begin delivering events and Stop to shut down.
func NewWatcher(nav *Navigator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(nav.Root()); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", nav.Root())
	}

	w := &Watcher{
		nav:            nav,
		watcher:        fsw,
		pending:        make(map[string]struct{}),
		debouncePeriod: defaultDebounce,
		done:           make(chan struct{}),
	}

	// Watch inside existing epoch directories so sidecar edits and new
	// files are seen, not only directory creation at the root.
	entries, err := filepath.Glob(filepath.Join(nav.Root(), nav.pattern))
	if err == nil {
		for _, dir := range entries {
			// Ignore failures; a directory created later is added on its
			// Create event.
			_ = fsw.Add(dir)
		}
	}
	return w, nil
}

// OnChange registers a callback. Callbacks run on a timer goroutine after
// the debounce period; keep them short or hand off.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins the event loop.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.watchLoop()
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	w.mu.Lock()
	started := w.started
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			epochDir, relevant := w.classify(event)
			if !relevant {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// A brand-new epoch directory: watch its contents too.
				if filepath.Base(event.Name) == epochDir {
					_ = w.watcher.Add(event.Name)
				}
			}
			w.nav.logger.Debugw("Epoch directory changed",
				"epoch", epochDir,
				"op", event.Op.String(),
			)
			w.record(epochDir)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.nav.logger.Warnw("Epoch watcher error", "error", err)
		}
	}
}

// classify maps a filesystem event to the epoch directory it concerns.
func (w *Watcher) classify(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	rel, err := filepath.Rel(w.nav.Root(), event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	first := rel
	if i := strings.IndexByte(filepath.ToSlash(rel), '/'); i >= 0 {
		first = rel[:i]
	}
	if !w.nav.Matches(first) {
		return "", false
	}
	return first, true
}

func (w *Watcher) record(epochDir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[epochDir] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for dir := range w.pending {
		changed = append(changed, dir)
	}
	w.pending = make(map[string]struct{})
	callbacks := make([]ChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(changed)
	}
}
