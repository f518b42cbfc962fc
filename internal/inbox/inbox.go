// Package inbox watches a drop inbox directory for the session daemon.
//
// Tools that cannot speak HTTP hand paths to the daemon by placing entries in
// the inbox: a symlink drops its target, and a *.drop file drops every
// non-empty line it contains as one batch. Entries are removed once read.
package inbox

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/gurisko/sentryctl/internal/logging"
)

// DropExt marks a file whose lines are dropped paths.
const DropExt = ".drop"

// Batch is one set of paths dropped through the inbox.
type Batch struct {
	Source string
	Paths  []string
}

// Watcher turns inbox entries into Batches.
type Watcher struct {
	dir        string
	delay      time.Duration
	fsWatcher  *fsnotify.Watcher
	batches    chan Batch
	done       chan struct{}
	stopOnce   sync.Once
	log        *logging.Logger
	debounce   map[string]*time.Timer
	debounceMu sync.Mutex
	stopped    bool           // guarded by debounceMu
	inflight   sync.WaitGroup // fired timers still reading or sending
}

// New creates the inbox directory if needed and prepares a watcher for it.
func New(dir string, delay time.Duration, log *logging.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create inbox: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:       dir,
		delay:     delay,
		fsWatcher: fsWatcher,
		batches:   make(chan Batch, 16),
		done:      make(chan struct{}),
		log:       log,
		debounce:  make(map[string]*time.Timer),
	}, nil
}

// Batches returns the channel of dropped path sets. It is closed by Stop once
// no entry is being read any more.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Start begins watching and picks up entries already in the inbox.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", w.dir, err)
	}
	go w.processEvents()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to scan inbox: %w", err)
	}
	for _, e := range entries {
		name := filepath.Join(w.dir, e.Name())
		w.debounceEvent(name, func() { w.take(name) })
	}
	return nil
}

// Stop ends watching, cancels pending entries and closes Batches. Batches
// already queued stay readable.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.debounceMu.Lock()
		w.stopped = true
		for path, t := range w.debounce {
			t.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()

		w.inflight.Wait()
		close(w.batches)
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := event.Name
			w.debounceEvent(name, func() { w.take(name) })
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warnf("inbox: watcher error: %v", err)
		}
	}
}

func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.stopped {
		return
	}
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(w.delay, func() {
		w.debounceMu.Lock()
		if w.stopped {
			w.debounceMu.Unlock()
			return
		}
		delete(w.debounce, path)
		w.inflight.Add(1)
		w.debounceMu.Unlock()

		defer w.inflight.Done()
		fn()
	})
}

func (w *Watcher) take(name string) {
	b, ok, err := Read(w.dir, name)
	if err != nil {
		w.log.Warnf("inbox: %v", err)
		return
	}
	if !ok {
		return
	}
	w.log.Debugf("inbox: %s dropped %d path(s)", filepath.Base(name), len(b.Paths))
	select {
	case w.batches <- b:
	case <-w.done:
	}
}

// Read consumes one inbox entry. ok is false for entries that are not drops
// (temporary files, directories) or that vanished in the meantime.
func Read(dir, name string) (b Batch, ok bool, err error) {
	info, err := os.Lstat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Batch{}, false, nil
		}
		return Batch{}, false, err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(name)
		if err != nil {
			return Batch{}, false, fmt.Errorf("read link %s: %w", name, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if err := os.Remove(name); err != nil {
			return Batch{}, false, fmt.Errorf("remove %s: %w", name, err)
		}
		return Batch{Source: filepath.Base(name), Paths: []string{target}}, true, nil

	case info.Mode().IsRegular() && filepath.Ext(name) == DropExt:
		data, err := os.ReadFile(name)
		if err != nil {
			return Batch{}, false, fmt.Errorf("read %s: %w", name, err)
		}
		if err := os.Remove(name); err != nil {
			return Batch{}, false, fmt.Errorf("remove %s: %w", name, err)
		}
		paths := ParseLines(data)
		if len(paths) == 0 {
			return Batch{}, false, nil
		}
		return Batch{Source: filepath.Base(name), Paths: paths}, true, nil
	}
	return Batch{}, false, nil
}

// ParseLines returns the non-empty lines of a drop file. Lines starting with
// '#' are comments.
func ParseLines(data []byte) []string {
	var paths []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths
}

// Submit writes paths to the inbox as one drop file. The file only gets its
// .drop name once complete.
func Submit(dir string, paths []string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create inbox: %w", err)
	}
	f, err := os.CreateTemp(dir, ".submit-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	for _, p := range paths {
		if _, err := fmt.Fprintln(f, p); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write drop file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close drop file: %w", err)
	}

	final := filepath.Join(dir, uuid.NewString()+DropExt)
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("failed to publish drop file: %w", err)
	}
	return final, nil
}
