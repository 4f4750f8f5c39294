// Package file implements the file feed: literal paths and glob patterns
// are backfilled from offset 0, then followed via filesystem change
// notifications, per spec.md §4.1's "File feed". Adapted from the
// teacher's internal/monitors/file_monitor.go nxadm/tail + worker-pool
// pattern, generalized from the teacher's fixed pipeline/watch_directories
// config shape to plain literal-path/glob inputs.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"

	"fml/internal/entry"
	"fml/internal/types"
)

// rediscoverFallbackInterval re-expands glob patterns on a timer as a
// backstop for filesystems or directories fsnotify can't watch (e.g. a
// glob whose directory doesn't exist yet at startup); the fsnotify watch
// below is what normally catches new files the instant they appear.
const rediscoverFallbackInterval = 10 * time.Second

// Feed tails every file matching the configured literal paths and glob
// patterns, backfilling existing contents before following appends.
type Feed struct {
	patterns   []string
	dispatcher types.Dispatcher
	log        *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tailers map[string]*tail.Tail

	watcher *fsnotify.Watcher
}

// New builds a file feed over the given literal paths and glob patterns.
func New(patterns []string, dispatcher types.Dispatcher, log *logrus.Entry) *Feed {
	return &Feed{
		patterns:   patterns,
		dispatcher: dispatcher,
		log:        log,
		tailers:    make(map[string]*tail.Tail),
	}
}

// Validate resolves the configured patterns and reports a configuration
// error if none of them match anything, without starting any tailer. It
// lets a caller (cmd/fml via App.Start) surface a bad --path synchronously
// instead of discovering it only after Start has already returned control
// to a long-running goroutine.
func (f *Feed) Validate() error {
	matches, err := f.expand()
	if err != nil {
		return fmt.Errorf("file feed: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("file feed: no files matched %v", f.patterns)
	}
	return nil
}

// Start expands the configured patterns, begins tailing every match, and
// periodically re-expands them to pick up new files created under a
// watched glob. It returns a configuration error immediately if no
// pattern matches anything at startup; once running, I/O errors on an individual file are transient and never
// surfaced as fatal, per spec.md's "Failure handling".
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	if err := f.Validate(); err != nil {
		return err
	}
	matches, err := f.expand()
	if err != nil {
		return fmt.Errorf("file feed: %w", err)
	}

	for _, path := range matches {
		f.startTailer(path)
	}

	if w, err := fsnotify.NewWatcher(); err == nil {
		f.watcher = w
		for dir := range patternDirs(f.patterns) {
			if err := w.Add(dir); err != nil {
				f.logf(fmt.Errorf("file feed: watch %s: %w", dir, err))
			}
		}
		f.wg.Add(1)
		go f.watchLoop()
	} else {
		f.logf(fmt.Errorf("file feed: fsnotify unavailable, falling back to polling only: %w", err))
	}

	f.wg.Add(1)
	go f.rediscoverLoop()

	<-f.ctx.Done()
	if f.watcher != nil {
		_ = f.watcher.Close()
	}
	f.wg.Wait()
	return nil
}

// patternDirs returns the set of parent directories worth watching for
// new-file creation. Recursive ("**") glob segments fall outside what a
// single fsnotify watch can cover; those are still picked up by
// rediscoverFallbackInterval's poll.
func patternDirs(patterns []string) map[string]struct{} {
	dirs := make(map[string]struct{})
	for _, p := range patterns {
		dir := filepath.Dir(p)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			dirs[dir] = struct{}{}
		}
	}
	return dirs
}

func (f *Feed) watchLoop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.ctx.Done():
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			matches, err := f.expand()
			if err != nil {
				f.logf(err)
				continue
			}
			for _, path := range matches {
				f.startTailer(path)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logf(fmt.Errorf("file feed: watcher: %w", err))
		}
	}
}

func (f *Feed) expand() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range f.patterns {
		if fi, err := os.Stat(pattern); err == nil && !fi.IsDir() {
			if _, ok := seen[pattern]; !ok {
				seen[pattern] = struct{}{}
				out = append(out, pattern)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			fi, err := os.Stat(m)
			if err != nil || fi.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Feed) rediscoverLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(rediscoverFallbackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			matches, err := f.expand()
			if err != nil {
				f.logf(err)
				continue
			}
			for _, path := range matches {
				f.startTailer(path)
			}
		}
	}
}

func (f *Feed) startTailer(path string) {
	f.mu.Lock()
	if _, exists := f.tailers[path]; exists {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	// Follow:true + ReOpen:true gives the exact rotation contract spec.md
	// requires: nxadm/tail drains the old file descriptor to EOF on
	// rename/delete, then reopens the new file at offset 0, and detects
	// truncation by comparing offset to file size and seeking back to 0 —
	// this is precisely why the teacher chose this library over a
	// hand-rolled poll loop.
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     false,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
	})
	if err != nil {
		f.logf(fmt.Errorf("file feed: tail %s: %w", path, err))
		return
	}

	f.mu.Lock()
	f.tailers[path] = t
	f.mu.Unlock()

	f.wg.Add(1)
	go f.runTailer(path, t)

	if f.log != nil {
		f.log.WithField("path", path).Info("file feed: tailing started")
	}
}

func (f *Feed) runTailer(path string, t *tail.Tail) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		delete(f.tailers, path)
		f.mu.Unlock()
	}()

	for {
		select {
		case <-f.ctx.Done():
			_ = t.Stop()
			t.Cleanup()
			return
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Err(); err != nil {
					f.logf(fmt.Errorf("file feed: %s: %w", path, err))
				}
				return
			}
			if line.Err != nil {
				f.logf(fmt.Errorf("file feed: %s: %w", path, line.Err))
				continue
			}
			raw := types.RawLine{
				Source:   entry.File,
				Producer: path,
				Raw:      line.Text,
				IngestTs: line.Time.UnixNano(),
			}
			if err := f.dispatcher.Handle(f.ctx, raw); err != nil && f.ctx.Err() == nil {
				f.logf(err)
			}
		}
	}
}

func (f *Feed) logf(err error) {
	if f.log != nil {
		f.log.WithError(err).Warn("file feed error")
	}
}

// Stop requests every tailer to drain and exit.
func (f *Feed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

var _ types.Monitor = (*Feed)(nil)
