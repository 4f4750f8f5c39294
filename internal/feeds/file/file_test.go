package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fml/internal/types"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	lines []types.RawLine
}

func (d *fakeDispatcher) Handle(ctx context.Context, raw types.RawLine) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, raw)
	return nil
}

func (d *fakeDispatcher) snapshot() []types.RawLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.RawLine, len(d.lines))
	copy(out, d.lines)
	return out
}

func waitForCount(t *testing.T, d *fakeDispatcher, n int, timeout time.Duration) []types.RawLine {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := d.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %d", n, len(d.snapshot()))
	return nil
}

func TestFileFeedBackfillsExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	dispatcher := &fakeDispatcher{}
	feed := New([]string{path}, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = feed.Start(ctx) }()
	defer func() {
		cancel()
		_ = feed.Stop()
	}()

	got := waitForCount(t, dispatcher, 3, 2*time.Second)
	require.Equal(t, "one", got[0].Raw)
	require.Equal(t, path, got[0].Producer)
	require.Equal(t, "three", got[2].Raw)
}

func TestFileFeedFollowsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("start\n"), 0o644))

	dispatcher := &fakeDispatcher{}
	feed := New([]string{path}, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = feed.Start(ctx) }()
	defer func() {
		cancel()
		_ = feed.Stop()
	}()

	waitForCount(t, dispatcher, 1, 2*time.Second)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("appended\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got := waitForCount(t, dispatcher, 2, 2*time.Second)
	require.Equal(t, "appended", got[1].Raw)
}

func TestFileFeedGlobPicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.log")
	require.NoError(t, os.WriteFile(existing, []byte("from-a\n"), 0o644))

	dispatcher := &fakeDispatcher{}
	feed := New([]string{filepath.Join(dir, "*.log")}, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = feed.Start(ctx) }()
	defer func() {
		cancel()
		_ = feed.Stop()
	}()

	waitForCount(t, dispatcher, 1, 2*time.Second)

	created := filepath.Join(dir, "b.log")
	require.NoError(t, os.WriteFile(created, []byte("from-b\n"), 0o644))

	got := waitForCount(t, dispatcher, 2, 12*time.Second)
	var sawB bool
	for _, l := range got {
		if l.Producer == created {
			sawB = true
		}
	}
	require.True(t, sawB, "expected a line dispatched with producer %s, got %+v", created, got)
}

func TestFileFeedNoMatchesIsConfigError(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	feed := New([]string{"/nonexistent/path/*.log"}, dispatcher, nil)

	err := feed.Start(context.Background())
	require.Error(t, err)
}

func TestFileFeedValidateCatchesNoMatchesWithoutStarting(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	feed := New([]string{"/nonexistent/path/*.log"}, dispatcher, nil)

	err := feed.Validate()
	require.Error(t, err)
	assert.Empty(t, dispatcher.snapshot())
}

func TestFileFeedStopDrainsCleanly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("line\n"), 0o644))

	dispatcher := &fakeDispatcher{}
	feed := New([]string{path}, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = feed.Start(ctx)
		close(done)
	}()

	waitForCount(t, dispatcher, 1, 2*time.Second)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after context cancellation")
	}
}
